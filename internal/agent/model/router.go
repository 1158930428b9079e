package model

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Node names used by the conversation graphs.
const (
	NodeChat           = "chat_node"
	NodeRouter         = "router_node"
	NodeRecommendation = "chat_recommendation_node"
	NodeKnowledgeBase  = "chat_knowledgebase_node"
)

// RouterConfig maps classifier labels to successor nodes. Fallback receives
// every turn whose label is unknown or whose classification failed.
type RouterConfig struct {
	Fallback string            `yaml:"fallback"`
	Routes   map[string]string `yaml:"routes"`
}

// DefaultRouterConfig routes on the labels the classifier prompt asks for.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		Fallback: NodeKnowledgeBase,
		Routes: map[string]string{
			NodeRecommendation: NodeRecommendation,
			NodeKnowledgeBase:  NodeKnowledgeBase,
		},
	}
}

// LoadRouterConfig reads a YAML routes file. An empty path yields the
// defaults; fallback, when non-empty, overrides the file's value.
func LoadRouterConfig(path, fallback string) (RouterConfig, error) {
	cfg := DefaultRouterConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return RouterConfig{}, fmt.Errorf("read router config: %w", err)
		}
		var fromFile RouterConfig
		if err := yaml.Unmarshal(b, &fromFile); err != nil {
			return RouterConfig{}, fmt.Errorf("parse router config: %w", err)
		}
		cfg = fromFile
	}
	if fallback != "" {
		cfg.Fallback = fallback
	}
	return cfg, cfg.Validate()
}

// Validate requires an explicit fallback that is itself a route target.
func (c RouterConfig) Validate() error {
	var errs []error
	if len(c.Routes) == 0 {
		errs = append(errs, errors.New("router: no routes configured"))
	}
	if c.Fallback == "" {
		errs = append(errs, errors.New("router: fallback node must be configured"))
	} else if !c.hasTarget(c.Fallback) {
		errs = append(errs, fmt.Errorf("router: fallback %q is not a route target", c.Fallback))
	}
	for label, target := range c.Routes {
		if strings.TrimSpace(label) == "" || strings.TrimSpace(target) == "" {
			errs = append(errs, fmt.Errorf("router: empty label or target in %q -> %q", label, target))
		}
	}
	return errors.Join(errs...)
}

// Resolve maps a raw classifier answer to a target node. The answer matches
// a label when it equals it or contains it (case-insensitive); anything else
// resolves to the fallback.
func (c RouterConfig) Resolve(answer string) (target string, matched bool) {
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return c.Fallback, false
	}
	labels := c.Labels()
	for _, l := range labels {
		if a == strings.ToLower(l) {
			return c.Routes[l], true
		}
	}
	var hits []string
	for _, l := range labels {
		if strings.Contains(a, strings.ToLower(l)) {
			hits = append(hits, l)
		}
	}
	if len(hits) == 1 {
		return c.Routes[hits[0]], true
	}
	return c.Fallback, false
}

// Labels returns the configured labels in stable order.
func (c RouterConfig) Labels() []string {
	labels := make([]string, 0, len(c.Routes))
	for l := range c.Routes {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Targets returns the distinct successor nodes in stable order.
func (c RouterConfig) Targets() []string {
	seen := make(map[string]bool, len(c.Routes))
	var out []string
	for _, l := range c.Labels() {
		t := c.Routes[l]
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (c RouterConfig) hasTarget(node string) bool {
	for _, t := range c.Routes {
		if t == node {
			return true
		}
	}
	return false
}
