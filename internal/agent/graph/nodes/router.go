package nodes

import (
	"context"
	"strings"

	"github.com/themovie-ai/server/internal/agent/graph/prompts"
	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/workflow"
	logx "github.com/themovie-ai/server/pkg/logger"
)

// RouterNode classifies the latest user message and records the successor
// in state.Route. It never streams.
type RouterNode struct {
	llm     model.ModelService
	prompts *prompts.Library
	routes  model.RouterConfig
}

// NewRouterNode creates a router node over a validated routes config.
func NewRouterNode(llm model.ModelService, lib *prompts.Library, routes model.RouterConfig) (*RouterNode, error) {
	if err := routes.Validate(); err != nil {
		return nil, err
	}
	return &RouterNode{llm: llm, prompts: lib, routes: routes}, nil
}

// Successors lists every node this router can select.
func (n *RouterNode) Successors() []string {
	return n.routes.Targets()
}

func (n *RouterNode) Run(ctx context.Context, state model.ConversationState, rc workflow.RunContext, ch *workflow.Channel) (model.ConversationState, error) {
	node := rc.NodeName()
	target := n.classify(ctx, state, node)
	return state.WithRoute(target).WithNode(node), nil
}

func (n *RouterNode) classify(ctx context.Context, state model.ConversationState, node string) string {
	prompt, err := n.prompts.Format(ctx, node, nil, state.LastMessage(), map[string]any{
		"labels": strings.Join(n.routes.Labels(), ", "),
	})
	if err != nil {
		logx.Warn().Err(err).Str("node", node).Str("fallback", n.routes.Fallback).Msg("router prompt failed, using fallback")
		return n.routes.Fallback
	}

	answer, err := n.llm.Complete(ctx, prompt)
	if err != nil {
		logx.Warn().Err(err).Str("node", node).Str("fallback", n.routes.Fallback).Msg("classification failed, using fallback")
		return n.routes.Fallback
	}

	target, matched := n.routes.Resolve(answer)
	if !matched {
		logx.Warn().Str("node", node).Str("answer", answer).Str("fallback", target).Msg("ambiguous classification, using fallback")
		return target
	}
	logx.Debug().
		Str("conversation_id", state.ConversationID()).
		Str("node", node).
		Str("answer", answer).
		Str("route", target).
		Msg("turn classified")
	return target
}

// RouteByLabel returns the branch condition reading the route a RouterNode
// recorded. A state without a route goes to fallback.
func RouteByLabel(fallback string) workflow.RouterFunc {
	return func(ctx context.Context, state model.ConversationState) (string, error) {
		if state.Route == "" {
			logx.Debug().Str("fallback", fallback).Msg("no route recorded, routing to fallback")
			return fallback, nil
		}
		return state.Route, nil
	}
}
