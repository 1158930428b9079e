package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/themovie-ai/server/internal/agent/model"
)

var (
	//go:embed template/chat_system.txt
	chatSystemPrompt string
	//go:embed template/chat_user.txt
	chatUserPrompt string
	//go:embed template/router_system.txt
	routerSystemPrompt string
	//go:embed template/recommendation_system.txt
	recommendationSystemPrompt string
	//go:embed template/knowledgebase_system.txt
	knowledgeBaseSystemPrompt string
)

// Template is the system instruction and user wrapper of one node. Both are
// Go templates; the user wrapper receives the current input as {{.input}}.
type Template struct {
	System string
	User   string
}

// Library holds the templates of every node, keyed by node name.
type Library struct {
	templates map[string]Template
	handlers  []einocb.Handler
}

// NewLibrary builds the library from the embedded templates, applying the
// overrides in cfg. handlers receive eino prompt callbacks on every render.
func NewLibrary(cfg model.PromptConfig, handlers ...einocb.Handler) *Library {
	user := pick(cfg.ChatUser, chatUserPrompt)
	return &Library{
		templates: map[string]Template{
			model.NodeChat:           {System: pick(cfg.ChatSystem, chatSystemPrompt), User: user},
			model.NodeRouter:         {System: pick(cfg.RouterSystem, routerSystemPrompt), User: user},
			model.NodeRecommendation: {System: strings.TrimSpace(recommendationSystemPrompt), User: user},
			model.NodeKnowledgeBase:  {System: strings.TrimSpace(knowledgeBaseSystemPrompt), User: user},
		},
		handlers: handlers,
	}
}

func pick(override, embedded string) string {
	if s := strings.TrimSpace(override); s != "" {
		return s
	}
	return strings.TrimSpace(embedded)
}

// Set registers or replaces the template of a node.
func (l *Library) Set(node string, t Template) {
	l.templates[node] = t
}

// Get returns the template of node.
func (l *Library) Get(node string) (Template, bool) {
	t, ok := l.templates[node]
	return t, ok
}

// Format renders the prompt of node: system instruction, then history as
// given, then the wrapped input. vars are extra template variables.
func (l *Library) Format(ctx context.Context, node string, history []*schema.Message, input string, vars map[string]any) ([]*schema.Message, error) {
	t, ok := l.templates[node]
	if !ok {
		return nil, fmt.Errorf("prompts: no template for node %q", node)
	}

	if len(l.handlers) > 0 {
		ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
			Name:      node,
			Type:      "ChatTemplate",
			Component: components.ComponentOfPrompt,
		}, l.handlers...)
	}

	params := make(map[string]any, len(vars)+2)
	for k, v := range vars {
		params[k] = v
	}
	params["input"] = input
	params["history"] = history

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(t.System),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage(t.User),
	)
	msgs, err := tpl.Format(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("render %s prompt: %w", node, err)
	}
	return msgs, nil
}
