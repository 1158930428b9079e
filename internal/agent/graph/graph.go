package graph

import (
	"fmt"

	"github.com/themovie-ai/server/internal/agent/graph/nodes"
	"github.com/themovie-ai/server/internal/agent/graph/prompts"
	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/workflow"
	logx "github.com/themovie-ai/server/pkg/logger"
)

// GraphConfig holds all configuration needed to build the conversation graph
type GraphConfig struct {
	Store        model.MessageStore
	ChatModel    model.ModelService
	RouterModel  model.ModelService
	Prompts      *prompts.Library
	Conversation model.ConversationConfig
	Router       model.RouterConfig
	Hooks        workflow.Hooks
}

// GraphBuilder handles the construction of the conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *workflow.Graph
	router *nodes.RouterNode
}

// BuildConversationGraph constructs and returns the compiled conversation
// graph for the configured mode:
//
//	simple: START -> chat_node -> END
//	routed: START -> router_node -> {chat_recommendation_node | chat_knowledgebase_node} -> END
func BuildConversationGraph(config *GraphConfig) (*workflow.Runnable, error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("message store is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if config.Prompts == nil {
		config.Prompts = prompts.NewLibrary(model.PromptConfig{})
	}

	b := &GraphBuilder{
		config: config,
		graph: workflow.NewGraph(
			workflow.WithHooks(config.Hooks),
			workflow.WithBufferSize(config.Conversation.StreamBufferSize),
		),
	}

	switch config.Conversation.GraphMode {
	case "", model.GraphModeSimple:
		if err := b.addSimple(); err != nil {
			return nil, err
		}
	case model.GraphModeRouted:
		if err := b.addRouted(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown graph mode %q", config.Conversation.GraphMode)
	}

	return b.compile()
}

func (b *GraphBuilder) chatNode() *nodes.ChatNode {
	return nodes.NewChatNode(b.config.Store, b.config.ChatModel, b.config.Prompts, b.config.Conversation.MessagesLimit)
}

// addSimple wires the single chat node
func (b *GraphBuilder) addSimple() error {
	if err := b.graph.AddNode(model.NodeChat, b.chatNode()); err != nil {
		return err
	}
	return b.addEdges([][2]string{
		{workflow.START, model.NodeChat},
		{model.NodeChat, workflow.END},
	})
}

// addRouted wires the router and one chat node per route target
func (b *GraphBuilder) addRouted() error {
	routerModel := b.config.RouterModel
	if routerModel == nil {
		routerModel = b.config.ChatModel
	}
	router, err := nodes.NewRouterNode(routerModel, b.config.Prompts, b.config.Router)
	if err != nil {
		logx.Error().Err(err).Msg("Invalid router configuration")
		return fmt.Errorf("invalid router configuration: %w", err)
	}
	b.router = router

	if err := b.graph.AddNode(model.NodeRouter, router); err != nil {
		return err
	}
	edges := [][2]string{{workflow.START, model.NodeRouter}}
	for _, target := range router.Successors() {
		if _, ok := b.config.Prompts.Get(target); !ok {
			return fmt.Errorf("route target %q has no prompt template", target)
		}
		if err := b.graph.AddNode(target, b.chatNode()); err != nil {
			return err
		}
		edges = append(edges, [2]string{target, workflow.END})
	}
	if err := b.addEdges(edges); err != nil {
		return err
	}
	return b.addBranches()
}

// addEdges creates the fixed flow connections between nodes
func (b *GraphBuilder) addEdges(edges [][2]string) error {
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates the conditional routing branch after the router
func (b *GraphBuilder) addBranches() error {
	err := b.graph.AddBranch(model.NodeRouter, nodes.RouteByLabel(b.config.Router.Fallback), b.router.Successors()...)
	if err != nil {
		logx.Error().Err(err).Msg("Error adding router branch")
		return fmt.Errorf("error adding router branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile() (*workflow.Runnable, error) {
	runnable, err := b.graph.Compile()
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Str("entry", runnable.Entry()).Msg("Graph compiled successfully")
	return runnable, nil
}
