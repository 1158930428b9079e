package nodes

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/themovie-ai/server/internal/agent/graph/prompts"
	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/workflow"
	logx "github.com/themovie-ai/server/pkg/logger"
)

// ChatNode answers the latest user message from bounded recent history and
// streams the model output chunk by chunk. The prompt is picked by the name
// the node is registered under, so one type serves every answering node.
type ChatNode struct {
	store   model.MessageStore
	llm     model.ModelService
	prompts *prompts.Library
	limit   int
}

// NewChatNode creates a chat node loading at most limit messages of history.
func NewChatNode(store model.MessageStore, llm model.ModelService, lib *prompts.Library, limit int) *ChatNode {
	return &ChatNode{store: store, llm: llm, prompts: lib, limit: limit}
}

func (n *ChatNode) Run(ctx context.Context, state model.ConversationState, rc workflow.RunContext, ch *workflow.Channel) (model.ConversationState, error) {
	node := rc.NodeName()
	if err := n.stream(ctx, state.ConversationID(), node, ch); err != nil {
		logx.Error().Err(err).
			Str("conversation_id", state.ConversationID()).
			Str("node", node).
			Msg("chat node failed")
		return model.ConversationState{}, workflow.NewStreamingError(node, err)
	}
	return state.WithMessages(model.MessageTypeHidden, model.EndOfTurn).WithNode(node), nil
}

func (n *ChatNode) stream(ctx context.Context, conversationID, node string, ch *workflow.Channel) error {
	history, err := n.store.Find(ctx, model.MessageFilter{
		ConversationID: conversationID,
		Types:          model.ContextMessageTypes,
	}, n.limit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	var input string
	if len(history) > 0 {
		input = history[len(history)-1].Text
		history = history[:len(history)-1]
	}
	contextMessages := toSchemaMessages(history)
	logx.Info().
		Str("conversation_id", conversationID).
		Str("node", node).
		Int("context_messages", len(contextMessages)).
		Msg("chat context loaded")

	prompt, err := n.prompts.Format(ctx, node, contextMessages, input, nil)
	if err != nil {
		return err
	}

	sr, err := n.llm.StreamCompletion(ctx, prompt)
	if err != nil {
		return fmt.Errorf("model stream: %w", err)
	}
	defer sr.Close()

	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("model stream: %w", err)
		}
		if err := ch.Send(ctx, model.NewAIFragment(node, chunk)); err != nil {
			return fmt.Errorf("forward chunk: %w", err)
		}
	}
}

// toSchemaMessages maps HUMAN to the user role and every other type to the
// assistant role.
func toSchemaMessages(msgs []model.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Type == model.MessageTypeHuman {
			out = append(out, schema.UserMessage(m.Text))
		} else {
			out = append(out, schema.AssistantMessage(m.Text, nil))
		}
	}
	return out
}
