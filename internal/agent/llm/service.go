package llm

import (
	"context"
	"errors"
	"fmt"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/themovie-ai/server/internal/agent/model"
	logx "github.com/themovie-ai/server/pkg/logger"
)

var (
	// ErrEmptyCompletion is returned by Complete when the model answered nothing.
	ErrEmptyCompletion = errors.New("llm: empty completion")
	// ErrModelUnavailable is returned by Unavailable.
	ErrModelUnavailable = errors.New("llm: no model configured")
)

// ChatModelService adapts an eino chat model to model.ModelService.
type ChatModelService struct {
	cm        einomodel.BaseChatModel
	modelName string
	opts      []einomodel.Option
	handlers  []einocb.Handler
}

// Option configures a ChatModelService.
type Option func(*ChatModelService)

// WithCallbacks attaches eino callback handlers to every model call.
func WithCallbacks(h ...einocb.Handler) Option {
	return func(s *ChatModelService) { s.handlers = append(s.handlers, h...) }
}

// WithModelOptions appends per-call model options.
func WithModelOptions(opts ...einomodel.Option) Option {
	return func(s *ChatModelService) { s.opts = append(s.opts, opts...) }
}

// NewChatModelService wraps cm. modelName is used for pricing and logs.
func NewChatModelService(cm einomodel.BaseChatModel, modelName string, opts ...Option) *ChatModelService {
	s := &ChatModelService{cm: cm, modelName: modelName}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ChatModelService) withCallbacks(ctx context.Context) context.Context {
	if len(s.handlers) == 0 {
		return ctx
	}
	return einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      s.modelName,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	}, s.handlers...)
}

// StreamCompletion streams the text of each chunk. Chunks without content
// are skipped and usage metadata is logged as it arrives.
func (s *ChatModelService) StreamCompletion(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[string], error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("llm: no messages to send")
	}

	sr, err := s.cm.Stream(s.withCallbacks(ctx), messages, s.opts...)
	if err != nil {
		logx.Error().Err(err).Str("model", s.modelName).Msg("failed to open model stream")
		return nil, fmt.Errorf("stream %s: %w", s.modelName, err)
	}

	return schema.StreamReaderWithConvert(sr, func(m *schema.Message) (string, error) {
		if m == nil {
			return "", schema.ErrNoValue
		}
		if m.ResponseMeta != nil && m.ResponseMeta.Usage != nil {
			s.logUsage(m.ResponseMeta.Usage)
		}
		if m.Content == "" {
			return "", schema.ErrNoValue
		}
		return m.Content, nil
	}), nil
}

// Complete returns the full answer of a single generation.
func (s *ChatModelService) Complete(ctx context.Context, messages []*schema.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("llm: no messages to send")
	}

	out, err := s.cm.Generate(s.withCallbacks(ctx), messages, s.opts...)
	if err != nil {
		logx.Error().Err(err).Str("model", s.modelName).Msg("model generation failed")
		return "", fmt.Errorf("generate %s: %w", s.modelName, err)
	}
	if out == nil || out.Content == "" {
		return "", ErrEmptyCompletion
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		s.logUsage(out.ResponseMeta.Usage)
	}
	return out.Content, nil
}

func (s *ChatModelService) logUsage(usage *schema.TokenUsage) {
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(s.modelName))
	logx.Debug().
		Str("model", s.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
}

var _ model.ModelService = (*ChatModelService)(nil)

// Unavailable stands in for a model when a graph is compiled only to be
// described. Every call fails with ErrModelUnavailable.
type Unavailable struct{}

func (Unavailable) StreamCompletion(context.Context, []*schema.Message) (*schema.StreamReader[string], error) {
	return nil, ErrModelUnavailable
}

func (Unavailable) Complete(context.Context, []*schema.Message) (string, error) {
	return "", ErrModelUnavailable
}

var _ model.ModelService = Unavailable{}

