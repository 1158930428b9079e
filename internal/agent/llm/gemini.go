package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/themovie-ai/server/internal/agent/model"
	logx "github.com/themovie-ai/server/pkg/logger"
)

// GeminiConfig holds the configuration for chat model creation
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	ChatConfig   *model.ChatModelConfig
	RouterConfig *model.RouterModelConfig
}

// GeminiModels holds the chat and router models built on one genai client
type GeminiModels struct {
	Chat            *gemini.ChatModel
	Router          *gemini.ChatModel
	ChatModelName   string
	RouterModelName string
}

// NewGeminiModels creates the chat and router models with the given configuration
func NewGeminiModels(ctx context.Context, config GeminiConfig) (*GeminiModels, error) {
	if config.ChatConfig == nil || config.RouterConfig == nil {
		return nil, fmt.Errorf("gemini: chat and router model config are required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chat, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ChatConfig.Model,
		Temperature: &config.ChatConfig.Temperature,
		TopP:        &config.ChatConfig.TopP,
		MaxTokens:   &config.ChatConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	// The router answers with a single label; thinking is disabled to keep it short.
	router, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RouterConfig.Model,
		Temperature: &config.RouterConfig.Temperature,
		MaxTokens:   &config.RouterConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	return &GeminiModels{
		Chat:            chat,
		Router:          router,
		ChatModelName:   config.ChatConfig.Model,
		RouterModelName: config.RouterConfig.Model,
	}, nil
}
