package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	goredis "github.com/redis/go-redis/v9"

	"github.com/themovie-ai/server/internal/agent/graph"
	"github.com/themovie-ai/server/internal/agent/graph/conversations"
	"github.com/themovie-ai/server/internal/agent/graph/observers"
	"github.com/themovie-ai/server/internal/agent/graph/prompts"
	"github.com/themovie-ai/server/internal/agent/llm"
	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/repo"
	"github.com/themovie-ai/server/internal/agent/workflow"
	"github.com/themovie-ai/server/internal/core"
	"github.com/themovie-ai/server/internal/metrics"
	logx "github.com/themovie-ai/server/pkg/logger"
	pkgpostgres "github.com/themovie-ai/server/pkg/postgres"
	pkgredis "github.com/themovie-ai/server/pkg/redis"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// AppConfig defines all configurable parameters of the server, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Infrastructure
	StoreBackend string `envconfig:"STORE_BACKEND" default:"redis"`
	Redis        pkgredis.Config
	Postgres     pkgpostgres.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Chat             model.ChatModelConfig
	Router           model.RouterModelConfig
	Prompt           model.PromptConfig
	Conversation     model.ConversationConfig
	RouterConfigPath string `envconfig:"ROUTER_CONFIG_PATH"`
	RouterFallback   string `envconfig:"ROUTER_FALLBACK"`
}

// loadConfig reads .env when present and processes the environment.
func loadConfig(envFile string) (*AppConfig, error) {
	if err := godotenv.Load(envFile); err != nil {
		logx.Debug().Err(err).Str("file", envFile).Msg("no env file loaded")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}

// App is the fully wired server.
type App struct {
	Config   *AppConfig
	Service  *conversations.Service
	Runnable *workflow.Runnable
	Metrics  *metrics.Metrics

	closers []func()
}

// Close releases the store connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *AppConfig) (*App, error) {
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	app := &App{Config: cfg, Metrics: metrics.New()}

	store, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	models, err := llm.NewGeminiModels(ctx, llm.GeminiConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		ChatConfig:   &cfg.Chat,
		RouterConfig: &cfg.Router,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	modelCallbacks := observers.NewModelCallbacks()
	runnable, err := buildRunnable(cfg, store,
		llm.NewChatModelService(models.Chat, models.ChatModelName, llm.WithCallbacks(modelCallbacks)),
		llm.NewChatModelService(models.Router, models.RouterModelName, llm.WithCallbacks(modelCallbacks)),
		app.Metrics.Hooks(),
	)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Runnable = runnable
	app.Service = conversations.NewService(store, runnable, conversations.WithRecorder(app.Metrics))

	logx.Info().
		Str("store", cfg.StoreBackend).
		Str("graph_mode", cfg.Conversation.GraphMode).
		Str("chat_model", models.ChatModelName).
		Msg("conversation server wired")
	return app, nil
}

// newGraphOnly compiles the configured graph without a model provider or a
// store connection. Nodes fail if run; the result is for rendering.
func newGraphOnly(cfg *AppConfig) (*workflow.Runnable, error) {
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})
	return buildRunnable(cfg, repo.NewMemoryMessageStore(), llm.Unavailable{}, llm.Unavailable{}, workflow.Hooks{})
}

func buildRunnable(cfg *AppConfig, store model.MessageStore, chat, router model.ModelService, hooks workflow.Hooks) (*workflow.Runnable, error) {
	routes, err := model.LoadRouterConfig(cfg.RouterConfigPath, cfg.RouterFallback)
	if err != nil {
		return nil, err
	}
	return graph.BuildConversationGraph(&graph.GraphConfig{
		Store:        store,
		ChatModel:    chat,
		RouterModel:  router,
		Prompts:      prompts.NewLibrary(cfg.Prompt, observers.NewPromptCallbacks()),
		Conversation: cfg.Conversation,
		Router:       routes,
		Hooks:        hooks,
	})
}

func (a *App) openStore(ctx context.Context) (model.MessageStore, error) {
	switch strings.ToLower(a.Config.StoreBackend) {
	case StoreMemory:
		return repo.NewMemoryMessageStore(), nil

	case StoreRedis:
		rdb, err := a.Config.Redis.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Redis client: %w", err)
		}
		a.closers = append(a.closers, func() { closeRedis(rdb) })
		logx.Info().Msg("connected to Redis")
		return repo.NewRedisMessageStore(rdb, a.Config.Redis.TTL()), nil

	case StorePostgres:
		pool, err := a.Config.Postgres.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise Postgres pool: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		store := repo.NewPostgresMessageStore(pool)
		if err := store.CreateSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create message schema: %w", err)
		}
		logx.Info().Msg("connected to Postgres")
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", a.Config.StoreBackend)
}

func closeRedis(rdb *goredis.Client) {
	if err := rdb.Close(); err != nil {
		logx.Warn().Err(err).Msg("failed to close Redis client")
	}
}
