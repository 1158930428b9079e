package model

// ================ Config ================
type ConversationConfig struct {
	MessagesLimit    int    `envconfig:"MESSAGES_LIMIT" default:"20"`
	StreamBufferSize int    `envconfig:"STREAM_BUFFER_SIZE" default:"16"`
	GraphMode        string `envconfig:"GRAPH_MODE" default:"simple"`
}

type ChatModelConfig struct {
	Model       string  `envconfig:"CONVERSATION_CHAT_MODEL_NAME" default:"gemini-2.5-flash"`
	Temperature float32 `envconfig:"CONVERSATION_CHAT_TEMPERATURE" default:"0.4"`
	TopP        float32 `envconfig:"CONVERSATION_CHAT_TOP_P" default:"0.9"`
	MaxTokens   int     `envconfig:"CONVERSATION_CHAT_MAX_TOKENS" default:"2000"`
}

type RouterModelConfig struct {
	Model       string  `envconfig:"CONVERSATION_ROUTER_MODEL_NAME" default:"gemini-2.5-flash-lite"`
	Temperature float32 `envconfig:"CONVERSATION_ROUTER_TEMPERATURE" default:"0"`
	MaxTokens   int     `envconfig:"CONVERSATION_ROUTER_MAX_TOKENS" default:"64"`
}

// PromptConfig overrides the embedded prompt templates when set.
type PromptConfig struct {
	ChatSystem   string `envconfig:"PROMPT_CHAT_SYSTEM"`
	ChatUser     string `envconfig:"PROMPT_CHAT_USER"`
	RouterSystem string `envconfig:"PROMPT_ROUTER_SYSTEM"`
}

// GraphMode values.
const (
	GraphModeSimple = "simple"
	GraphModeRouted = "routed"
)
