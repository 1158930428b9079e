package observers

import (
	"bytes"
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"

	"github.com/themovie-ai/server/internal/core"
	logx "github.com/themovie-ai/server/pkg/logger"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logx.Init(logx.LoggerOpts{Environment: core.Development, Output: &buf})
	t.Cleanup(logx.Discard)
	return &buf
}

func TestModelHandler_LogsPromptAndAnswer(t *testing.T) {
	buf := captureLogs(t)
	h := newModelHandler()
	info := &einocb.RunInfo{Name: "gemini-2.5-flash", Type: "Gemini"}

	h.OnStart(context.Background(), info, &model.CallbackInput{Messages: []*schema.Message{
		schema.SystemMessage("be helpful"),
		schema.UserMessage("Recommend a sci-fi movie"),
	}})
	h.OnEnd(context.Background(), info, &model.CallbackOutput{Message: schema.AssistantMessage("Dune.", nil)})
	h.OnError(context.Background(), info, errors.New("quota"))

	out := buf.String()
	assert.Contains(t, out, "model call started")
	assert.Contains(t, out, "Recommend a sci-fi movie")
	assert.Contains(t, out, "model call finished")
	assert.Contains(t, out, "Dune.")
	assert.Contains(t, out, "model call failed")
}

func TestPromptHandler_LogsRenderedSystemPrompt(t *testing.T) {
	buf := captureLogs(t)
	newPromptHandler().OnEnd(context.Background(), &einocb.RunInfo{Name: "chat_node", Type: "ChatTemplate"}, &prompt.CallbackOutput{
		Result: []*schema.Message{schema.SystemMessage("answer in Vietnamese")},
	})
	assert.Contains(t, buf.String(), "answer in Vietnamese")
}

func TestLastUserContent(t *testing.T) {
	msgs := []*schema.Message{
		schema.UserMessage(" first "),
		nil,
		schema.AssistantMessage("reply", nil),
		schema.UserMessage(" second "),
		schema.AssistantMessage("again", nil),
	}
	assert.Equal(t, "second", lastUserContent(msgs))
	assert.Equal(t, "", lastUserContent(nil))
}

func TestNewAllCallbacks(t *testing.T) {
	assert.NotNil(t, NewAllCallbacks())
	assert.NotNil(t, NewModelCallbacks())
	assert.NotNil(t, NewPromptCallbacks())
}
