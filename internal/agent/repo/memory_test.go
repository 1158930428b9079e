package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/themovie-ai/server/internal/agent/model"
)

func TestMemoryMessageStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) model.MessageStore {
		return NewMemoryMessageStore()
	})
}

func TestMemoryMessageStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryMessageStore().Find(ctx, model.MessageFilter{ConversationID: "x"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
