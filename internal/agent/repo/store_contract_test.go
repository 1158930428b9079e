package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themovie-ai/server/internal/agent/model"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store model.MessageStore, conversationID string, n int, typeOf func(i int) model.MessageType) {
	t.Helper()
	for i := range n {
		m := &model.Message{
			ConversationID: conversationID,
			Type:           typeOf(i),
			Text:           fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Insert(context.Background(), m))
	}
}

func alternating(i int) model.MessageType {
	if i%2 == 0 {
		return model.MessageTypeHuman
	}
	return model.MessageTypeAI
}

func texts(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

// runStoreContract checks the behaviour every MessageStore must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) model.MessageStore) {
	ctx := context.Background()

	t.Run("most recent N oldest first", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		seed(t, store, id, 1000, alternating)

		got, err := store.Find(ctx, model.MessageFilter{ConversationID: id, Types: model.ContextMessageTypes}, 50)
		require.NoError(t, err)
		require.Len(t, got, 50)
		assert.Equal(t, "message 950", got[0].Text)
		assert.Equal(t, "message 999", got[49].Text)
		for i := 1; i < len(got); i++ {
			assert.True(t, got[i-1].CreatedAt.Before(got[i].CreatedAt), "messages out of order at %d", i)
		}
	})

	t.Run("filter applies before limit", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		seed(t, store, id, 12, func(i int) model.MessageType {
			if i%3 == 2 {
				return model.MessageTypeSystem
			}
			return alternating(i)
		})

		got, err := store.Find(ctx, model.MessageFilter{ConversationID: id, Types: model.ContextMessageTypes}, 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"message 6", "message 7", "message 9", "message 10"}, texts(got))
		for _, m := range got {
			assert.NotEqual(t, model.MessageTypeSystem, m.Type)
		}
	})

	t.Run("no limit and empty conversation", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		seed(t, store, id, 5, alternating)

		got, err := store.Find(ctx, model.MessageFilter{ConversationID: id}, 0)
		require.NoError(t, err)
		assert.Len(t, got, 5)

		got, err = store.Find(ctx, model.MessageFilter{ConversationID: uuid.NewString()}, 10)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("insert fills defaults", func(t *testing.T) {
		store := newStore(t)
		m := &model.Message{ConversationID: uuid.NewString(), Type: model.MessageTypeHuman, Text: "hi"}
		require.NoError(t, store.Insert(ctx, m))
		assert.NotEmpty(t, m.ID)
		assert.False(t, m.CreatedAt.IsZero())

		got, err := store.Find(ctx, model.MessageFilter{ConversationID: m.ConversationID}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, m.ID, got[0].ID)
		assert.True(t, m.CreatedAt.Equal(got[0].CreatedAt))
	})

	t.Run("equal timestamps keep insertion order", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		for _, text := range []string{"zulu", "alpha", "mike"} {
			require.NoError(t, store.Insert(ctx, &model.Message{ConversationID: id, Type: model.MessageTypeHuman, Text: text, CreatedAt: base}))
		}

		got, err := store.Find(ctx, model.MessageFilter{ConversationID: id}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"zulu", "alpha", "mike"}, texts(got))

		got, err = store.Find(ctx, model.MessageFilter{ConversationID: id, Types: model.ContextMessageTypes}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "mike"}, texts(got))

		got, err = store.Find(ctx, model.MessageFilter{ConversationID: id}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "mike"}, texts(got))
	})

	t.Run("insert rejects invalid conversation id", func(t *testing.T) {
		store := newStore(t)
		err := store.Insert(ctx, &model.Message{ConversationID: "", Type: model.MessageTypeSystem, Text: "ERROR"})
		assert.ErrorIs(t, err, model.ErrInvalidConversationID)
	})
}
