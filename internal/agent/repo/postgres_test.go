package repo

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themovie-ai/server/internal/agent/model"
)

func newPostgresStore(t *testing.T) *PostgresMessageStore {
	t.Helper()
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresMessageStore(pool)
	require.NoError(t, store.DropSchema(ctx))
	require.NoError(t, store.CreateSchema(ctx))
	return store
}

func TestPostgresMessageStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) model.MessageStore {
		return newPostgresStore(t)
	})
}

func TestPostgresMessageStore_ReleasesConnections(t *testing.T) {
	store := newPostgresStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := store.Find(ctx, model.MessageFilter{ConversationID: "6f1c8f38-2a7d-4c3e-9b8e-1d2f3a4b5c6d"}, 5)
	assert.Error(t, err)
	assert.Zero(t, store.db.Stat().AcquiredConns())
}

func TestPostgresMessageStore_RejectsMalformedID(t *testing.T) {
	store := newPostgresStore(t)
	_, err := store.Find(context.Background(), model.MessageFilter{ConversationID: "c1"}, 5)
	assert.ErrorIs(t, err, model.ErrInvalidConversationID)
}
