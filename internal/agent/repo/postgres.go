package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/themovie-ai/server/internal/agent/model"
	errx "github.com/themovie-ai/server/internal/core/error"
	logx "github.com/themovie-ai/server/pkg/logger"
)

const messagesSchemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
    id              UUID PRIMARY KEY,
    seq             BIGSERIAL NOT NULL,
    conversation_id UUID NOT NULL,
    type            TEXT NOT NULL,
    message         TEXT NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC, seq DESC);
`

const findMessagesSQL = `
SELECT id, conversation_id, type, message, created_at FROM (
    SELECT id::text AS id, conversation_id::text AS conversation_id, type, message, created_at, seq
    FROM messages
    WHERE conversation_id = $1 AND ($2::text[] IS NULL OR type = ANY($2))
    ORDER BY messages.created_at DESC, messages.seq DESC
    LIMIT $3
) recent
ORDER BY created_at ASC, seq ASC`

// PostgresMessageStore keeps messages in a single table. Every call runs on
// its own pooled connection, released on return.
type PostgresMessageStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresMessageStore(db *pgxpool.Pool) *PostgresMessageStore {
	return &PostgresMessageStore{db: db, now: time.Now}
}

// CreateSchema creates the messages table if it doesn't exist.
func (s *PostgresMessageStore) CreateSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, messagesSchemaSQL)
	return errx.WrapPostgres(err)
}

// DropSchema drops the messages table.
func (s *PostgresMessageStore) DropSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `DROP TABLE IF EXISTS messages;`)
	return errx.WrapPostgres(err)
}

func (s *PostgresMessageStore) Insert(ctx context.Context, m *model.Message) error {
	if err := m.Prepare(s.now()); err != nil {
		return err
	}
	m.CreatedAt = m.CreatedAt.Truncate(time.Microsecond)

	conn, err := s.db.Acquire(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to acquire postgres connection")
		return errx.WrapPostgres(err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, type, message, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, string(m.Type), m.Text, m.CreatedAt,
	)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", m.ConversationID).Msg("failed to insert message")
		return errx.WrapPostgres(fmt.Errorf("insert message: %w", err))
	}
	return nil
}

func (s *PostgresMessageStore) Find(ctx context.Context, filter model.MessageFilter, limit int) ([]model.Message, error) {
	conversationID, err := model.ValidateConversationID(filter.ConversationID)
	if err != nil {
		return nil, err
	}

	var types []string
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	var lim any
	if limit > 0 {
		lim = limit
	}

	conn, err := s.db.Acquire(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to acquire postgres connection")
		return nil, errx.WrapPostgres(err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, findMessagesSQL, conversationID, types, lim)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to query messages")
		return nil, errx.WrapPostgres(fmt.Errorf("find messages: %w", err))
	}

	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Message, error) {
		var m model.Message
		var typ string
		if err := row.Scan(&m.ID, &m.ConversationID, &typ, &m.Text, &m.CreatedAt); err != nil {
			return m, err
		}
		m.Type = model.MessageType(typ)
		m.CreatedAt = m.CreatedAt.UTC()
		return m, nil
	})
	if err != nil {
		return nil, errx.WrapPostgres(fmt.Errorf("scan messages: %w", err))
	}
	return msgs, nil
}

var _ model.MessageStore = (*PostgresMessageStore)(nil)
