package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/themovie-ai/server/internal/agent/model"
	errx "github.com/themovie-ai/server/internal/core/error"
	logx "github.com/themovie-ai/server/pkg/logger"
)

// RedisMessageStore keeps one sorted set per conversation, scored by
// creation time in microseconds. Members are prefixed with a per-conversation
// sequence so messages sharing a timestamp keep their insertion order.
type RedisMessageStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewRedisMessageStore(rdb *redis.Client, ttl time.Duration) *RedisMessageStore {
	return &RedisMessageStore{rdb: rdb, ttl: ttl, now: time.Now}
}

func (r *RedisMessageStore) conversationKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (r *RedisMessageStore) sequenceKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:seq", conversationID)
}

func (r *RedisMessageStore) Insert(ctx context.Context, m *model.Message) error {
	if err := m.Prepare(r.now()); err != nil {
		return err
	}
	m.CreatedAt = m.CreatedAt.Truncate(time.Microsecond)

	b, err := json.Marshal(m)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", m.ConversationID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.conversationKey(m.ConversationID)
	seqKey := r.sequenceKey(m.ConversationID)

	conn := r.rdb.Conn()
	defer conn.Close()

	seq, err := conn.Incr(ctx, seqKey).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", seqKey).Msg("failed to allocate message sequence")
		return errx.WrapRedis(err)
	}

	// append message and extend TTL on touch
	_, err = conn.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(m.CreatedAt.UnixMicro()), Member: encodeMember(seq, b)})
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
			p.Expire(ctx, seqKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to add message to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// Find reads the conversation newest-first in a single ZREVRANGE so that
// concurrent inserts cannot shift it. Without a type filter only the last
// limit members are fetched.
func (r *RedisMessageStore) Find(ctx context.Context, filter model.MessageFilter, limit int) ([]model.Message, error) {
	key := r.conversationKey(filter.ConversationID)

	stop := int64(-1)
	if limit > 0 && len(filter.Types) == 0 {
		stop = int64(limit) - 1
	}

	conn := r.rdb.Conn()
	defer conn.Close()

	rows, err := conn.ZRevRange(ctx, key, 0, stop).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load messages from redis")
		return nil, errx.WrapRedis(err)
	}

	var out []model.Message
	for i, s := range rows {
		m, err := decodeMember(s)
		if err != nil {
			logx.Error().Err(err).Str("key", key).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		if !filter.Matches(m) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	reverse(out)
	return out, nil
}

// encodeMember prefixes the payload with a zero-padded sequence. Redis
// orders equal scores lexicographically, which then follows insertion.
func encodeMember(seq int64, payload []byte) string {
	return fmt.Sprintf("%020d|%s", seq, payload)
}

func decodeMember(s string) (model.Message, error) {
	var m model.Message
	_, payload, ok := strings.Cut(s, "|")
	if !ok {
		return m, fmt.Errorf("member without sequence prefix")
	}
	err := json.Unmarshal([]byte(payload), &m)
	return m, err
}

// Clear deletes every message of a conversation.
func (r *RedisMessageStore) Clear(ctx context.Context, conversationID string) error {
	key := r.conversationKey(conversationID)
	if err := r.rdb.Del(ctx, key, r.sequenceKey(conversationID)).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.MessageStore = (*RedisMessageStore)(nil)
