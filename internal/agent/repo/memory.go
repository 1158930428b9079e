package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/themovie-ai/server/internal/agent/model"
)

// MemoryMessageStore keeps messages in process. Used by tests and the
// terminal chat command.
type MemoryMessageStore struct {
	mu       sync.RWMutex
	messages map[string][]model.Message
	now      func() time.Time
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		messages: make(map[string][]model.Message),
		now:      time.Now,
	}
}

func (s *MemoryMessageStore) Insert(ctx context.Context, m *model.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Prepare(s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := append(s.messages[m.ConversationID], *m)
	// keep creation order even when callers supply older timestamps
	if n := len(msgs); n > 1 && msgs[n-1].CreatedAt.Before(msgs[n-2].CreatedAt) {
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	}
	s.messages[m.ConversationID] = msgs
	return nil
}

func (s *MemoryMessageStore) Find(ctx context.Context, filter model.MessageFilter, limit int) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[filter.ConversationID]
	out := make([]model.Message, 0, min(len(all), max(limit, 0)))
	for i := len(all) - 1; i >= 0; i-- {
		if !filter.Matches(all[i]) {
			continue
		}
		out = append(out, all[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	reverse(out)
	return out, nil
}

func reverse(msgs []model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

var _ model.MessageStore = (*MemoryMessageStore)(nil)
