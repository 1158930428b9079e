package nodes_test

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/themovie-ai/server/internal/agent/model"
)

// fakeModel is a deterministic ModelService.
type fakeModel struct {
	chunks  []string
	failErr error // sent after the chunks
	openErr error
	block   bool // wait for cancellation after the chunks
	answer  string

	mu        sync.Mutex
	prompts   [][]*schema.Message
	cancelled chan error
}

func (f *fakeModel) StreamCompletion(ctx context.Context, msgs []*schema.Message) (*schema.StreamReader[string], error) {
	f.record(msgs)
	if f.openErr != nil {
		return nil, f.openErr
	}
	sr, sw := schema.Pipe[string](0)
	go func() {
		defer sw.Close()
		for _, c := range f.chunks {
			if closed := sw.Send(c, nil); closed {
				return
			}
		}
		switch {
		case f.failErr != nil:
			sw.Send("", f.failErr)
		case f.block:
			<-ctx.Done()
			f.cancelled <- ctx.Err()
			sw.Send("", ctx.Err())
		}
	}()
	return sr, nil
}

func (f *fakeModel) Complete(ctx context.Context, msgs []*schema.Message) (string, error) {
	f.record(msgs)
	if f.openErr != nil {
		return "", f.openErr
	}
	return f.answer, nil
}

func (f *fakeModel) record(msgs []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, msgs)
}

func (f *fakeModel) lastPrompt() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

// staticStore serves a fixed transcript through the MessageFilter rules and
// accepts any conversation id.
type staticStore struct {
	messages []model.Message
	err      error
	limits   []int
}

func (s *staticStore) Find(ctx context.Context, filter model.MessageFilter, limit int) ([]model.Message, error) {
	s.limits = append(s.limits, limit)
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Message
	for i := len(s.messages) - 1; i >= 0; i-- {
		if filter.Matches(s.messages[i]) {
			out = append([]model.Message{s.messages[i]}, out...)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *staticStore) Insert(ctx context.Context, m *model.Message) error {
	s.messages = append(s.messages, *m)
	return nil
}

// userTurn is the default user wrapper applied to the current input.
func userTurn(input string) string {
	return "Current user message:\n" + input
}
