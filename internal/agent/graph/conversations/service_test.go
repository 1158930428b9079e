package conversations_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themovie-ai/server/internal/agent/graph"
	"github.com/themovie-ai/server/internal/agent/graph/conversations"
	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/repo"
	"github.com/themovie-ai/server/internal/agent/workflow"
	errx "github.com/themovie-ai/server/internal/core/error"
)

type stubModel struct {
	chunks  []string
	failErr error
	block   chan error
}

func (m *stubModel) StreamCompletion(ctx context.Context, msgs []*schema.Message) (*schema.StreamReader[string], error) {
	sr, sw := schema.Pipe[string](0)
	go func() {
		defer sw.Close()
		for _, c := range m.chunks {
			if sw.Send(c, nil) {
				return
			}
		}
		if m.failErr != nil {
			sw.Send("", m.failErr)
		}
		if m.block != nil {
			<-ctx.Done()
			m.block <- ctx.Err()
			sw.Send("", ctx.Err())
		}
	}()
	return sr, nil
}

func (m *stubModel) Complete(ctx context.Context, msgs []*schema.Message) (string, error) {
	return "", errors.New("not used")
}

type countingStore struct {
	*repo.MemoryMessageStore
	mu      sync.Mutex
	inserts int
}

func (s *countingStore) Insert(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	s.inserts++
	s.mu.Unlock()
	return s.MemoryMessageStore.Insert(ctx, m)
}

type recorder struct {
	mu        sync.Mutex
	fragments int
	outcomes  []string
}

func (r *recorder) Fragment(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragments++
}

func (r *recorder) Turn(outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func newService(t *testing.T, llm model.ModelService) (*conversations.Service, *countingStore, *recorder) {
	t.Helper()
	store := &countingStore{MemoryMessageStore: repo.NewMemoryMessageStore()}
	runner, err := graph.BuildConversationGraph(&graph.GraphConfig{
		Store:        store,
		ChatModel:    llm,
		Conversation: model.ConversationConfig{MessagesLimit: 20, StreamBufferSize: 2, GraphMode: model.GraphModeSimple},
	})
	require.NoError(t, err)
	rec := &recorder{}
	return conversations.NewService(store, runner, conversations.WithRecorder(rec)), store, rec
}

func types(msgs []model.Message) []model.MessageType {
	out := make([]model.MessageType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestService_TurnPersistsTranscript(t *testing.T) {
	svc, _, rec := newService(t, &stubModel{chunks: []string{"Sure", ", try", " Dune."}})
	ctx := context.Background()

	conv, err := svc.CreateConversation(ctx)
	require.NoError(t, err)
	_, err = model.ValidateConversationID(conv.ConversationID)
	require.NoError(t, err)

	var emitted []string
	final, err := svc.Stream(ctx, conv.ConversationID, "Recommend a sci-fi movie", func(f model.Fragment) error {
		emitted = append(emitted, f.Text())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sure", ", try", " Dune."}, emitted)
	assert.Equal(t, model.MessageTypeHidden, final.Type)
	assert.Equal(t, []string{model.EndOfTurn}, final.Messages)

	history, err := svc.History(ctx, conv.ConversationID, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.MessageType{model.MessageTypeSystem, model.MessageTypeHuman, model.MessageTypeAI}, types(history))
	assert.Equal(t, conversations.ConversationCreatedMessage, history[0].Text)
	assert.Equal(t, "Recommend a sci-fi movie", history[1].Text)
	assert.Equal(t, "Sure, try Dune.", history[2].Text)

	assert.Equal(t, 3, rec.fragments)
	assert.Equal(t, []string{"completed"}, rec.outcomes)
}

func TestService_InvalidConversationIDWritesNothing(t *testing.T) {
	svc, store, rec := newService(t, &stubModel{})

	for _, id := range []string{"", "c1", "not-a-uuid"} {
		_, err := svc.Stream(context.Background(), id, "hello", func(model.Fragment) error { return nil })
		var appErr *errx.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, http.StatusBadRequest, appErr.Status)
		assert.ErrorIs(t, err, model.ErrInvalidConversationID)
	}
	assert.Zero(t, store.inserts)
	assert.Equal(t, []string{"rejected", "rejected", "rejected"}, rec.outcomes)
}

func TestService_EmptyMessageRejected(t *testing.T) {
	svc, store, _ := newService(t, &stubModel{})
	conv, err := svc.CreateConversation(context.Background())
	require.NoError(t, err)

	_, err = svc.Stream(context.Background(), conv.ConversationID, "   ", func(model.Fragment) error { return nil })
	assert.ErrorIs(t, err, conversations.ErrEmptyMessage)
	assert.Equal(t, 1, store.inserts)
}

func TestService_FailedTurnRecordsError(t *testing.T) {
	svc, _, rec := newService(t, &stubModel{chunks: []string{"Sure"}, failErr: errors.New("provider 500: internal details")})
	ctx := context.Background()
	conv, err := svc.CreateConversation(ctx)
	require.NoError(t, err)

	var emitted int
	_, err = svc.Stream(ctx, conv.ConversationID, "Recommend a sci-fi movie", func(model.Fragment) error {
		emitted++
		return nil
	})
	node, ok := workflow.FailedNode(err)
	require.True(t, ok)
	assert.Equal(t, model.NodeChat, node)
	assert.Equal(t, 1, emitted)

	history, err := svc.History(ctx, conv.ConversationID, 0)
	require.NoError(t, err)
	assert.Equal(t, []model.MessageType{model.MessageTypeSystem, model.MessageTypeHuman, model.MessageTypeSystem}, types(history))
	assert.Equal(t, conversations.ErrorMessage, history[2].Text)
	assert.Equal(t, []string{"failed"}, rec.outcomes)
}

func TestService_ClientGoneCancelsModel(t *testing.T) {
	cancelled := make(chan error, 1)
	svc, _, _ := newService(t, &stubModel{chunks: []string{"Once"}, block: cancelled})
	ctx := context.Background()
	conv, err := svc.CreateConversation(ctx)
	require.NoError(t, err)

	gone := errors.New("write: broken pipe")
	_, err = svc.Stream(ctx, conv.ConversationID, "tell me a story", func(model.Fragment) error { return gone })
	assert.ErrorIs(t, err, gone)

	select {
	case cerr := <-cancelled:
		assert.ErrorIs(t, cerr, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("model did not observe cancellation")
	}

	history, err := svc.History(ctx, conv.ConversationID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, conversations.ErrorMessage, history[0].Text)
}

func TestService_HistoryRejectsInvalidID(t *testing.T) {
	svc, _, _ := newService(t, &stubModel{})
	_, err := svc.History(context.Background(), "c1", 10)
	assert.ErrorIs(t, err, model.ErrInvalidConversationID)
}
