package conversations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/workflow"
	errx "github.com/themovie-ai/server/internal/core/error"
	logx "github.com/themovie-ai/server/pkg/logger"
)

const (
	// ConversationCreatedMessage marks the start of a conversation.
	ConversationCreatedMessage = "CONVERSATION_CREATED"
	// ErrorMessage is persisted when a turn fails.
	ErrorMessage = "ERROR"
)

// ErrEmptyMessage is returned when a turn carries no text.
var ErrEmptyMessage = errors.New("message is empty")

// Conversation is returned when a new conversation starts.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// EmitFunc receives every fragment of a turn as it is produced. Returning an
// error stops the turn.
type EmitFunc func(model.Fragment) error

// Recorder observes turns. Every method must be safe for concurrent use.
type Recorder interface {
	Fragment(node string)
	Turn(outcome string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) Fragment(string)            {}
func (nopRecorder) Turn(string, time.Duration) {}

// Service runs conversation turns against the compiled graph and keeps the
// transcript in the message store.
type Service struct {
	store    model.MessageStore
	runner   *workflow.Runnable
	recorder Recorder
}

type Option func(*Service)

// WithRecorder installs a turn observer.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(store model.MessageStore, runner *workflow.Runnable, opts ...Option) *Service {
	s := &Service{store: store, runner: runner, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateConversation starts a conversation and records its creation marker.
func (s *Service) CreateConversation(ctx context.Context) (*Conversation, error) {
	m := &model.Message{
		ConversationID: uuid.NewString(),
		Type:           model.MessageTypeSystem,
		Text:           ConversationCreatedMessage,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		logx.Error().Err(err).Msg("failed to create conversation")
		return nil, err
	}
	logx.Info().Str("conversation_id", m.ConversationID).Msg("new conversation created")
	return &Conversation{ConversationID: m.ConversationID, CreatedAt: m.CreatedAt}, nil
}

// Stream runs one turn: it stores the user message, runs the graph, hands
// every fragment to emit and stores the answer. A failed turn leaves an
// ERROR system message in the conversation, which needs a valid id; an
// invalid id is rejected before anything is written.
func (s *Service) Stream(ctx context.Context, conversationID, message string, emit EmitFunc) (model.ConversationState, error) {
	started := time.Now()
	id, err := model.ValidateConversationID(conversationID)
	if err != nil {
		s.recorder.Turn("rejected", time.Since(started))
		return model.ConversationState{}, errx.Validation(err, "invalid conversation id")
	}
	if strings.TrimSpace(message) == "" {
		s.recorder.Turn("rejected", time.Since(started))
		return model.ConversationState{}, errx.Validation(ErrEmptyMessage, "message is required")
	}

	final, err := s.turn(ctx, id, message, emit)
	if err != nil {
		s.recorder.Turn("failed", time.Since(started))
		s.reportFailure(ctx, id, err)
		return model.ConversationState{}, err
	}
	s.recorder.Turn("completed", time.Since(started))
	return final, nil
}

func (s *Service) turn(ctx context.Context, id, message string, emit EmitFunc) (model.ConversationState, error) {
	if err := s.store.Insert(ctx, &model.Message{ConversationID: id, Type: model.MessageTypeHuman, Text: message}); err != nil {
		return model.ConversationState{}, err
	}

	runID := uuid.NewString()
	ex := s.runner.Stream(ctx, model.NewConversationState(id, model.MessageTypeHuman, message), map[string]any{
		workflow.MetaRunID: runID,
	})

	var answer strings.Builder
	var emitErr error
	for f, err := range ex.All(ctx) {
		if err != nil {
			break
		}
		answer.WriteString(f.Text())
		s.recorder.Fragment(f.NodeName)
		if emitErr = emit(f); emitErr != nil {
			logx.Warn().Err(emitErr).Str("conversation_id", id).Str("run_id", runID).Msg("client gone, aborting turn")
			break
		}
	}
	ex.Abort()

	final, err := ex.Wait()
	if emitErr != nil {
		return model.ConversationState{}, errors.Join(emitErr, err)
	}
	if err != nil {
		return model.ConversationState{}, err
	}

	if answer.Len() > 0 {
		if err := s.store.Insert(ctx, &model.Message{ConversationID: id, Type: model.MessageTypeAI, Text: answer.String()}); err != nil {
			return model.ConversationState{}, err
		}
	}
	logx.Info().
		Str("conversation_id", id).
		Str("run_id", runID).
		Str("node", final.NodeName).
		Int("answer_len", answer.Len()).
		Msg("turn completed")
	return final, nil
}

// reportFailure records the failure in the conversation. The request context
// may already be cancelled, so the write runs detached from it.
func (s *Service) reportFailure(ctx context.Context, id string, cause error) {
	node, _ := workflow.FailedNode(cause)
	logx.Error().Err(cause).Str("conversation_id", id).Str("node", node).Msg("turn failed")

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Insert(wctx, &model.Message{ConversationID: id, Type: model.MessageTypeSystem, Text: ErrorMessage}); err != nil {
		logx.Error().Err(err).Str("conversation_id", id).Msg("failed to record turn failure")
	}
}

// History returns at most limit of the most recent messages, oldest first.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	id, err := model.ValidateConversationID(conversationID)
	if err != nil {
		return nil, errx.Validation(err, "invalid conversation id")
	}
	return s.store.Find(ctx, model.MessageFilter{ConversationID: id}, limit)
}

// Graph exposes the compiled graph for introspection.
func (s *Service) Graph() *workflow.Runnable {
	return s.runner
}
