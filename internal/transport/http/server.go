package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/themovie-ai/server/internal/agent/graph/conversations"
	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/workflow"
	errx "github.com/themovie-ai/server/internal/core/error"
	"github.com/themovie-ai/server/internal/presentation/mermaid"
	logx "github.com/themovie-ai/server/pkg/logger"
)

const defaultHistoryLimit = 50

// ConversationService is what the HTTP layer needs from the conversation
// service.
type ConversationService interface {
	CreateConversation(ctx context.Context) (*conversations.Conversation, error)
	Stream(ctx context.Context, conversationID, message string, emit conversations.EmitFunc) (model.ConversationState, error)
	History(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
}

// Server exposes conversations over HTTP and streams answers as SSE.
type Server struct {
	svc     ConversationService
	diagram string
	metrics http.Handler
}

type Option func(*Server)

// WithGraph publishes the compiled graph on GET /api/v1/graph.
func WithGraph(r *workflow.Runnable) Option {
	return func(s *Server) {
		s.diagram = mermaid.Generate(r.Entry(), r.Describe(), nil)
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewHandler builds the router.
func NewHandler(svc ConversationService, opts ...Option) http.Handler {
	s := &Server{svc: svc}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Status: "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.Chat)
		r.Get("/conversations/{id}/messages", s.Messages)
		if s.diagram != "" {
			r.Get("/graph", s.Graph)
		}
	})
	return r
}

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// Chat handles POST /api/v1/chat. Without a conversation id it starts a new
// conversation; otherwise it streams the answer to message.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logx.Warn().Err(err).Msg("chat: invalid request body")
		writeError(w, errx.Validation(err, "invalid request body"))
		return
	}

	if body.ConversationID == "" {
		conv, err := s.svc.CreateConversation(r.Context())
		if err != nil {
			writeError(w, errx.FromError(err))
			return
		}
		writeJSON(w, http.StatusOK, envelope{Status: "success", Data: conv})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, errx.New(errors.New("response writer cannot flush"), http.StatusInternalServerError, errx.SystemErrorMessage))
		return
	}

	// Headers are held back until the first fragment so that a turn failing
	// before any output still gets a proper status code.
	started := false
	begin := func() {
		if started {
			return
		}
		started = true
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
	}

	emit := func(f model.Fragment) error {
		payload, err := json.Marshal(f)
		if err != nil {
			return err
		}
		begin()
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	_, err := s.svc.Stream(r.Context(), body.ConversationID, body.Message, emit)
	if err != nil {
		appErr := streamError(err)
		if !started {
			writeError(w, appErr)
			return
		}
		payload, _ := json.Marshal(envelope{Status: "error", Message: appErr.Message})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		flusher.Flush()
		return
	}

	begin()
	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

// streamError maps a failed turn to the client-facing error. Node failures
// surface as the stream error whatever collaborator caused them; the cause
// stays in the logs.
func streamError(err error) *errx.AppError {
	if _, ok := workflow.FailedNode(err); ok {
		return errx.New(err, http.StatusBadGateway, errx.StreamErrorMessage)
	}
	return errx.FromError(err)
}

// Messages handles GET /api/v1/conversations/{id}/messages.
func (s *Server) Messages(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, errx.Validation(fmt.Errorf("limit %q", v), "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	msgs, err := s.svc.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, errx.FromError(err))
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: msgs})
}

// Graph handles GET /api/v1/graph.
func (s *Server) Graph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, s.diagram)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, appErr *errx.AppError) {
	if appErr.Status >= http.StatusInternalServerError {
		logx.Error().Err(appErr).Int("status", appErr.Status).Msg("request failed")
	}
	writeJSON(w, appErr.Status, envelope{Status: "error", Message: appErr.Message})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		logx.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(started)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
