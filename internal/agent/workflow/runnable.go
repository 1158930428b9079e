package workflow

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/themovie-ai/server/internal/agent/model"
	logx "github.com/themovie-ai/server/pkg/logger"
)

// MetaRunID is the metadata key a caller can use to fix the run id.
const MetaRunID = "run_id"

type step struct {
	name       string
	node       Node
	next       string
	route      RouterFunc
	successors map[string]bool
}

// Runnable is a compiled, immutable execution plan. It is safe to run
// concurrently; every run owns its own state and channel.
type Runnable struct {
	entry  string
	plan   map[string]step
	order  []string
	hooks  Hooks
	buffer int
}

// Describe lists the compiled nodes in registration order.
func (r *Runnable) Describe() []NodeInfo {
	out := make([]NodeInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.plan[name].info())
	}
	return out
}

// Entry is the first node executed by every run.
func (r *Runnable) Entry() string {
	return r.entry
}

// Run executes the graph against state, one node at a time, until a node's
// successor is END. ch is closed when Run returns, with the run error if
// any. On failure the returned state is the zero value and the error is a
// *StreamingError naming the active node.
func (r *Runnable) Run(ctx context.Context, state model.ConversationState, meta map[string]any, ch *Channel) (final model.ConversationState, err error) {
	if ch == nil {
		return model.ConversationState{}, errors.New("workflow: nil channel")
	}

	runID, _ := meta[MetaRunID].(string)
	if runID == "" {
		runID = uuid.NewString()
	}
	started := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ch.Aborted():
			cancel()
		case <-ctx.Done():
		}
	}()

	defer func() {
		if err != nil {
			final = model.ConversationState{}
			logx.Error().Err(err).Str("run_id", runID).Str("conversation_id", state.ConversationID()).Msg("workflow run failed")
		}
		ch.close(err)
		if r.hooks.OnRunEnd != nil {
			r.hooks.OnRunEnd(ctx, runID, time.Since(started), err)
		}
	}()

	if vErr := state.Validate(); vErr != nil {
		return model.ConversationState{}, NewStreamingError(START, vErr)
	}
	conversationID := state.ConversationID()

	visited := make(map[string]bool, len(r.plan))
	current := r.entry
	for n := 1; current != END; n++ {
		if visited[current] {
			return model.ConversationState{}, NewStreamingError(current, ErrNodeRevisited)
		}
		visited[current] = true

		s, ok := r.plan[current]
		if !ok {
			return model.ConversationState{}, NewStreamingError(current, &UnknownNodeError{Name: current})
		}
		if cErr := ctx.Err(); cErr != nil {
			return model.ConversationState{}, NewStreamingError(current, cErr)
		}

		rc := RunContext{runID: runID, node: current, step: n, meta: meta}
		next, nErr := r.invoke(ctx, s, state, rc, ch)
		if nErr != nil {
			return model.ConversationState{}, NewStreamingError(current, nErr)
		}
		if cErr := ctx.Err(); cErr != nil {
			return model.ConversationState{}, NewStreamingError(current, cErr)
		}
		if next.ConversationID() != conversationID {
			return model.ConversationState{}, NewStreamingError(current, fmt.Errorf("conversation id changed from %q to %q", conversationID, next.ConversationID()))
		}
		if vErr := next.Validate(); vErr != nil {
			return model.ConversationState{}, NewStreamingError(current, vErr)
		}
		state = next

		current, err = r.successor(ctx, s, state)
		if err != nil {
			return model.ConversationState{}, NewStreamingError(s.name, err)
		}
	}

	logx.Debug().
		Str("run_id", runID).
		Str("conversation_id", conversationID).
		Str("last_node", state.NodeName).
		Dur("elapsed", time.Since(started)).
		Msg("workflow run completed")
	return state, nil
}

func (r *Runnable) invoke(ctx context.Context, s step, state model.ConversationState, rc RunContext, ch *Channel) (out model.ConversationState, err error) {
	if r.hooks.OnNodeStart != nil {
		r.hooks.OnNodeStart(ctx, rc)
	}
	logx.Debug().Str("run_id", rc.runID).Str("node", s.name).Int("step", rc.step).Msg("node started")

	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("node panicked: %v", p)
		}
		if r.hooks.OnNodeEnd != nil {
			r.hooks.OnNodeEnd(ctx, rc, time.Since(started), err)
		}
	}()

	return s.node.Run(ctx, state, rc, ch)
}

func (r *Runnable) successor(ctx context.Context, s step, state model.ConversationState) (string, error) {
	if s.route == nil {
		return s.next, nil
	}
	name, err := s.route(ctx, state)
	if err != nil {
		return "", fmt.Errorf("route: %w", err)
	}
	if !s.successors[name] {
		return "", fmt.Errorf("route selected undeclared successor %q", name)
	}
	logx.Debug().Str("node", s.name).Str("successor", name).Msg("branch resolved")
	return name, nil
}

// Execution is a run in progress, as seen by the consumer.
type Execution struct {
	ch    *Channel
	done  chan struct{}
	state model.ConversationState
	err   error
}

// Stream starts a run in its own goroutine and returns the consumer side.
// The caller must drain the fragments or call Abort, otherwise the run
// stalls on a full buffer.
func (r *Runnable) Stream(ctx context.Context, state model.ConversationState, meta map[string]any) *Execution {
	ex := &Execution{
		ch:   NewChannel(r.buffer),
		done: make(chan struct{}),
	}
	go func() {
		defer close(ex.done)
		ex.state, ex.err = r.Run(ctx, state, meta, ex.ch)
	}()
	return ex
}

// Recv returns the next fragment, io.EOF after a clean run or the run error.
func (e *Execution) Recv(ctx context.Context) (model.Fragment, error) {
	return e.ch.Recv(ctx)
}

// All yields every fragment; see Channel.All.
func (e *Execution) All(ctx context.Context) iter.Seq2[model.Fragment, error] {
	return e.ch.All(ctx)
}

// Abort cancels the run from the consumer side.
func (e *Execution) Abort() {
	e.ch.Abort()
}

// Wait blocks until the run exits and returns its outcome.
func (e *Execution) Wait() (model.ConversationState, error) {
	<-e.done
	return e.state, e.err
}
