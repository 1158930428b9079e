package workflow

import (
	"context"
	"time"

	"github.com/themovie-ai/server/internal/agent/model"
)

// Node is one unit of work in a graph. A node either returns the updated
// state, having written zero or more fragments to ch, or fails. A failed
// node's state is never propagated.
type Node interface {
	Run(ctx context.Context, state model.ConversationState, rc RunContext, ch *Channel) (model.ConversationState, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc func(ctx context.Context, state model.ConversationState, rc RunContext, ch *Channel) (model.ConversationState, error)

func (f NodeFunc) Run(ctx context.Context, state model.ConversationState, rc RunContext, ch *Channel) (model.ConversationState, error) {
	return f(ctx, state, rc, ch)
}

// RouterFunc picks the successor of a branching node from the state it
// returned. The result must be one of the successors declared with AddBranch.
type RouterFunc func(ctx context.Context, state model.ConversationState) (string, error)

// RunContext is the read-only metadata a node receives for one invocation.
type RunContext struct {
	runID string
	node  string
	step  int
	meta  map[string]any
}

// NodeName is the name the active node was registered under.
func (rc RunContext) NodeName() string { return rc.node }

// RunID identifies the run.
func (rc RunContext) RunID() string { return rc.runID }

// Step is the 1-based position of the node within the run.
func (rc RunContext) Step() int { return rc.step }

// Value returns caller-supplied metadata.
func (rc RunContext) Value(key string) (any, bool) {
	v, ok := rc.meta[key]
	return v, ok
}

// String returns caller-supplied metadata as a string, "" if absent.
func (rc RunContext) String(key string) string {
	v, _ := rc.meta[key].(string)
	return v
}

// NewRunContext builds a context for invoking a node outside a graph, as
// tests do.
func NewRunContext(runID, node string, meta map[string]any) RunContext {
	return RunContext{runID: runID, node: node, step: 1, meta: meta}
}

// Hooks observe a run. Every field is optional.
type Hooks struct {
	OnNodeStart func(ctx context.Context, rc RunContext)
	OnNodeEnd   func(ctx context.Context, rc RunContext, elapsed time.Duration, err error)
	OnRunEnd    func(ctx context.Context, runID string, elapsed time.Duration, err error)
}
