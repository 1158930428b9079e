package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrChannelClosed is returned by Send once the owning run has exited.
	ErrChannelClosed = errors.New("workflow: channel closed")
	// ErrConsumerGone is returned by Send after the consumer aborted.
	ErrConsumerGone = errors.New("workflow: consumer stopped reading")
	// ErrNodeRevisited is raised when a run would execute a node twice.
	ErrNodeRevisited = errors.New("workflow: node revisited within a run")
)

// UnknownNodeError is returned when an edge or branch references a node
// that has not been registered.
type UnknownNodeError struct {
	Name string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("workflow: unknown node %q", e.Name)
}

// DuplicateNodeError is returned when a node name is registered twice.
type DuplicateNodeError struct {
	Name string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("workflow: node %q already registered", e.Name)
}

// GraphValidationError lists every structural violation found by Compile.
type GraphValidationError struct {
	Violations []string
}

func (e *GraphValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "workflow: invalid graph: " + e.Violations[0]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "workflow: invalid graph: %d violations:", len(e.Violations))
	for i, v := range e.Violations {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, v)
	}
	return sb.String()
}

// StreamingError is the single runtime error surface of a run. Node names
// the node that was active when the run failed.
type StreamingError struct {
	Node string
	Err  error
}

func (e *StreamingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("workflow: streaming failed in node %q", e.Node)
	}
	return fmt.Sprintf("workflow: streaming failed in node %q: %v", e.Node, e.Err)
}

func (e *StreamingError) Unwrap() error {
	return e.Err
}

// NewStreamingError attributes err to node. An err that already is a
// StreamingError is returned unchanged so the original attribution survives.
func NewStreamingError(node string, err error) *StreamingError {
	var se *StreamingError
	if errors.As(err, &se) {
		return se
	}
	return &StreamingError{Node: node, Err: err}
}

// FailedNode reports the node a run failed in, if err is a StreamingError.
func FailedNode(err error) (string, bool) {
	var se *StreamingError
	if errors.As(err, &se) {
		return se.Node, true
	}
	return "", false
}
