package workflow_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/themovie-ai/server/internal/agent/model"
	"github.com/themovie-ai/server/internal/agent/workflow"
)

func passThrough(ctx context.Context, s model.ConversationState, rc workflow.RunContext, ch *workflow.Channel) (model.ConversationState, error) {
	return s.WithNode(rc.NodeName()), nil
}

func TestGraph_AddNode_Duplicate(t *testing.T) {
	g := workflow.NewGraph()
	require.NoError(t, g.AddNode("a", workflow.NodeFunc(passThrough)))

	err := g.AddNode("a", workflow.NodeFunc(passThrough))
	var dup *workflow.DuplicateNodeError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.Name)
}

func TestGraph_AddEdge_Unknown(t *testing.T) {
	g := workflow.NewGraph()
	require.NoError(t, g.AddNode("a", workflow.NodeFunc(passThrough)))

	tests := []struct {
		name     string
		from, to string
		missing  string
	}{
		{name: "unknown source", from: "ghost", to: "a", missing: "ghost"},
		{name: "unknown target", from: "a", to: "ghost", missing: "ghost"},
		{name: "END as source", from: workflow.END, to: "a", missing: workflow.END},
		{name: "START as target", from: "a", to: workflow.START, missing: workflow.START},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.AddEdge(tt.from, tt.to)
			var unknown *workflow.UnknownNodeError
			require.ErrorAs(t, err, &unknown)
			assert.Equal(t, tt.missing, unknown.Name)
		})
	}

	assert.NoError(t, g.AddEdge(workflow.START, "a"))
	assert.NoError(t, g.AddEdge("a", workflow.END))
}

func TestGraph_AddBranch_Unknown(t *testing.T) {
	g := workflow.NewGraph()
	require.NoError(t, g.AddNode("router", workflow.NodeFunc(passThrough)))
	require.NoError(t, g.AddNode("left", workflow.NodeFunc(passThrough)))

	route := func(context.Context, model.ConversationState) (string, error) { return "left", nil }
	err := g.AddBranch("router", route, "left", "right")
	var unknown *workflow.UnknownNodeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "right", unknown.Name)

	err = g.AddBranch("nobody", route, "left")
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nobody", unknown.Name)
}

func TestGraph_Compile_Valid(t *testing.T) {
	g := workflow.NewGraph()
	require.NoError(t, g.AddNode("a", workflow.NodeFunc(passThrough)))
	require.NoError(t, g.AddNode("b", workflow.NodeFunc(passThrough)))
	require.NoError(t, g.AddEdge(workflow.START, "a"))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", workflow.END))

	r, err := g.Compile()
	require.NoError(t, err)
	assert.Equal(t, "a", r.Entry())
	assert.Equal(t, []workflow.NodeInfo{
		{Name: "a", Successors: []string{"b"}},
		{Name: "b", Successors: []string{workflow.END}},
	}, r.Describe())
}

func TestGraph_Compile_ListsEveryViolation(t *testing.T) {
	g := workflow.NewGraph()
	for _, n := range []string{"a", "b", "c", workflow.END} {
		require.NoError(t, g.AddNode(n, workflow.NodeFunc(passThrough)))
	}
	require.NoError(t, g.AddEdge(workflow.START, "a"))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("a", "c"))
	// b and c have no outgoing edge

	_, err := g.Compile()
	var gve *workflow.GraphValidationError
	require.ErrorAs(t, err, &gve)
	assert.Len(t, gve.Violations, 4)
	assert.Contains(t, gve.Violations, `node name "__end__" collides with a reserved marker`)
	assert.Contains(t, gve.Violations, `node "a" has 2 outgoing edges, use a branch to choose between successors`)
	assert.Contains(t, gve.Violations, `node "b" has no outgoing edge`)
	assert.Contains(t, gve.Violations, `node "c" has no outgoing edge`)
	assert.Contains(t, err.Error(), "4 violations")
}

func TestGraph_Compile_StartEdges(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		g := workflow.NewGraph()
		require.NoError(t, g.AddNode("a", workflow.NodeFunc(passThrough)))
		require.NoError(t, g.AddEdge("a", workflow.END))

		_, err := g.Compile()
		var gve *workflow.GraphValidationError
		require.ErrorAs(t, err, &gve)
		assert.Equal(t, []string{"START has no outgoing edge"}, gve.Violations)
	})

	t.Run("two", func(t *testing.T) {
		g := workflow.NewGraph()
		require.NoError(t, g.AddNode("a", workflow.NodeFunc(passThrough)))
		require.NoError(t, g.AddNode("b", workflow.NodeFunc(passThrough)))
		require.NoError(t, g.AddEdge(workflow.START, "a"))
		require.NoError(t, g.AddEdge(workflow.START, "b"))
		require.NoError(t, g.AddEdge("a", workflow.END))
		require.NoError(t, g.AddEdge("b", workflow.END))

		_, err := g.Compile()
		var gve *workflow.GraphValidationError
		require.ErrorAs(t, err, &gve)
		assert.Equal(t, []string{"START has 2 outgoing edges, want exactly 1"}, gve.Violations)
	})
}

func TestGraph_Compile_UnreachableNodeWithoutEdgeIsAccepted(t *testing.T) {
	g := workflow.NewGraph()
	require.NoError(t, g.AddNode("a", workflow.NodeFunc(passThrough)))
	require.NoError(t, g.AddNode("orphan", workflow.NodeFunc(passThrough)))
	require.NoError(t, g.AddEdge(workflow.START, "a"))
	require.NoError(t, g.AddEdge("a", workflow.END))

	_, err := g.Compile()
	assert.NoError(t, err)
}

func TestGraph_Compile_BranchCountsAsOutgoingEdge(t *testing.T) {
	g := workflow.NewGraph()
	for _, n := range []string{"router", "left", "right"} {
		require.NoError(t, g.AddNode(n, workflow.NodeFunc(passThrough)))
	}
	require.NoError(t, g.AddEdge(workflow.START, "router"))
	require.NoError(t, g.AddBranch("router", func(context.Context, model.ConversationState) (string, error) {
		return "left", nil
	}, "left", "right"))
	require.NoError(t, g.AddEdge("left", workflow.END))

	_, err := g.Compile()
	var gve *workflow.GraphValidationError
	require.ErrorAs(t, err, &gve)
	assert.Equal(t, []string{`node "right" has no outgoing edge`}, gve.Violations)

	require.NoError(t, g.AddEdge("right", workflow.END))
	r, err := g.Compile()
	require.NoError(t, err)
	assert.Equal(t, workflow.NodeInfo{Name: "router", Successors: []string{"left", "right"}, Branching: true}, r.Describe()[0])
}

func TestGraphValidationError_SingleViolationMessage(t *testing.T) {
	err := &workflow.GraphValidationError{Violations: []string{"START has no outgoing edge"}}
	assert.Equal(t, "workflow: invalid graph: START has no outgoing edge", err.Error())
}

func TestNewStreamingError_KeepsOriginalAttribution(t *testing.T) {
	inner := &workflow.StreamingError{Node: "chat_node", Err: errors.New("boom")}
	got := workflow.NewStreamingError("other", inner)
	assert.Same(t, inner, got)

	node, ok := workflow.FailedNode(errors.Join(errors.New("ctx"), got))
	assert.True(t, ok)
	assert.Equal(t, "chat_node", node)
}
