package workflow

import (
	"fmt"
	"sort"

	logx "github.com/themovie-ai/server/pkg/logger"
)

// Reserved markers for the entry point and termination of a graph.
const (
	START = "__start__"
	END   = "__end__"
)

type branch struct {
	route      RouterFunc
	successors []string
}

// Graph registers nodes and edges. It is not safe for concurrent use; build
// it once at startup and Compile it.
type Graph struct {
	order    []string
	nodes    map[string]Node
	edges    map[string][]string
	branches map[string]*branch
	opts     options
}

type options struct {
	hooks      Hooks
	bufferSize int
}

// Option configures a graph and the runnables compiled from it.
type Option func(*options)

// WithHooks installs lifecycle observers.
func WithHooks(h Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithBufferSize sets the channel capacity used by Runnable.Stream.
func WithBufferSize(n int) Option {
	return func(o *options) { o.bufferSize = n }
}

// NewGraph returns an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		nodes:    make(map[string]Node),
		edges:    make(map[string][]string),
		branches: make(map[string]*branch),
	}
	for _, opt := range opts {
		opt(&g.opts)
	}
	return g
}

// AddNode registers n under name.
func (g *Graph) AddNode(name string, n Node) error {
	if _, ok := g.nodes[name]; ok {
		return &DuplicateNodeError{Name: name}
	}
	g.nodes[name] = n
	g.order = append(g.order, name)
	return nil
}

// AddEdge registers a fixed transition. from may be START, to may be END.
func (g *Graph) AddEdge(from, to string) error {
	if from != START && !g.has(from) {
		return &UnknownNodeError{Name: from}
	}
	if to != END && !g.has(to) {
		return &UnknownNodeError{Name: to}
	}
	g.edges[from] = append(g.edges[from], to)
	return nil
}

// AddBranch registers a routed transition: after from returns, route picks
// one of successors.
func (g *Graph) AddBranch(from string, route RouterFunc, successors ...string) error {
	if !g.has(from) {
		return &UnknownNodeError{Name: from}
	}
	for _, s := range successors {
		if s != END && !g.has(s) {
			return &UnknownNodeError{Name: s}
		}
	}
	if _, ok := g.branches[from]; ok {
		return fmt.Errorf("workflow: node %q already has a branch", from)
	}
	g.branches[from] = &branch{route: route, successors: append([]string(nil), successors...)}
	return nil
}

func (g *Graph) has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Compile validates the graph and freezes it into an execution plan. All
// violations are reported together.
func (g *Graph) Compile() (*Runnable, error) {
	var violations []string

	for _, name := range g.order {
		if name == START || name == END {
			violations = append(violations, fmt.Sprintf("node name %q collides with a reserved marker", name))
		}
	}

	switch n := len(g.edges[START]); n {
	case 0:
		violations = append(violations, "START has no outgoing edge")
	case 1:
		if g.edges[START][0] == END {
			violations = append(violations, "START leads directly to END")
		}
	default:
		violations = append(violations, fmt.Sprintf("START has %d outgoing edges, want exactly 1", n))
	}

	reachable := g.reachable()
	for _, name := range g.order {
		if !reachable[name] {
			continue
		}
		edges, br := g.edges[name], g.branches[name]
		switch {
		case len(edges) == 0 && br == nil:
			violations = append(violations, fmt.Sprintf("node %q has no outgoing edge", name))
		case len(edges) > 0 && br != nil:
			violations = append(violations, fmt.Sprintf("node %q has both an edge and a branch", name))
		case len(edges) > 1:
			violations = append(violations, fmt.Sprintf("node %q has %d outgoing edges, use a branch to choose between successors", name, len(edges)))
		case br != nil && len(br.successors) == 0:
			violations = append(violations, fmt.Sprintf("node %q has a branch without successors", name))
		}
	}

	if len(violations) > 0 {
		return nil, &GraphValidationError{Violations: violations}
	}

	for _, name := range g.order {
		if !reachable[name] {
			logx.Warn().Str("node", name).Msg("node is unreachable from START")
		}
	}

	plan := make(map[string]step, len(g.nodes))
	for _, name := range g.order {
		s := step{name: name, node: g.nodes[name]}
		if br := g.branches[name]; br != nil {
			s.route = br.route
			s.successors = make(map[string]bool, len(br.successors))
			for _, succ := range br.successors {
				s.successors[succ] = true
			}
		} else if edges := g.edges[name]; len(edges) == 1 {
			s.next = edges[0]
		}
		plan[name] = s
	}

	return &Runnable{
		entry:  g.edges[START][0],
		plan:   plan,
		order:  append([]string(nil), g.order...),
		hooks:  g.opts.hooks,
		buffer: g.opts.bufferSize,
	}, nil
}

func (g *Graph) reachable() map[string]bool {
	seen := make(map[string]bool)
	queue := append([]string(nil), g.edges[START]...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if name == END || seen[name] {
			continue
		}
		seen[name] = true
		queue = append(queue, g.edges[name]...)
		if br := g.branches[name]; br != nil {
			queue = append(queue, br.successors...)
		}
	}
	return seen
}

// NodeInfo describes one compiled node for introspection.
type NodeInfo struct {
	Name       string   `json:"name"`
	Successors []string `json:"successors"`
	Branching  bool     `json:"branching"`
}

func (s step) info() NodeInfo {
	ni := NodeInfo{Name: s.name, Branching: s.route != nil}
	if s.route != nil {
		for succ := range s.successors {
			ni.Successors = append(ni.Successors, succ)
		}
		sort.Strings(ni.Successors)
	} else if s.next != "" {
		ni.Successors = []string{s.next}
	}
	return ni
}
