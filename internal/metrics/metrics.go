package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/themovie-ai/server/internal/agent/workflow"
)

// Metrics holds the conversation server collectors.
type Metrics struct {
	registry     *prometheus.Registry
	nodeRuns     *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	runs         *prometheus.CounterVec
	fragments    *prometheus.CounterVec
	turns        *prometheus.HistogramVec
}

// New registers the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversation_node_runs_total",
				Help: "Node invocations by node and outcome",
			},
			[]string{"node", "outcome"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conversation_node_duration_seconds",
				Help:    "Duration of node invocations",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"node"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversation_graph_runs_total",
				Help: "Graph runs by outcome",
			},
			[]string{"outcome"},
		),
		fragments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conversation_fragments_total",
				Help: "Fragments streamed to clients",
			},
			[]string{"node"},
		),
		turns: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conversation_turn_duration_seconds",
				Help:    "Duration of conversation turns by outcome",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(m.nodeRuns, m.nodeDuration, m.runs, m.fragments, m.turns)
	return m
}

// Hooks records node and run metrics from the workflow engine.
func (m *Metrics) Hooks() workflow.Hooks {
	return workflow.Hooks{
		OnNodeEnd: func(ctx context.Context, rc workflow.RunContext, elapsed time.Duration, err error) {
			m.nodeRuns.WithLabelValues(rc.NodeName(), outcome(err)).Inc()
			m.nodeDuration.WithLabelValues(rc.NodeName()).Observe(elapsed.Seconds())
		},
		OnRunEnd: func(ctx context.Context, runID string, elapsed time.Duration, err error) {
			m.runs.WithLabelValues(outcome(err)).Inc()
		},
	}
}

// Fragment counts one streamed fragment.
func (m *Metrics) Fragment(node string) {
	m.fragments.WithLabelValues(node).Inc()
}

// Turn observes a finished conversation turn.
func (m *Metrics) Turn(outcome string, elapsed time.Duration) {
	m.turns.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
