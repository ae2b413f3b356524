// Package metrics holds the Prometheus collectors shared by the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReasoningSteps counts orchestrator steps by tool and status.
	ReasoningSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayline_reasoning_steps_total",
		Help: "Reasoning steps executed by tool and status",
	}, []string{"tool", "status"})

	// ReasoningSessions counts finished sessions by status.
	ReasoningSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayline_reasoning_sessions_total",
		Help: "Reasoning sessions by final status",
	}, []string{"status"})

	// TextServiceCalls counts calls to the text intelligence service.
	TextServiceCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayline_text_service_calls_total",
		Help: "Text intelligence service calls by operation and outcome",
	}, []string{"operation", "outcome"})

	// Candidates counts bridging candidates by lane and outcome.
	Candidates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayline_candidates_total",
		Help: "Bridging candidates by lane and outcome",
	}, []string{"lane", "outcome"})

	// GraphMutations counts merge attempts by result.
	GraphMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wayline_graph_mutations_total",
		Help: "Graph merge attempts by result",
	}, []string{"result"})

	// ReflectionApply tracks effect computation latency per path.
	ReflectionApply = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wayline_reflection_apply_seconds",
		Help:    "Reflection effect application latency by path",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"path"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
