// Package metrics holds the Prometheus collectors for inference runs,
// knowledge base edits and tool calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wagnerlima/psytech-mcp/internal/models"
)

const namespace = "psytech"

// Outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	inferenceRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "inference_runs_total",
		Help:      "Forward-chaining runs executed",
	})

	inferencePasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inference_passes",
		Help:      "Passes needed to reach the fixed point",
		Buckets:   []float64{1, 2, 3, 4, 5, 8, 13, 21},
	})

	rulesFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rules_fired_total",
		Help:      "Rules fired across all runs",
	})

	diagnosesReported = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "diagnoses_reported_total",
		Help:      "Diagnoses reported across all runs",
	})

	kbMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "knowledge_mutations_total",
		Help:      "Knowledge base edits by kind and outcome",
	}, []string{"kind", "outcome"})

	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "MCP tool invocations by tool and outcome",
	}, []string{"tool", "outcome"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_duration_seconds",
		Help:      "MCP tool handler latency",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"tool"})
)

// ObserveInference records one completed run.
func ObserveInference(r models.InferenceResult) {
	inferenceRuns.Inc()
	inferencePasses.Observe(float64(r.Passes))
	for _, e := range r.Trace {
		if e.Fired {
			rulesFired.Inc()
		}
	}
	diagnosesReported.Add(float64(len(r.Diagnoses)))
}

// KnowledgeMutation records an add_symptom or add_rule attempt.
func KnowledgeMutation(kind, outcome string) {
	kbMutations.WithLabelValues(kind, outcome).Inc()
}

// ToolCall records a tool invocation.
func ToolCall(tool, outcome string, seconds float64) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool).Observe(seconds)
}
