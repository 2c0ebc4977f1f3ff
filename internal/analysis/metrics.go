package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// auditsTotal counts finished audits.
	// Labels: provider, outcome (ok, precondition, backend, malformed, invalid)
	auditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "green_refactor",
		Subsystem: "analysis",
		Name:      "audits_total",
		Help:      "Total code audits by outcome",
	}, []string{"provider", "outcome"})

	// auditDuration measures the model round trip.
	auditDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "green_refactor",
		Subsystem: "analysis",
		Name:      "audit_duration_seconds",
		Help:      "LLM audit latency in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	// tokensUsed tracks token usage reported by the backend.
	tokensUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "green_refactor",
		Subsystem: "analysis",
		Name:      "tokens_total",
		Help:      "Total tokens consumed by audits",
	}, []string{"provider"})
)
