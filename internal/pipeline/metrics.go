package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// startsTotal counts start-analysis invocations.
	// Labels: outcome (ok, busy, precondition, cancelled, failed)
	startsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "green_refactor",
		Subsystem: "pipeline",
		Name:      "starts_total",
		Help:      "Start-analysis invocations by outcome",
	}, []string{"outcome"})

	ecoPointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "green_refactor",
		Subsystem: "pipeline",
		Name:      "eco_points_total",
		Help:      "Eco-points recorded in the ledger by this process",
	})
)
