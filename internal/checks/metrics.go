package checks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "statusgarden"

var (
	checkRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "runs_total",
			Help:      "Total check executions by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	checkRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checks",
			Name:      "run_duration_seconds",
			Help:      "Time spent executing a check",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"type"},
	)
)

// recordCheckRun records one check execution.
func recordCheckRun(checkType string, succeeded bool, duration time.Duration) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	checkRuns.WithLabelValues(checkType, outcome).Inc()
	checkRunDuration.WithLabelValues(checkType).Observe(duration.Seconds())
}
