package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dispatches = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statusgarden",
		Subsystem: "scheduler",
		Name:      "dispatches_total",
		Help:      "Check dispatch decisions by outcome",
	},
	[]string{"outcome"},
)

func recordDispatch(outcome string) {
	dispatches.WithLabelValues(outcome).Inc()
}
