package status

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "statusgarden"

var (
	aggregations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "aggregations_total",
			Help:      "Total service status aggregations by resulting status",
		},
		[]string{"status"},
	)

	alerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "alerts_total",
			Help:      "Alert decisions by outcome",
		},
		[]string{"outcome"},
	)
)

func recordAggregation(status string) {
	aggregations.WithLabelValues(status).Inc()
}

func recordAlert(outcome string) {
	alerts.WithLabelValues(outcome).Inc()
}
