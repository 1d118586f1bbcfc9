package notifications

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "statusgarden",
		Subsystem: "notifications",
		Name:      "deliveries_total",
		Help:      "Alert deliveries by channel and outcome",
	},
	[]string{"channel", "outcome"},
)

func recordDelivery(channel, outcome string) {
	deliveries.WithLabelValues(channel, outcome).Inc()
}
