// Prometheus collectors for the domain pipeline: inbound events by kind
// and terminal status, delivery attempts by kind and outcome, and retry
// scheduler activity. Label sets are kept small and closed to bound
// cardinality.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// webhookEvents counts inbound events by payload kind and terminal
	// ledger status (processed, failed, duplicate, rejected).
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook events by payload kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// deliveryAttempts counts send attempts through the delivery ledger by
	// message kind and outcome (sent, failed, permanently_failed).
	deliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_attempts_total",
			Help: "Outbound delivery attempts by message kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// retryRuns counts retry scheduler ticks.
	retryRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_retry_runs_total",
			Help: "Retry scheduler ticks executed.",
		},
	)

	// retrySelected counts ledger rows picked up by the retry scheduler.
	retrySelected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_retry_selected_total",
			Help: "Delivery rows selected for a retry attempt.",
		},
	)
)

func init() {
	prometheus.MustRegister(webhookEvents, deliveryAttempts, retryRuns, retrySelected)
}
