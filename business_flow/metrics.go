package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Messages resolved by the processor, partitioned by terminal status and dispatcher kind
	queueProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_messages_processed_total",
			Help: "Total number of queued messages resolved by the processor",
		},
		[]string{"outcome", "dispatcher"},
	)

	// Claims lost to a concurrent processor
	queueClaimConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_claim_conflicts_total",
			Help: "Number of pending messages another processor claimed first",
		},
	)

	// Messages pushed later because of working hours or daily budget
	queueDeferralsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_deferrals_total",
			Help: "Number of pending messages rescheduled by throughput limits",
		},
		[]string{"reason"},
	)

	// Messages written by campaign starts
	queueEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_messages_enqueued_total",
			Help: "Total number of messages enqueued by campaign starts",
		},
	)

	// Pending messages cancelled by campaign pauses
	queueCancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_messages_cancelled_total",
			Help: "Total number of pending messages cancelled by campaign pauses",
		},
	)

	// Webhook round-trip latency
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_delivery_duration_seconds",
			Help:    "Latency of a single delivery attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dispatcher"},
	)
)
