package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchDecisions counts dispatch policy outcomes (send_now|enqueue|discard).
	DispatchDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusalert_dispatch_decisions_total",
			Help: "Dispatch policy decisions for submitted warnings",
		},
		[]string{"action"},
	)

	// Deliveries counts gateway sends by path (instant|flush) and result (success|failure).
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campusalert_deliveries_total",
			Help: "Notification delivery attempts",
		},
		[]string{"path", "result"},
	)

	// QueueDepth tracks pending notifications.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campusalert_queue_depth",
			Help: "Number of notifications waiting in the dispatch queue",
		},
	)

	// QuotaUsed tracks instant sends consumed from today's quota.
	QuotaUsed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campusalert_quota_used",
			Help: "Sends counted against the daily quota since the last reset",
		},
	)

	// QueueEvictions counts notifications expired by the maintenance job.
	QueueEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campusalert_queue_evictions_total",
			Help: "Queued notifications expired without delivery",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campusalert_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
