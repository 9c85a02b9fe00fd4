package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counters and gauges exposed on /metrics. Registered once on the
// default registry at package init.
var (
	MessagesEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "ingest",
		Name:      "messages_enqueued_total",
		Help:      "Ingestion messages accepted into the queue.",
	}, []string{"source"})

	DuplicatesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "ingest",
		Name:      "duplicates_skipped_total",
		Help:      "Flows skipped because their idempotency key was already queued.",
	}, []string{"source"})

	BatchesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "ingest",
		Name:      "batches_rejected_total",
		Help:      "Ingestion batches rejected by queue backpressure.",
	})

	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "pipeline",
		Name:      "messages_processed_total",
		Help:      "Pipeline outcomes per message.",
	}, []string{"outcome"}) // done, failed, dead_letter

	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "detection",
		Name:      "alerts_created_total",
		Help:      "New alerts created, by severity.",
	}, []string{"severity"})

	AlertsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "detection",
		Name:      "alerts_merged_total",
		Help:      "Threat events merged into an existing open alert.",
	})

	CanaryEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "canary",
		Name:      "evaluations_total",
		Help:      "Canary shadow evaluations, by agreement.",
	}, []string{"diverged"})

	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "centerback",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Notification deliveries that failed, by channel.",
	}, []string{"channel"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "centerback",
		Subsystem: "ingest",
		Name:      "queue_depth",
		Help:      "Messages currently queued, processing or failed.",
	})
)
