package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by command.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ModerationDecisions counts decided actions by requested action, effective
	// action, subject kind and outcome (applied, noop, rejected, failed).
	ModerationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_moderation_decisions_total",
		Help: "Moderation actions by requested action, effective action, subject kind and outcome",
	}, []string{"requested", "action", "kind", "outcome"})

	// ModerationConflicts counts optimistic-lock conflicts, retried or surfaced.
	ModerationConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_moderation_conflicts_total",
		Help: "Concurrent modification conflicts on moderated subjects",
	}, []string{"kind", "result"})

	// ModerationLatency records end-to-end moderation operation latency.
	ModerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_moderation_operation_seconds",
		Help:    "Moderation operation latency in seconds, retries included",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// BulkItems counts bulk sub-operation results.
	BulkItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_moderation_bulk_items_total",
		Help: "Bulk moderation items by result",
	}, []string{"action", "result"})

	// ReportsFiled counts reports filed by subject kind.
	ReportsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_reports_filed_total",
		Help: "Reports filed by subject kind",
	}, []string{"kind"})

	// NotificationFailures counts dropped post-commit notifications.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_notification_failures_total",
		Help: "Notifications that failed to publish after a moderation commit",
	}, []string{"channel"})

	// StatsCacheResults counts moderation stats cache lookups.
	StatsCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_stats_cache_results_total",
		Help: "Moderation stats cache lookups by result",
	}, []string{"result"})

	// AdminStreamConnections is the gauge of connected admin event streams.
	AdminStreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_admin_stream_connections",
		Help: "Number of connected admin moderation event streams",
	})

	// AdminStreamDrops counts events dropped for slow admin stream clients.
	AdminStreamDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_admin_stream_drops_total",
		Help: "Admin stream events dropped due to backpressure",
	})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveModeration records latency for one moderation operation.
func ObserveModeration(action string, start time.Time) {
	ModerationLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())
}
