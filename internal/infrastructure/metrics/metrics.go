package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ingest metrics
	EventsReceived  *prometheus.CounterVec
	EventsDuplicate prometheus.Counter
	EventsRejected  *prometheus.CounterVec
	BatchSize       prometheus.Histogram

	// Processing metrics
	EventsProcessed    *prometheus.CounterVec
	EventRetries       prometheus.Counter
	EventsDead         prometheus.Counter
	ProcessingDuration prometheus.Histogram
	OutboxDepth        *prometheus.GaugeVec

	// Posting metrics
	JournalsPosted    *prometheus.CounterVec
	JournalsReversed  prometheus.Counter
	PostingLockWaits  prometheus.Counter
	MissingRateErrors prometheus.Counter
	PeriodLockRejects prometheus.Counter

	// Sweep metrics
	SweepRuns     prometheus.Counter
	SweepRequeued prometheus.Counter

	// Device metrics
	DeviceHeartbeats  prometheus.Counter
	PullUpdatesServed prometheus.Counter

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Authentication metrics
	AuthFailures *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Ingest metrics
		EventsReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_events_received_total",
				Help: "Total number of events received from devices",
			},
			[]string{"event_type"},
		),
		EventsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_events_duplicate_total",
			Help: "Total number of duplicate event submissions",
		}),
		EventsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_events_rejected_total",
				Help: "Total number of rejected event submissions by reason",
			},
			[]string{"reason"},
		),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "retailsync_batch_size",
			Help:    "Number of events per submitted batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		// Processing metrics
		EventsProcessed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_events_processed_total",
				Help: "Total number of processing attempts by result",
			},
			[]string{"result"},
		),
		EventRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_event_retries_total",
			Help: "Total number of event processing retries",
		}),
		EventsDead: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_events_dead_total",
			Help: "Total number of events moved to the dead queue",
		}),
		ProcessingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "retailsync_processing_duration_seconds",
			Help:    "Duration of event processing attempts",
			Buckets: prometheus.DefBuckets,
		}),
		OutboxDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "retailsync_outbox_depth",
				Help: "Current number of events by status",
			},
			[]string{"status"},
		),

		// Posting metrics
		JournalsPosted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_journals_posted_total",
				Help: "Total number of journals posted by document type",
			},
			[]string{"document_type"},
		),
		JournalsReversed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_journals_reversed_total",
			Help: "Total number of journals reversed",
		}),
		PostingLockWaits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_posting_lock_timeouts_total",
			Help: "Total number of posting attempts that timed out on the company lock",
		}),
		MissingRateErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_missing_rate_errors_total",
			Help: "Total number of postings aborted for a missing exchange rate",
		}),
		PeriodLockRejects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_period_lock_rejects_total",
			Help: "Total number of postings rejected by a period lock",
		}),

		// Sweep metrics
		SweepRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_sweep_runs_total",
			Help: "Total number of outbox sweep runs",
		}),
		SweepRequeued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_sweep_requeued_total",
			Help: "Total number of events re-enqueued by the sweeper",
		}),

		// Device metrics
		DeviceHeartbeats: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_device_heartbeats_total",
			Help: "Total number of device heartbeats received",
		}),
		PullUpdatesServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "retailsync_pull_updates_served_total",
			Help: "Total number of update records served to devices",
		}),

		// Database metrics
		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retailsync_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "retailsync_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Authentication metrics
		AuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_auth_failures_total",
				Help: "Total authentication failures",
			},
			[]string{"surface"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Audit metrics
		AuditLogsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retailsync_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),
	}
}
