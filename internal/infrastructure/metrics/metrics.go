package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Transaction metrics
	TransactionsPosted   prometheus.Counter
	TransactionsReversed prometheus.Counter
	TransactionsRejected *prometheus.CounterVec
	CommitDuration       prometheus.Histogram
	LockWaitDuration     prometheus.Histogram
	JournalHead          prometheus.Gauge

	// Account metrics
	AccountsOpened    prometheus.Counter
	AccountOperations *prometheus.CounterVec

	// Idempotency metrics
	IdempotencyHits *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Audit metrics
	AuditLogsCreated *prometheus.CounterVec

	// Outbox metrics
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics on the given registry. Tests use a
// fresh registry per instance to avoid duplicate registration.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Transaction metrics
		TransactionsPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_posted_total",
			Help: "Total number of transactions posted",
		}),
		TransactionsReversed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_transactions_reversed_total",
			Help: "Total number of transactions reversed",
		}),
		TransactionsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_rejected_total",
				Help: "Total number of transactions rejected by reason",
			},
			[]string{"reason"},
		),
		CommitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_commit_duration_seconds",
			Help:    "Duration of the commit protocol per transaction",
			Buckets: prometheus.DefBuckets,
		}),
		LockWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_lock_wait_duration_seconds",
			Help:    "Time spent waiting for per-account locks",
			Buckets: prometheus.DefBuckets,
		}),
		JournalHead: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_journal_head_sequence",
			Help: "Sequence number of the latest committed transaction",
		}),

		// Account metrics
		AccountsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_accounts_opened_total",
			Help: "Total number of accounts opened",
		}),
		AccountOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_account_operations_total",
				Help: "Total account operations by type",
			},
			[]string{"operation"},
		),

		// Idempotency metrics
		IdempotencyHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_idempotency_hits_total",
				Help: "Idempotency key checks by observed state",
			},
			[]string{"state"},
		),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBQueries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Rate limiting metrics
		// No per-client label: client IPs would grow the series set
		// without bound.
		RateLimitHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
		),

		// Audit metrics
		AuditLogsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_audit_logs_total",
				Help: "Total audit logs created",
			},
			[]string{"action", "status"},
		),

		// Outbox metrics
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Total outbox events published",
		}),
		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_publish_errors_total",
			Help: "Total outbox publish failures",
		}),
	}
}
