package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scanner, generator and collector counters and histograms.

var (
	// Scheduler
	SchedulerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "scheduler",
		Name:      "requests_total",
		Help:      "Total market requests sent, by outcome",
	}, []string{"credential", "outcome"})

	SchedulerFlushLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "findangel",
		Subsystem: "scheduler",
		Name:      "flush_duration_seconds",
		Help:      "Duration of one credential sub-batch flush",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"credential"})

	SchedulerQuotaRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "scheduler",
		Name:      "quota_remaining",
		Help:      "Last known remaining quota per credential",
	}, []string{"credential"})

	SchedulerQuotaWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "scheduler",
		Name:      "quota_wait_seconds_total",
		Help:      "Total time spent waiting for quota replenishment",
	})

	SchedulerPacingWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "scheduler",
		Name:      "pacing_waits_total",
		Help:      "Total times a request waited for its credential's pacing limiter",
	}, []string{"credential"})

	SchedulerTerminalErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "scheduler",
		Name:      "terminal_errors_total",
		Help:      "Requests surfaced to the caller as terminal errors",
	}, []string{"reason"})

	// Scan
	ScanCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "scan",
		Name:      "cycles_total",
		Help:      "Total scan cycles, by result",
	}, []string{"horizon", "result"})

	ScanListingsVisited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "scan",
		Name:      "listings_visited_total",
		Help:      "New listings handed to valuation",
	}, []string{"horizon"})

	ScanCycleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "findangel",
		Subsystem: "scan",
		Name:      "cycle_duration_seconds",
		Help:      "Scan cycle duration",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"horizon"})

	ScanWatermarkSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "scan",
		Name:      "watermark_unix_seconds",
		Help:      "Committed watermark expiry per horizon",
	}, []string{"horizon"})

	ScanPageEstimate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "scan",
		Name:      "page_estimate",
		Help:      "Committed starting page estimate per horizon",
	}, []string{"horizon"})

	// Generator
	GeneratorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "generator",
		Name:      "runs_total",
		Help:      "Total generator runs, by mode and result",
	}, []string{"mode", "result"})

	GeneratorRowsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "generator",
		Name:      "rows_written_total",
		Help:      "Pattern rows written, by kind",
	}, []string{"kind"})

	GeneratorLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "findangel",
		Subsystem: "generator",
		Name:      "run_duration_seconds",
		Help:      "Duration of one full generation",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// Cache
	CacheReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "cache",
		Name:      "reloads_total",
		Help:      "Pattern cache reloads, by trigger and result",
	}, []string{"trigger", "result"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Pattern lookups, by kind and result",
	}, []string{"kind", "result"})

	// Valuation
	ValuationEvaluatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "valuation",
		Name:      "evaluated_total",
		Help:      "Listings evaluated, by category and result",
	}, []string{"category", "result"})

	ValuationNotableTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "valuation",
		Name:      "notable_total",
		Help:      "Notable listings emitted",
	}, []string{"category", "role"})

	// Collector
	CollectorListingsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "collector",
		Name:      "listings_upserted_total",
		Help:      "Listings written to history",
	})

	CollectorStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "collector",
		Name:      "status_transitions_total",
		Help:      "Listings moved out of ACTIVE, by new status",
	}, []string{"status"})

	CollectorMalformedRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "collector",
		Name:      "malformed_rows_total",
		Help:      "Search result rows dropped at decode",
	})

	// Alert
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "findangel",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Alerts delivered, by channel and result",
	}, []string{"channel", "result"})

	AlertBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "alert",
		Name:      "breaker_state",
		Help:      "Alert channel circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"channel"})

	// DB pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "db",
		Name:      "pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "db",
		Name:      "pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "db",
		Name:      "pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "findangel",
		Subsystem: "db",
		Name:      "pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	})
)
