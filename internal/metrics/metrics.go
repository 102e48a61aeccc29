package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playout_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Playout Metrics
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playout_evaluations_total",
			Help: "Total number of playout evaluations by resulting state",
		},
		[]string{"state"},
	)

	StandbyFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playout_standby_fallbacks_total",
			Help: "Total number of falls back to the standby asset",
		},
		[]string{"reason"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playout_active_sessions",
			Help: "Number of live viewer sessions",
		},
	)

	BoundaryTimersArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playout_boundary_timers_armed",
			Help: "Number of pending re-evaluation timers",
		},
	)

	// Extender Metrics
	ExtendRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playout_extend_runs_total",
			Help: "Total number of schedule extension runs",
		},
		[]string{"mode", "status"},
	)

	ExtendRowsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playout_extend_rows_inserted_total",
			Help: "Total number of schedule items written by extensions",
		},
	)

	ExtendCapAbortsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playout_extend_cap_aborts_total",
			Help: "Total number of extensions aborted by the safety cap",
		},
	)

	LeaseConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playout_lease_conflicts_total",
			Help: "Total number of extension attempts blocked by a held lease",
		},
	)

	AutoExtendEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playout_autoextend_enqueued_total",
			Help: "Total number of extension jobs enqueued by the runway monitor",
		},
	)

	// Notification Metrics
	NotifyDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playout_notify_deliveries_total",
			Help: "Total number of notification delivery attempts by outcome",
		},
		[]string{"status"},
	)

	// Cache Metrics
	ChannelCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playout_channel_cache_hits_total",
			Help: "Total number of channel config cache hits",
		},
	)

	ChannelCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playout_channel_cache_misses_total",
			Help: "Total number of channel config cache misses",
		},
	)
)
