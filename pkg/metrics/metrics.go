package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_cache_hits_total",
			Help: "Cache reads served without an upstream fetch",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_cache_misses_total",
			Help: "Cache reads that triggered an upstream fetch",
		},
		[]string{"cache"},
	)

	CacheRefreshFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_cache_refresh_failures_total",
			Help: "Cache refreshes that failed and served stale data",
		},
		[]string{"cache"},
	)

	// Brokerage upstream metrics
	BrokerageCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_brokerage_calls_total",
			Help: "Upstream brokerage API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Sync worker metrics
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_sync_runs_total",
			Help: "Trade sync runs by outcome",
		},
		[]string{"outcome"}, // ok, error, skipped
	)

	SyncedTradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_synced_trades_total",
			Help: "Trade rows upserted by the sync worker",
		},
	)
)
