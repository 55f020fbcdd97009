package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_cache_hits_total",
			Help: "Total number of link cache hits",
		},
		[]string{"layer"}, // "l1" or "l2"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_cache_misses_total",
			Help: "Total number of link cache misses",
		},
		[]string{"layer"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "link_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"layer"},
	)

	// Request metrics
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "link_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_requests_total",
			Help: "Total number of requests",
		},
		[]string{"method", "route", "status"}, // route is the mux path template, never the raw path
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "link_database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Engine metrics
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_resolutions_total",
			Help: "Resolution outcomes by verdict",
		},
		[]string{"verdict"},
	)

	LinksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_created_total",
			Help: "Links created, by code source",
		},
		[]string{"source"}, // "alias" or "generated"
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "link_create_rate_limited_total",
			Help: "Creation requests rejected by the rate limiter",
		},
	)

	IngestFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_click_ingest_failures_total",
			Help: "Best-effort click ingestion failures by stage",
		},
		[]string{"stage"}, // "geo", "event", "counter"
	)
)
