package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts image-volume cache lookups by result (hit|miss).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volcached_cache_lookups_total",
			Help: "Total number of image-volume cache lookups",
		},
		[]string{"result"},
	)

	// CacheEvictions counts cache evictions by reason (capacity|stale|manual).
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volcached_cache_evictions_total",
			Help: "Total number of image-volume cache evictions",
		},
		[]string{"reason"},
	)

	// CacheEntries tracks the number of cache entries per scope.
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "volcached_cache_entries",
			Help: "Number of image-volume cache entries",
		},
		[]string{"scope"},
	)

	// CacheSizeGB tracks the cached gigabytes per scope.
	CacheSizeGB = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "volcached_cache_size_gb",
			Help: "Gigabytes consumed by image-volume cache entries",
		},
		[]string{"scope"},
	)

	// EnsureSpaceDuration measures how long capacity enforcement takes.
	EnsureSpaceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "volcached_ensure_space_duration_seconds",
			Help:    "Duration of cache capacity enforcement runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "volcached_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
