package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by freshness ("fresh", "stale")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafetch_cache_hits_total",
			Help: "Total number of cache hits by freshness",
		},
		[]string{"freshness"},
	)

	// CacheMisses tracks cache misses, including forced misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datafetch_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheWrites tracks successful writes by store implementation
	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafetch_cache_writes_total",
			Help: "Total number of cache writes by store",
		},
		[]string{"store"}, // "memory", "redis"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafetch_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "open", "match", "put"
	)
)
