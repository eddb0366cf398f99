package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks backend cache hits.
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagecache_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// cacheMisses tracks cache misses, including absorbed backend failures.
	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagecache_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// cacheExcluded tracks operations short-circuited by exclusion rules.
	cacheExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_cache_excluded_total",
			Help: "Total number of operations skipped by exclusion rules",
		},
		[]string{"operation"}, // "get", "set", "delete", "exists"
	)

	// cacheErrors tracks backend operation failures absorbed by the layer.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagecache_cache_errors_total",
			Help: "Total number of absorbed cache operation failures",
		},
		[]string{"operation"},
	)

	// keysDeleted tracks keys removed by bulk deletion.
	keysDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pagecache_keys_deleted_total",
			Help: "Total number of keys removed by chunked bulk deletion",
		},
	)

	// scannedKeys tracks keyspace enumeration sizes.
	scannedKeys = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pagecache_scanned_keys",
			Help:    "Number of keys returned per keyspace scan",
			Buckets: []float64{10, 100, 1000, 10000, 100000},
		},
	)
)
