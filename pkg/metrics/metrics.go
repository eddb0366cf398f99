// Package metrics provides the centralized Prometheus metrics registry for
// the cache layer. All metrics are defined in their respective packages
// (connection, cache, fragment) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the cache layer.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Connection Metrics (pkg/connection):
//   - pagecache_breaker_opens_total (Counter): Times the circuit breaker opened
//   - pagecache_breaker_short_circuits_total (Counter): Requests rejected by an open breaker without a network attempt
//   - pagecache_breaker_state (Gauge): Current breaker state (0=closed, 1=half_open, 2=open)
//   - pagecache_connection_failures_total (Counter): Backend connection or command failures
//   - pagecache_connection_latency_seconds (Histogram): Backend liveness probe round-trip time
//
// Cache Metrics (pkg/cache):
//   - pagecache_cache_hits_total (Counter): Cache hits
//   - pagecache_cache_misses_total (Counter): Cache misses
//   - pagecache_cache_excluded_total{operation} (Counter): Operations short-circuited by an exclusion rule
//   - pagecache_cache_errors_total{operation} (Counter): Backend errors absorbed as miss/no-op results
//   - pagecache_keys_deleted_total (Counter): Keys removed by deletes and purges
//   - pagecache_scanned_keys (Histogram): Keys returned per keyspace scan
//
// Fragment Metrics (pkg/fragment):
//   - pagecache_fragment_purges_total{scope} (Counter): Invalidation passes by scope (object, listing, all)
//   - pagecache_fragment_purged_keys_total (Counter): Fragment keys removed by invalidation
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(pagecache_cache_hits_total[5m])) /
//   (sum(rate(pagecache_cache_hits_total[5m])) + sum(rate(pagecache_cache_misses_total[5m])))
//
//   # Breaker Currently Open
//   pagecache_breaker_state == 2
//
//   # Backend Error Rate
//   rate(pagecache_connection_failures_total[5m])
//
//   # P95 Probe Latency
//   histogram_quantile(0.95, rate(pagecache_connection_latency_seconds_bucket[5m]))
//
//   # Invalidation Volume
//   rate(pagecache_fragment_purged_keys_total[5m])
