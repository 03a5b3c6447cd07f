// Package metrics provides the Prometheus registry and HTTP handler for datafetch.
// All metrics are defined in their respective packages (fetch, cache)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by datafetch.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}),
	)
}

// Metrics Documentation
//
// Attempt Metrics (pkg/fetch):
//   - datafetch_attempts_total{outcome} (Counter): Attempts by outcome
//     (network, cache_hit, http_error, transport_error, parse_error, unrecognized, aborted)
//   - datafetch_attempt_duration_seconds (Histogram): Cache check through network resolution
//   - datafetch_errors_total{class} (Counter): Failed attempts by class (http, transport, parse)
//   - datafetch_cancelled_total (Counter): Attempts discarded after cancellation or supersession
//
// Retry Metrics (pkg/fetch):
//   - datafetch_retries_total{error_class} (Counter): Scheduled retries by error class
//   - datafetch_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - datafetch_retry_exhausted_total{error_class} (Counter): Failures with no budget left
//
// Cache Metrics (pkg/cache):
//   - datafetch_cache_hits_total{freshness} (Counter): Cache hits (fresh, stale)
//   - datafetch_cache_misses_total (Counter): Cache misses, forced misses included
//   - datafetch_cache_writes_total{store} (Counter): Successful writes (memory, redis)
//   - datafetch_cache_errors_total{operation} (Counter): Store errors (open, match, put)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(datafetch_cache_hits_total{freshness="fresh"}[5m])) /
//   (sum(rate(datafetch_cache_hits_total[5m])) + sum(rate(datafetch_cache_misses_total[5m])))
//
//   # Failure Rate by Class
//   sum by (class) (rate(datafetch_errors_total[5m]))
//
//   # Retry Exhaustion
//   rate(datafetch_retry_exhausted_total[5m]) > 0
//
//   # P95 Attempt Latency
//   histogram_quantile(0.95, rate(datafetch_attempt_duration_seconds_bucket[5m]))
