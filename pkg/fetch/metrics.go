package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for orchestrated fetches.
var (
	fetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datafetch_attempts_total",
		Help: "Total fetch attempts by outcome",
	}, []string{"outcome"})

	fetchAttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "datafetch_attempt_duration_seconds",
		Help:    "Duration of a fetch attempt, cache check through network resolution",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datafetch_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})

	fetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datafetch_retries_total",
		Help: "Total number of scheduled retries by error class",
	}, []string{"error_class"})

	fetchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datafetch_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{2, 4, 8, 16, 32, 64, 128},
	}, []string{"error_class"})

	fetchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datafetch_retry_exhausted_total",
		Help: "Total number of times the retry budget was exhausted by error class",
	}, []string{"error_class"})

	fetchCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "datafetch_cancelled_total",
		Help: "Total attempts whose result was discarded after cancellation or supersession",
	})
)
