package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	apiRequestsTotal    *prometheus.CounterVec
	apiLatencySeconds   *prometheus.HistogramVec
	apiErrorsTotal      *prometheus.CounterVec
	syncRunsTotal       *prometheus.CounterVec
	syncDurationSeconds *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		syncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moodle_sync_runs_total",
			Help: "Total number of sync pipeline runs by outcome.",
		}, []string{"pipeline", "status"})

		syncDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moodle_sync_duration_seconds",
			Help:    "Duration distribution of sync pipeline runs.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pipeline"})

		prometheus.MustRegister(apiRequestsTotal, apiLatencySeconds, apiErrorsTotal, syncRunsTotal, syncDurationSeconds)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SyncRuns exposes the counter for sync pipeline runs.
func SyncRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return syncRunsTotal
}

// SyncDuration exposes the duration histogram for sync pipeline runs.
func SyncDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return syncDurationSeconds
}
