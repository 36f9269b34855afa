// Package metrics exposes Prometheus collectors for the analysis service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes recorded by ObserveSubmit.
const (
	OutcomeAccepted     = "accepted"
	OutcomeRateLimited  = "rate_limited"
	OutcomeQueueFull    = "queue_full"
	OutcomeShuttingDown = "shutting_down"
	OutcomeStoreError   = "store_error"
)

var (
	jobsSubmittedTotal          *prometheus.CounterVec
	jobsFinishedTotal           *prometheus.CounterVec
	jobDurationSeconds          prometheus.Histogram
	jobsInFlight                prometheus.Gauge
	externalTaskDurationSeconds *prometheus.HistogramVec
	scoringRequestsTotal        *prometheus.CounterVec
	rateLimitDeniedTotal        prometheus.Counter
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsSubmittedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kontrategy_jobs_submitted_total",
				Help: "Total number of analysis submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		jobsFinishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kontrategy_jobs_finished_total",
				Help: "Total number of jobs that reached a terminal state, labeled by status.",
			},
			[]string{"status"},
		)

		jobDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kontrategy_job_duration_seconds",
				Help:    "Histogram of job run times from pickup to terminal write.",
				Buckets: []float64{5, 15, 30, 60, 120, 240, 480},
			},
		)

		jobsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "kontrategy_jobs_in_flight",
				Help: "Number of jobs currently being processed by a worker.",
			},
		)

		externalTaskDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kontrategy_external_task_duration_seconds",
				Help:    "Histogram of scraper task durations from start to terminal status, labeled by kind and status.",
				Buckets: []float64{5, 10, 30, 60, 120, 180, 300},
			},
			[]string{"kind", "status"},
		)

		scoringRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kontrategy_scoring_requests_total",
				Help: "Total number of scoring calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		rateLimitDeniedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "kontrategy_rate_limit_denied_total",
				Help: "Total number of submissions denied by the per-client rate limit.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kontrategy_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kontrategy_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveSubmit increments the submission counter for the given outcome.
func ObserveSubmit(outcome string) {
	Init()
	jobsSubmittedTotal.WithLabelValues(outcome).Inc()
}

// ObserveJobFinished records a terminal job write and how long the job ran.
func ObserveJobFinished(status string, duration time.Duration) {
	Init()
	jobsFinishedTotal.WithLabelValues(status).Inc()
	jobDurationSeconds.Observe(duration.Seconds())
}

// IncJobsInFlight increments the in-flight jobs gauge.
func IncJobsInFlight() {
	Init()
	jobsInFlight.Inc()
}

// DecJobsInFlight decrements the in-flight jobs gauge.
func DecJobsInFlight() {
	Init()
	jobsInFlight.Dec()
}

// ObserveExternalTask records the duration of one scraper task run.
func ObserveExternalTask(kind, status string, duration time.Duration) {
	Init()
	externalTaskDurationSeconds.WithLabelValues(kind, status).Observe(duration.Seconds())
}

// ObserveScoring increments the scoring counter.
func ObserveScoring(provider, outcome string) {
	Init()
	scoringRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveRateLimitDenied increments the rate limit denial counter.
func ObserveRateLimitDenied() {
	Init()
	rateLimitDeniedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
