// Package metrics exposes Prometheus collectors for the indexation service.
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

var (
	inspectionsTotal           *prometheus.CounterVec
	submissionsTotal           *prometheus.CounterVec
	quotaRemaining             *prometheus.GaugeVec
	externalCallSeconds        *prometheus.HistogramVec
	sweepPropertyFailuresTotal prometheus.Counter
	sweepRunsTotal             prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		inspectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexwatch_inspections_total",
				Help: "Total URL inspections performed, labeled by property and verdict.",
			},
			[]string{"property", "verdict"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indexwatch_submissions_total",
				Help: "Total indexing submissions, labeled by property and status.",
			},
			[]string{"property", "status"},
		)

		quotaRemaining = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indexwatch_quota_remaining",
				Help: "Daily quota remaining after the last cycle, labeled by property and kind.",
			},
			[]string{"property", "kind"},
		)

		externalCallSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indexwatch_external_call_duration_seconds",
				Help:    "Histogram of external API call latencies, labeled by action and outcome.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"action", "outcome"},
		)

		sweepPropertyFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "indexwatch_sweep_property_failures_total",
				Help: "Total properties that failed during an autonomous sweep.",
			},
		)

		sweepRunsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "indexwatch_sweep_runs_total",
				Help: "Total autonomous sweep passes started.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveInspection increments the inspection counter for a verdict.
func ObserveInspection(property, verdict string) {
	Init()
	inspectionsTotal.WithLabelValues(property, verdict).Inc()
}

// ObserveSubmission increments the submission counter for a status.
func ObserveSubmission(property, status string) {
	Init()
	submissionsTotal.WithLabelValues(property, status).Inc()
}

// SetQuotaRemaining records the post-commit remaining budget.
func SetQuotaRemaining(property, kind string, remaining int) {
	Init()
	quotaRemaining.WithLabelValues(property, kind).Set(float64(remaining))
}

// ObserveExternalCall records one external API call latency.
func ObserveExternalCall(action, outcome string, duration time.Duration) {
	Init()
	externalCallSeconds.WithLabelValues(action, outcome).Observe(duration.Seconds())
}

// ObserveSweepRun counts a sweep pass.
func ObserveSweepRun() {
	Init()
	sweepRunsTotal.Inc()
}

// ObserveSweepPropertyFailure counts a property that failed within a sweep.
func ObserveSweepPropertyFailure() {
	Init()
	sweepPropertyFailuresTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
