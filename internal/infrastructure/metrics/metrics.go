// Package metrics exposes Prometheus metrics for the nomination lifecycle.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "valores"

// Recorder holds the service's collectors.
type Recorder struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	tierTransitions *prometheus.CounterVec
	eventsClosed    prometheus.Counter
	txRetries       *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	jobRuns         *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, plus the Go and
// process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		operations: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Core operations by name and outcome",
		}, []string{"operation", "outcome"}),
		rejections: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Business rejections by reason",
		}, []string{"operation", "reason"}),
		tierTransitions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recognition",
			Name:      "tier_transitions_total",
			Help:      "Excellence records granted, refreshed or revoked",
		}, []string{"action"}),
		eventsClosed: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "calendar",
			Name:      "events_closed_total",
			Help:      "Events closed by the expiry sweep",
		}),
		txRetries: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_retries_total",
			Help:      "Transactions replayed after a conflict",
		}, []string{"operation"}),
		latency: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of core operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		httpRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		jobRuns: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by outcome",
		}, []string{"job", "outcome"}),
		jobDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled job executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Operation records one finished operation. reason is empty on success or
// for unexpected failures.
func (r *Recorder) Operation(op string, started time.Time, reason string, failed bool) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(op).Observe(time.Since(started).Seconds())
	switch {
	case reason != "":
		r.operations.WithLabelValues(op, "rejected").Inc()
		r.rejections.WithLabelValues(op, reason).Inc()
	case failed:
		r.operations.WithLabelValues(op, "error").Inc()
	default:
		r.operations.WithLabelValues(op, "ok").Inc()
	}
}

// TierTransition counts a grant, refresh or revoke.
func (r *Recorder) TierTransition(action string) {
	if r == nil {
		return
	}
	r.tierTransitions.WithLabelValues(action).Inc()
}

// EventsClosed counts events closed by a sweep.
func (r *Recorder) EventsClosed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.eventsClosed.Add(float64(n))
}

// TxRetry counts a replayed transaction.
func (r *Recorder) TxRetry(op string) {
	if r == nil {
		return
	}
	r.txRetries.WithLabelValues(op).Inc()
}

// HTTPRequest counts a served request.
func (r *Recorder) HTTPRequest(method, route, status string) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, status).Inc()
}

// JobRun records one scheduled job execution.
func (r *Recorder) JobRun(job string, d time.Duration, ok bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	r.jobRuns.WithLabelValues(job, outcome).Inc()
	r.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}
