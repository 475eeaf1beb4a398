// Package telemetry exposes Prometheus metrics for the workflow engine and
// the resilience layer. Metrics are registered against an injected
// registry; the server serves them on the /metrics endpoint.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slidesmith/slidesmith/internal/resilience"
)

// Metrics holds the engine's instrument set. A nil *Metrics is valid and
// turns every method into a no-op, so tests and minimal deployments can
// omit telemetry entirely.
type Metrics struct {
	jobsSubmitted prometheus.Counter
	jobsFinished  *prometheus.CounterVec
	nodeDuration  *prometheus.HistogramVec
	retryAbsorbed *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

// New registers the engine metrics against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slidesmith_jobs_submitted_total",
			Help: "Jobs accepted by the workflow engine.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slidesmith_jobs_finished_total",
			Help: "Jobs that reached a terminal status.",
		}, []string{"status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slidesmith_node_duration_seconds",
			Help:    "Wall time of workflow node invocations, including retries.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"node"}),
		retryAbsorbed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "slidesmith_retries_absorbed_total",
			Help: "Failed attempts absorbed by retry policies, per node.",
		}, []string{"node"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "slidesmith_breaker_state",
			Help: "Circuit breaker state per dependency (0=closed, 1=half-open, 2=open).",
		}, []string{"dependency"}),
	}

	reg.MustRegister(
		m.jobsSubmitted,
		m.jobsFinished,
		m.nodeDuration,
		m.retryAbsorbed,
		m.breakerState,
	)
	return m
}

// JobSubmitted counts an accepted job.
func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.jobsSubmitted.Inc()
}

// JobFinished counts a job reaching the given terminal status.
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(status).Inc()
}

// ObserveNode records the wall time of one node invocation.
func (m *Metrics) ObserveNode(node string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeDuration.WithLabelValues(node).Observe(d.Seconds())
}

// RetriesAbsorbed counts failed attempts that a retry policy absorbed.
func (m *Metrics) RetriesAbsorbed(node string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.retryAbsorbed.WithLabelValues(node).Add(float64(n))
}

// PublishBreakerStates refreshes the breaker state gauge from the set.
func (m *Metrics) PublishBreakerStates(set *resilience.BreakerSet) {
	if m == nil || set == nil {
		return
	}
	for dependency, state := range set.States() {
		m.breakerState.WithLabelValues(dependency).Set(breakerStateValue(state))
	}
}

func breakerStateValue(state resilience.BreakerState) float64 {
	switch state {
	case resilience.BreakerHalfOpen:
		return 1
	case resilience.BreakerOpen:
		return 2
	default:
		return 0
	}
}
