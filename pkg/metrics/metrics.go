package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for scheduled jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewJobMetrics registers the scheduled job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful scheduled job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed scheduled job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// EngineMetrics counts the availability engine's write outcomes.
type EngineMetrics struct {
	reservations *prometheus.CounterVec
	returns      *prometheus.CounterVec
}

// NewEngineMetrics registers reserve/release outcome counters.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_reservations_total",
		Help: "Reserve attempts by outcome.",
	}, []string{"outcome"})
	returns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_returns_total",
		Help: "Release attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(reservations, returns)
	return &EngineMetrics{reservations: reservations, returns: returns}
}

// IncReservation records one reserve attempt with the given outcome.
func (e *EngineMetrics) IncReservation(outcome string) {
	if e == nil || e.reservations == nil {
		return
	}
	e.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncReturn records one release attempt with the given outcome.
func (e *EngineMetrics) IncReturn(outcome string) {
	if e == nil || e.returns == nil {
		return
	}
	e.returns.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
