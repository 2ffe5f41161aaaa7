// Package metrics provides Prometheus-based metrics recording for the
// orchestration core. The Recorder interface keeps instrumentation optional;
// NopRecorder discards everything.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives observations from the orchestrator, session manager and
// capability clients.
type Recorder interface {
	// ObservePipeline records a completed pipeline run.
	ObservePipeline(status string, steps int, duration time.Duration)

	// ObserveStep records one agent step outcome.
	ObserveStep(agentID, capability, status string, duration time.Duration)

	// SetBreakerState records the breaker state for a capability
	// (0=closed, 1=open, 2=half-open).
	SetBreakerState(capability string, state int)

	// SetActiveSessions records the current active session count.
	SetActiveSessions(count int)

	// IncRateLimited counts rejected inbound messages.
	IncRateLimited()

	// IncEviction counts sessions evicted by the per-user cap.
	IncEviction()
}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	pipelinesTotal   *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	pipelineSteps    prometheus.Histogram
	stepsTotal       *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
	activeSessions   prometheus.Gauge
	rateLimitedTotal prometheus.Counter
	evictionsTotal   prometheus.Counter
}

// NewPrometheusRecorder creates a recorder registered with the default
// Prometheus registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		pipelinesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmesh_pipelines_total",
				Help: "Total number of pipeline executions by status",
			},
			[]string{"status"},
		),
		pipelineDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatmesh_pipeline_duration_seconds",
				Help:    "Duration of pipeline executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		pipelineSteps: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chatmesh_pipeline_steps",
				Help:    "Number of agent steps per pipeline execution",
				Buckets: []float64{1, 2, 3, 4, 5, 8},
			},
		),
		stepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatmesh_agent_steps_total",
				Help: "Total number of agent steps by agent, capability and status",
			},
			[]string{"agent_id", "capability", "status"},
		),
		stepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatmesh_agent_step_duration_seconds",
				Help:    "Duration of agent steps in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent_id", "capability"},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chatmesh_breaker_state",
				Help: "Circuit breaker state per capability (0=closed, 1=open, 2=half-open)",
			},
			[]string{"capability"},
		),
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chatmesh_active_sessions",
				Help: "Current number of active sessions",
			},
		),
		rateLimitedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatmesh_rate_limited_total",
				Help: "Total number of inbound messages rejected by rate limiting",
			},
		),
		evictionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chatmesh_session_evictions_total",
				Help: "Total number of sessions evicted by the per-user cap",
			},
		),
	}
}

// ObservePipeline records a completed pipeline run.
func (p *PrometheusRecorder) ObservePipeline(status string, steps int, duration time.Duration) {
	p.pipelinesTotal.WithLabelValues(status).Inc()
	p.pipelineDuration.WithLabelValues(status).Observe(duration.Seconds())
	p.pipelineSteps.Observe(float64(steps))
}

// ObserveStep records one agent step outcome.
func (p *PrometheusRecorder) ObserveStep(agentID, capability, status string, duration time.Duration) {
	p.stepsTotal.WithLabelValues(agentID, capability, status).Inc()
	p.stepDuration.WithLabelValues(agentID, capability).Observe(duration.Seconds())
}

// SetBreakerState records the breaker state for a capability.
func (p *PrometheusRecorder) SetBreakerState(capability string, state int) {
	p.breakerState.WithLabelValues(capability).Set(float64(state))
}

// SetActiveSessions records the current active session count.
func (p *PrometheusRecorder) SetActiveSessions(count int) {
	p.activeSessions.Set(float64(count))
}

// IncRateLimited counts rejected inbound messages.
func (p *PrometheusRecorder) IncRateLimited() {
	p.rateLimitedTotal.Inc()
}

// IncEviction counts sessions evicted by the per-user cap.
func (p *PrometheusRecorder) IncEviction() {
	p.evictionsTotal.Inc()
}

// NopRecorder discards all observations.
type NopRecorder struct{}

// ObservePipeline implements Recorder.
func (NopRecorder) ObservePipeline(string, int, time.Duration) {}

// ObserveStep implements Recorder.
func (NopRecorder) ObserveStep(string, string, string, time.Duration) {}

// SetBreakerState implements Recorder.
func (NopRecorder) SetBreakerState(string, int) {}

// SetActiveSessions implements Recorder.
func (NopRecorder) SetActiveSessions(int) {}

// IncRateLimited implements Recorder.
func (NopRecorder) IncRateLimited() {}

// IncEviction implements Recorder.
func (NopRecorder) IncEviction() {}
