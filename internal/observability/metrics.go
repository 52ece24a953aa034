package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_agent_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_agent_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voice_agent_stage_duration_seconds",
			Help:    "Pipeline stage latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"stage", "status"},
	)

	pipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_agent_pipeline_outcomes_total",
			Help: "Pipeline runs by entry path and terminal outcome.",
		},
		[]string{"entry_path", "outcome"},
	)

	interactionLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voice_agent_interaction_log_failures_total",
			Help: "Interaction records that could not be written.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		stageDurationSeconds,
		pipelineOutcomesTotal,
		interactionLogFailuresTotal,
	)
}

// Metrics collects application metrics.
type Metrics interface {
	ObserveStage(stage string, d time.Duration, err error)
	RecordOutcome(entryPath, outcome string)
	RecordLoggingFailure()
}

// PrometheusMetrics records into the process-wide Prometheus registry
type PrometheusMetrics struct{}

// NewMetrics returns the Prometheus-backed collector
func NewMetrics() Metrics {
	return PrometheusMetrics{}
}

func (PrometheusMetrics) ObserveStage(stage string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	stageDurationSeconds.WithLabelValues(stage, status).Observe(d.Seconds())
}

func (PrometheusMetrics) RecordOutcome(entryPath, outcome string) {
	pipelineOutcomesTotal.WithLabelValues(entryPath, outcome).Inc()
}

func (PrometheusMetrics) RecordLoggingFailure() {
	interactionLogFailuresTotal.Inc()
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) ObserveStage(string, time.Duration, error) {}
func (NopMetrics) RecordOutcome(string, string)              {}
func (NopMetrics) RecordLoggingFailure()                     {}
