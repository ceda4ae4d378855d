// Package metrics provides Prometheus metrics collection for the
// orchestrator's stage pipeline, tool executor, and circuit breakers.
package metrics

import (
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the orchestrator exposes.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Stage pipeline metrics
	StageDuration  *prometheus.HistogramVec
	StageOutcomes  *prometheus.CounterVec

	// Tool executor metrics
	ToolCallsTotal    *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec
	ToolCacheHits     *prometheus.CounterVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec

	// Control loop metrics
	ReplansTotal *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer.
// Passing a nil registerer builds the collectors without registering them
// (used in tests).
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_errors_total",
				Help: "Total number of errors by taxonomy code",
			},
			[]string{"service", "code", "stage"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_stage_duration_seconds",
				Help:    "Stage pipeline step duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"stage"},
		),
		StageOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_stage_outcomes_total",
				Help: "Stage pipeline outcomes by status",
			},
			[]string{"stage", "status"},
		),
		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_tool_calls_total",
				Help: "Total tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orchestrator_tool_call_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool"},
		),
		ToolCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_tool_cache_hits_total",
				Help: "Tool call cache hits and misses",
			},
			[]string{"tool", "result"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"tool"},
		),
		ReplansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_replans_total",
				Help: "Control loop replan decisions by trigger type and outcome",
			},
			[]string{"trigger_type", "approved"},
		),
		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orchestrator_service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "orchestrator_service_info",
				Help: "Service build information",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ErrorsTotal,
			m.StageDuration,
			m.StageOutcomes,
			m.ToolCallsTotal,
			m.ToolCallDuration,
			m.ToolCacheHits,
			m.CircuitBreakerState,
			m.ReplansTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0").Set(1)
	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordError records a taxonomy error surfaced during stage.
func (m *Metrics) RecordError(service, code, stage string) {
	m.ErrorsTotal.WithLabelValues(service, code, stage).Inc()
}

// RecordStage records one stage pipeline step's outcome and duration.
func (m *Metrics) RecordStage(stage, status string, duration time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	m.StageOutcomes.WithLabelValues(stage, status).Inc()
}

// RecordToolCall records one tool invocation's outcome and duration.
func (m *Metrics) RecordToolCall(tool, status string, duration time.Duration) {
	m.ToolCallsTotal.WithLabelValues(tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordCacheLookup records a tool-call result cache hit or miss.
func (m *Metrics) RecordCacheLookup(tool string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.ToolCacheHits.WithLabelValues(tool, result).Inc()
}

// SetCircuitBreakerState records a breaker's state as a gauge value.
func (m *Metrics) SetCircuitBreakerState(tool string, stateValue float64) {
	m.CircuitBreakerState.WithLabelValues(tool).Set(stateValue)
}

// RecordReplan records one control-loop replan decision.
func (m *Metrics) RecordReplan(triggerType string, approved bool) {
	m.ReplansTotal.WithLabelValues(triggerType, boolLabel(approved)).Inc()
}

// IncrementInFlight increments the in-flight HTTP request gauge.
func (m *Metrics) IncrementInFlight() { m.RequestsInFlight.Inc() }

// DecrementInFlight decrements the in-flight HTTP request gauge.
func (m *Metrics) DecrementInFlight() { m.RequestsInFlight.Dec() }

// UpdateUptime sets the uptime gauge relative to startTime.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Enabled reports whether Prometheus metrics should be exposed, honoring
// METRICS_ENABLED the same way the teacher's runtime.IsProduction gate
// does, minus the production-environment dependency this module doesn't
// carry.
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return true
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
