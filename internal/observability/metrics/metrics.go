// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "heart_sound"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsStarted  prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsFinished *prometheus.CounterVec
	StepTransitions  *prometheus.CounterVec

	// Capture metrics
	RecordingSeconds prometheus.Histogram
	CaptureErrors    *prometheus.CounterVec

	// Analysis backend metrics
	HealthChecks     *prometheus.CounterVec
	AnalysisRequests *prometheus.CounterVec
	AnalysisLatency  prometheus.Histogram
	UploadBytes      prometheus.Histogram
	BreakerState     prometheus.Gauge
	RiskLevels       *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Report cache metrics
	CacheOperations *prometheus.CounterVec

	// Control API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of guided capture sessions opened",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently open (0 or 1)",
		}),
		SessionsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Total number of sessions finished, by outcome",
		}, []string{"outcome"}),
		StepTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_transitions_total",
			Help:      "Total number of step entries, by step",
		}, []string{"step"}),

		RecordingSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recording_seconds",
			Help:      "Recording length in seconds at stop",
			Buckets:   []float64{1, 5, 10, 15, 20, 25, 30},
		}),
		CaptureErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Total number of capture device errors",
		}, []string{"code"}),

		HealthChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_health_checks_total",
			Help:      "Total number of backend liveness checks, by result",
		}, []string{"result"}),
		AnalysisRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_requests_total",
			Help:      "Total number of analysis submissions, by outcome code",
		}, []string{"outcome"}),
		AnalysisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_latency_seconds",
			Help:      "Analysis upload round-trip latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		UploadBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_bytes",
			Help:      "Size of uploaded recordings in bytes",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),
		RiskLevels: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_levels_total",
			Help:      "Total number of normalized results, by risk level",
		}, []string{"level"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		CacheOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_operations_total",
			Help:      "Total number of report cache operations, by operation and result",
		}, []string{"op", "result"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of control API requests",
		}, []string{"method", "route", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Control API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// RecordSessionStart records a new session being opened.
func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session finishing with the given outcome.
func (m *Metrics) RecordSessionEnd(outcome string) {
	m.SessionsActive.Dec()
	m.SessionsFinished.WithLabelValues(outcome).Inc()
}

// RecordStep records entry into a step.
func (m *Metrics) RecordStep(step string) {
	m.StepTransitions.WithLabelValues(step).Inc()
}

// RecordRecording records the length of a finished recording.
func (m *Metrics) RecordRecording(seconds float64) {
	m.RecordingSeconds.Observe(seconds)
}

// RecordCaptureError records a capture device failure.
func (m *Metrics) RecordCaptureError(code string) {
	m.CaptureErrors.WithLabelValues(code).Inc()
}

// RecordHealthCheck records a backend liveness check.
func (m *Metrics) RecordHealthCheck(healthy bool) {
	result := "unhealthy"
	if healthy {
		result = "healthy"
	}
	m.HealthChecks.WithLabelValues(result).Inc()
}

// RecordAnalysis records an analysis submission outcome.
func (m *Metrics) RecordAnalysis(outcome string, latencySeconds float64) {
	m.AnalysisRequests.WithLabelValues(outcome).Inc()
	if latencySeconds > 0 {
		m.AnalysisLatency.Observe(latencySeconds)
	}
}

// RecordUpload records the size of an uploaded recording.
func (m *Metrics) RecordUpload(bytes int64) {
	m.UploadBytes.Observe(float64(bytes))
}

// RecordBreakerState records the circuit breaker state.
func (m *Metrics) RecordBreakerState(state int) {
	m.BreakerState.Set(float64(state))
}

// RecordRiskLevel records the risk level of a normalized result.
func (m *Metrics) RecordRiskLevel(level string) {
	m.RiskLevels.WithLabelValues(level).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordCacheOp records a report cache operation.
func (m *Metrics) RecordCacheOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CacheOperations.WithLabelValues(op, result).Inc()
}

// RecordHTTPRequest records a control API request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(latencySeconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
