// Package metrics provides Prometheus metrics for the telemetry pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Telemetry flow
	framesTotal     prometheus.Counter
	framesMalformed prometheus.Counter
	frameAttention  prometheus.Histogram

	// Alerts
	alertsTotal      *prometheus.CounterVec
	alertsSuppressed prometheus.Counter

	// Connection lifecycle
	connectionState  prometheus.Gauge
	connectAttempts  prometheus.Counter
	disconnectsTotal prometheus.Counter

	// Session lifecycle
	sessionTransitions *prometheus.CounterVec
	sessionActive      prometheus.Gauge

	// Pipeline errors
	pipelineErrors prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "studyeyes",
		subsystem:        "tracker",
		histogramBuckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_total",
		Help:      "Total number of normalized telemetry frames published",
	})

	m.framesMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_malformed_total",
		Help:      "Total number of raw frames rejected as malformed",
	})

	m.frameAttention = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_attention_score",
		Help:      "Distribution of attention scores across published frames",
		Buckets:   m.histogramBuckets,
	})

	m.alertsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "alerts_total",
			Help:      "Total number of alerts emitted by kind",
		},
		[]string{"kind", "severity"},
	)

	m.alertsSuppressed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "alerts_suppressed_total",
		Help:      "Total number of alert conditions suppressed by the cooldown",
	})

	m.connectionState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connection_state",
		Help:      "Current connection state (0 disconnected, 1 connecting, 2 connected)",
	})

	m.connectAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connect_attempts_total",
		Help:      "Total number of backend connection attempts",
	})

	m.disconnectsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "disconnects_total",
		Help:      "Total number of transitions to the disconnected state",
	})

	m.sessionTransitions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "session_transitions_total",
			Help:      "Total number of session state transitions by target status",
		},
		[]string{"status"},
	)

	m.sessionActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_active",
		Help:      "Whether a tracking session is currently active (1) or not (0)",
	})

	m.pipelineErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pipeline_errors_total",
		Help:      "Total number of non-fatal pipeline errors",
	})
}

// RecordFrame increments the published frames counter and observes the
// frame's attention score.
func RecordFrame(attention float64) {
	globalManager.framesTotal.Inc()
	globalManager.frameAttention.Observe(attention)
}

// RecordMalformedFrame increments the malformed frames counter.
func RecordMalformedFrame() {
	globalManager.framesMalformed.Inc()
}

// RecordAlert records an emitted alert by kind and severity.
func RecordAlert(kind, severity string) {
	globalManager.alertsTotal.WithLabelValues(kind, severity).Inc()
}

// RecordAlertSuppressed increments the cooldown suppression counter.
func RecordAlertSuppressed() {
	globalManager.alertsSuppressed.Inc()
}

// UpdateConnectionState sets the connection state gauge.
func UpdateConnectionState(state int) {
	globalManager.connectionState.Set(float64(state))
}

// RecordConnectAttempt increments the connection attempts counter.
func RecordConnectAttempt() {
	globalManager.connectAttempts.Inc()
}

// RecordDisconnect increments the disconnects counter.
func RecordDisconnect() {
	globalManager.disconnectsTotal.Inc()
}

// RecordSessionTransition records a session state transition.
func RecordSessionTransition(status string) {
	globalManager.sessionTransitions.WithLabelValues(status).Inc()
}

// UpdateSessionActive sets the active-session gauge.
func UpdateSessionActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	globalManager.sessionActive.Set(v)
}

// RecordPipelineError increments the pipeline errors counter.
func RecordPipelineError() {
	globalManager.pipelineErrors.Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
