package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds metrics configuration
type Config struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Path        string `json:"path" yaml:"path"`
	Namespace   string `json:"namespace" yaml:"namespace"`
	Subsystem   string `json:"subsystem" yaml:"subsystem"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// DefaultConfig returns default metrics configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		Path:        "/metrics",
		Namespace:   "gportal",
		ServiceName: "nodes",
	}
}

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	config *Config

	// Webhook server
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Node execution
	NodeExecutionsTotal   *prometheus.CounterVec
	NodeExecutionDuration *prometheus.HistogramVec
	NodeItemsTotal        *prometheus.CounterVec

	// Entity API
	EntityRequestsTotal   *prometheus.CounterVec
	EntityRequestDuration *prometheus.HistogramVec

	// Routing
	RoutedItemsTotal *prometheus.CounterVec

	// Broadcasts and waits
	BroadcastsTotal   *prometheus.CounterVec
	WaitingExecutions prometheus.Gauge
	ResumesTotal      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a metrics instance backed by its own registry
func New(config *Config) *Metrics {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	m.initHTTPMetrics()
	m.initNodeMetrics()
	m.initEntityMetrics()
	m.initExecutionMetrics()

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.NodeExecutionsTotal,
		m.NodeExecutionDuration,
		m.NodeItemsTotal,
		m.EntityRequestsTotal,
		m.EntityRequestDuration,
		m.RoutedItemsTotal,
		m.BroadcastsTotal,
		m.WaitingExecutions,
		m.ResumesTotal,
	)

	return m
}

func (m *Metrics) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: m.config.Subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Metrics) histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: m.config.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, labels)
}

func (m *Metrics) initHTTPMetrics() {
	m.HTTPRequestsTotal = m.counter("http_requests_total", "Total number of webhook HTTP requests", "method", "path", "status")
	m.HTTPRequestDuration = m.histogram("http_request_duration_seconds", "Webhook HTTP request duration in seconds", "method", "path", "status")
}

func (m *Metrics) initNodeMetrics() {
	m.NodeExecutionsTotal = m.counter("node_executions_total", "Total number of node executions", "node_type", "status")
	m.NodeExecutionDuration = m.histogram("node_execution_duration_seconds", "Node execution duration in seconds", "node_type", "status")
	m.NodeItemsTotal = m.counter("node_items_total", "Items processed per node and outcome", "node_type", "outcome")
	m.RoutedItemsTotal = m.counter("routed_items_total", "Items routed per output channel", "output")
}

func (m *Metrics) initEntityMetrics() {
	m.EntityRequestsTotal = m.counter("entity_requests_total", "Total number of entity API requests", "operation", "status")
	m.EntityRequestDuration = m.histogram("entity_request_duration_seconds", "Entity API request duration in seconds", "operation", "status")
}

func (m *Metrics) initExecutionMetrics() {
	m.BroadcastsTotal = m.counter("broadcasts_total", "Socket broadcasts by outcome", "transport", "status")
	m.WaitingExecutions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: m.config.Subsystem,
		Name:      "waiting_executions",
		Help:      "Executions currently suspended",
	})
	m.ResumesTotal = m.counter("resumes_total", "Resumed executions by trigger", "trigger")
}

// RecordHTTPRequest records a served webhook request
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := strconv.Itoa(statusCode)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordNodeExecution records one node run
func (m *Metrics) RecordNodeExecution(nodeType, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.NodeExecutionsTotal.WithLabelValues(nodeType, status).Inc()
	m.NodeExecutionDuration.WithLabelValues(nodeType, status).Observe(duration.Seconds())
}

// RecordItem records a per-item outcome (success, error, continued)
func (m *Metrics) RecordItem(nodeType, outcome string) {
	if m == nil {
		return
	}
	m.NodeItemsTotal.WithLabelValues(nodeType, outcome).Inc()
}

// RecordEntityRequest records a dispatched entity request
func (m *Metrics) RecordEntityRequest(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.EntityRequestsTotal.WithLabelValues(operation, status).Inc()
	m.EntityRequestDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordRoute records an item sent to an output channel
func (m *Metrics) RecordRoute(output int) {
	if m == nil {
		return
	}
	m.RoutedItemsTotal.WithLabelValues(strconv.Itoa(output)).Inc()
}

// RecordBroadcast records a broadcast attempt
func (m *Metrics) RecordBroadcast(transport, status string) {
	if m == nil {
		return
	}
	m.BroadcastsTotal.WithLabelValues(transport, status).Inc()
}

// SetWaitingExecutions sets the suspended execution gauge
func (m *Metrics) SetWaitingExecutions(count int) {
	if m == nil {
		return
	}
	m.WaitingExecutions.Set(float64(count))
}

// RecordResume records a resumed execution
func (m *Metrics) RecordResume(trigger string) {
	if m == nil {
		return
	}
	m.ResumesTotal.WithLabelValues(trigger).Inc()
}

// Enabled reports whether the metrics endpoint should be exposed
func (m *Metrics) Enabled() bool {
	return m != nil && m.config.Enabled
}

// Path is where the metrics endpoint is mounted
func (m *Metrics) Path() string {
	if m == nil || m.config.Path == "" {
		return "/metrics"
	}
	return m.config.Path
}

// Handler returns the HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
