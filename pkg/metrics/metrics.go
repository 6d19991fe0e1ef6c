// Package metrics holds the Prometheus collectors and the OpenTelemetry
// tracer shared by the cadview gateway and bridge.
//
// Every recording method is safe on a nil *Metrics, so components can be
// built without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "cadview").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the collectors and serves /metrics.
	// Default: a fresh registry with the Go and process collectors.
	Registry *prometheus.Registry
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the cadview collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	connections      prometheus.Gauge
	framesTotal      *prometheus.CounterVec
	pushesTotal      *prometheus.CounterVec
	geometryIngested prometheus.Counter
}

// New registers the collectors.
//
// Metrics collected:
//   - cadview_http_requests_total: requests by route and status code
//   - cadview_http_request_duration_seconds: request latency by route
//   - cadview_bridge_connections: live bridge connections
//   - cadview_bridge_frames_total: inbound frames by eid and result
//   - cadview_bridge_pushes_total: outbound pushes by eid and result
//   - cadview_geometry_ingested_total: accepted geometry payloads
func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: "cadview",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
		config.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		registry: config.Registry,

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total number of HTTP requests handled by the gateway",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   "bridge",
			Name:        "connections",
			Help:        "Number of registered bridge connections",
			ConstLabels: config.ConstLabels,
		}),

		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "bridge",
			Name:        "frames_total",
			Help:        "Inbound bridge frames by event id and result",
			ConstLabels: config.ConstLabels,
		}, []string{"eid", "result"}),

		pushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "bridge",
			Name:        "pushes_total",
			Help:        "Outbound bridge pushes by event id and result",
			ConstLabels: config.ConstLabels,
		}, []string{"eid", "result"}),

		geometryIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "geometry",
			Name:        "ingested_total",
			Help:        "Geometry payloads accepted by the gateway",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ConnectionOpened records a registered bridge connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed records a removed bridge connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// Frame records one inbound frame. eid should be a registered event name or
// "unknown" to keep label cardinality bounded.
func (m *Metrics) Frame(eid, result string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(eid, result).Inc()
}

// Push records one outbound push.
func (m *Metrics) Push(eid, result string) {
	if m == nil {
		return
	}
	m.pushesTotal.WithLabelValues(eid, result).Inc()
}

// GeometryIngested records one accepted geometry payload.
func (m *Metrics) GeometryIngested() {
	if m == nil {
		return
	}
	m.geometryIngested.Inc()
}
