// Package metrics exposes the Prometheus collectors used by the connection
// pipeline, the WebSocket sessions and the server.
//
// Metrics collected (namespace "duplex" by default):
//   - duplex_connections_total: Counter of accepted connections
//   - duplex_active_connections: Gauge of connections currently open
//   - duplex_requests_total: Counter of dispatched requests by status
//   - duplex_request_duration_seconds: Histogram of request handling time
//   - duplex_frames_received_total: Counter of WebSocket frames by opcode
//   - duplex_messages_total: Counter of reassembled messages by type
//   - duplex_session_connections: Gauge of connections per session
//   - duplex_close_frames_sent_total: Counter of close frames by status code
//
// Every method is safe to call on a nil *Collector, so components can take an
// optional collector without guarding each call site.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collector.
type Config struct {
	// Namespace is the metrics namespace (default: "duplex").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64
}

// Option configures the collector.
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

// Collector holds the registered Prometheus metrics.
type Collector struct {
	connections        prometheus.Counter
	activeConnections  prometheus.Gauge
	requests           *prometheus.CounterVec
	requestDuration    prometheus.Histogram
	framesReceived     *prometheus.CounterVec
	messages           *prometheus.CounterVec
	sessionConnections *prometheus.GaugeVec
	closeFramesSent    *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, opts ...Option) *Collector {
	cfg := Config{
		Namespace: "duplex",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "connections_total",
			Help:        "Total number of accepted connections",
			ConstLabels: cfg.ConstLabels,
		}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "active_connections",
			Help:        "Number of open connections",
			ConstLabels: cfg.ConstLabels,
		}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "requests_total",
			Help:        "Total number of dispatched HTTP requests",
			ConstLabels: cfg.ConstLabels,
		}, []string{"status"}),

		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "request_duration_seconds",
			Help:        "Time from first byte read to reply written",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "frames_received_total",
			Help:        "Total WebSocket frames received by opcode",
			ConstLabels: cfg.ConstLabels,
		}, []string{"opcode"}),

		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "messages_total",
			Help:        "Total reassembled WebSocket messages by type",
			ConstLabels: cfg.ConstLabels,
		}, []string{"session", "type"}),

		sessionConnections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "session_connections",
			Help:        "Number of connections attached to each session",
			ConstLabels: cfg.ConstLabels,
		}, []string{"session"}),

		closeFramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "close_frames_sent_total",
			Help:        "Total close frames sent by status code",
			ConstLabels: cfg.ConstLabels,
		}, []string{"code"}),
	}
}

// ConnOpened records an accepted connection.
func (c *Collector) ConnOpened() {
	if c == nil {
		return
	}
	c.connections.Inc()
	c.activeConnections.Inc()
}

// ConnClosed records a connection whose socket was shut down.
func (c *Collector) ConnClosed() {
	if c == nil {
		return
	}
	c.activeConnections.Dec()
}

// ObserveRequest records one dispatched request and the status it was
// answered with.
func (c *Collector) ObserveRequest(status int, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	c.requestDuration.Observe(d.Seconds())
}

// FrameReceived records one inbound frame.
func (c *Collector) FrameReceived(opcode string) {
	if c == nil {
		return
	}
	c.framesReceived.WithLabelValues(opcode).Inc()
}

// MessageDispatched records a complete message handed to a callback.
func (c *Collector) MessageDispatched(session, kind string) {
	if c == nil {
		return
	}
	c.messages.WithLabelValues(session, kind).Inc()
}

// SetSessionConnections sets the connection count of a session.
func (c *Collector) SetSessionConnections(session string, n int) {
	if c == nil {
		return
	}
	c.sessionConnections.WithLabelValues(session).Set(float64(n))
}

// CloseSent records an outbound close frame.
func (c *Collector) CloseSent(code uint16) {
	if c == nil {
		return
	}
	c.closeFramesSent.WithLabelValues(strconv.Itoa(int(code))).Inc()
}
