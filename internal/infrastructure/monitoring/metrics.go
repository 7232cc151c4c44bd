package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the widget backend.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session lifecycle metrics
	SessionsInitiated prometheus.Counter
	SessionsRestored  prometheus.Counter
	RestoresRefused   prometheus.Counter
	SessionsCleared   prometheus.Counter
	InitiationErrors  *prometheus.CounterVec

	// Message metrics
	MessagesSent     prometheus.Counter
	MessagesReceived prometheus.Counter
	UnreadCount      prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "widget_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SessionsInitiated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_sessions_initiated_total",
				Help: "Total number of fresh chat sessions created",
			},
		),
		SessionsRestored: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_sessions_restored_total",
				Help: "Total number of chat sessions restored from persistence",
			},
		),
		RestoresRefused: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_session_restores_refused_total",
				Help: "Total number of restorations refused (resolved room on a sessional app)",
			},
		),
		SessionsCleared: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_sessions_cleared_total",
				Help: "Total number of explicit session clears",
			},
		),
		InitiationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_initiation_errors_total",
				Help: "Total number of chat initiation failures by stage",
			},
			[]string{"stage"},
		),

		MessagesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_messages_sent_total",
				Help: "Total number of messages sent through the transport",
			},
		),
		MessagesReceived: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "widget_messages_received_total",
				Help: "Total number of inbound messages applied to the state store",
			},
		),
		UnreadCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "widget_unread_messages",
				Help: "Current unread message count",
			},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "widget_ws_connections",
				Help: "Number of active widget WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "widget_ws_messages_total",
				Help: "Total number of WebSocket messages by direction",
			},
			[]string{"direction"},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "widget_uptime_seconds",
				Help: "Process uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records metrics for a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
