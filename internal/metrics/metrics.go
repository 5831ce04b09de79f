// Package metrics registers the Prometheus metrics for the gateway.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway
type Metrics struct {
	// Socket metrics
	ConnectionsTotal  prometheus.Counter
	ActiveConnections prometheus.Gauge
	EventsSentTotal   prometheus.CounterVec
	EventsRecvTotal   prometheus.CounterVec
	SendErrorsTotal   prometheus.CounterVec
	AckTimeoutsTotal  prometheus.Counter
	RateLimitedTotal  prometheus.Counter

	// Call signaling metrics
	CallsInitiatedTotal prometheus.Counter
	CallsActive         prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   prometheus.CounterVec
	HTTPRequestDuration prometheus.HistogramVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ws_connections_total",
				Help: "Total number of WebSocket connections accepted",
			}),
			ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "ws_active_connections",
				Help: "Number of currently connected clients",
			}),
			EventsSentTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_events_sent_total",
					Help: "Outbound events relayed, by event type",
				},
				[]string{"type"},
			),
			EventsRecvTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_events_received_total",
					Help: "Inbound events received, by event type",
				},
				[]string{"type"},
			),
			SendErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ws_send_errors_total",
					Help: "Failed deliveries, by reason",
				},
				[]string{"reason"},
			),
			AckTimeoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ws_ack_timeouts_total",
				Help: "Deliveries whose acknowledgement window expired",
			}),
			RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ws_rate_limited_total",
				Help: "Inbound messages rejected by the per-client rate limiter",
			}),

			CallsInitiatedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "calls_initiated_total",
				Help: "Call sessions initiated",
			}),
			CallsActive: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "calls_active",
				Help: "Call rooms with at least one member",
			}),

			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
		}
	})
	return instance
}

// Get returns the singleton metrics instance
func Get() *Metrics {
	return Initialize()
}
