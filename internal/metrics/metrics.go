// Package metrics exposes Prometheus instrumentation for the discovery API
// and the real-time proximity layer.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Discovery
	DiscoveryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_requests_total",
			Help: "Discovery queries by outcome",
		},
		[]string{"outcome"},
	)

	DiscoveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_duration_seconds",
			Help:    "Time spent answering a discovery query, spatial lookup included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	DiscoveryCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_candidates",
			Help:    "Candidates returned by the spatial index per discovery query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	// Real-time
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Currently open websocket connections",
		},
	)

	WSEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_events_total",
			Help: "Inbound websocket events by name and outcome",
		},
		[]string{"event", "outcome"},
	)

	ProximityNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_notifications_total",
			Help: "nearby_user_update pushes sent to other connections",
		},
	)

	DroppedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_dropped_messages_total",
			Help: "Outbound messages dropped because a client send buffer was full",
		},
	)
)

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDiscovery records a discovery query outcome.
func RecordDiscovery(outcome string, candidates int, duration time.Duration) {
	DiscoveryRequests.WithLabelValues(outcome).Inc()
	DiscoveryDuration.Observe(duration.Seconds())
	if candidates >= 0 {
		DiscoveryCandidates.Observe(float64(candidates))
	}
}

// RecordWSEvent records an inbound socket event.
func RecordWSEvent(event, outcome string) {
	WSEvents.WithLabelValues(event, outcome).Inc()
}
