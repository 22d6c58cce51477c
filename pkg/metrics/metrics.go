// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamFramesTotal tracks decoded event-stream frames by event kind.
	StreamFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_frames_total",
			Help: "Event-stream frames decoded into chat events",
		},
		[]string{"kind"},
	)

	// StreamFramesDropped tracks frames that could not be decoded.
	StreamFramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_frames_dropped_total",
			Help: "Event-stream frames dropped because they could not be decoded",
		},
		[]string{"reason"},
	)

	// StreamDuration tracks how long a chat reply stream stays open.
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_stream_duration_seconds",
			Help:    "Chat reply stream duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// StreamsActive tracks chat reply streams currently being read.
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_streams_active",
			Help: "Number of chat reply streams currently being read",
		},
	)

	// ClientRequestDuration tracks backend API calls made by the client.
	ClientRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Backend API request duration in seconds, until response headers",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)

	// ConversationsStarted tracks conversations created by a first reply.
	ConversationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_started_total",
			Help: "Conversations that received their identifier from a terminal stream event",
		},
	)

	// RequestDuration tracks HTTP request duration on the backend stub.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests on the backend stub.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RepliesTotal tracks replies generated by the backend stub.
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replies_total",
			Help: "Chat replies generated by the backend stub",
		},
		[]string{"replier", "status"},
	)

	// RiskEventsTotal tracks safety risk events recorded by the backend stub.
	RiskEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_events_total",
			Help: "Safety risk events recorded, by risk level",
		},
		[]string{"level"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordFrame records a decoded frame of the given event kind.
func RecordFrame(kind string) {
	StreamFramesTotal.WithLabelValues(kind).Inc()
}

// RecordDroppedFrame records a frame that was dropped.
func RecordDroppedFrame(reason string) {
	StreamFramesDropped.WithLabelValues(reason).Inc()
}

// RecordStream records a finished chat stream.
func RecordStream(outcome string, duration float64) {
	StreamDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordClientRequest records a backend API call made by the client.
func RecordClientRequest(endpoint, status string, duration float64) {
	ClientRequestDuration.WithLabelValues(endpoint, status).Observe(duration)
}

// IncrementStreams increments the active stream count.
func IncrementStreams() {
	StreamsActive.Inc()
}

// DecrementStreams decrements the active stream count.
func DecrementStreams() {
	StreamsActive.Dec()
}
