package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Chats
	ChatsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "chats_created_total",
			Help:      "Total chats created",
		},
	)

	// Stream pipeline outcomes per terminal state
	StreamSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "stream_sessions_total",
			Help:      "Chat stream sessions by outcome",
		},
		[]string{"outcome"},
	)

	// Stream duration covering the whole pipeline
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "stream_duration_seconds",
			Help:      "Chat stream pipeline duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	// Active streaming connections gauge
	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "active_streams",
			Help:      "Currently active chat stream connections",
		},
	)

	// Feedback sub-pipeline results
	FeedbackDerivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "feedback_derivations_total",
			Help:      "Feedback derivation attempts by result",
		},
		[]string{"result"},
	)

	// Scoring tool latency
	CompilerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "compiler_duration_seconds",
			Help:      "Scoring tool invocation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		},
	)

	// Title derivations
	TitleDerivationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "houzel",
			Subsystem: "server",
			Name:      "title_derivations_total",
			Help:      "Title derivation attempts by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records an HTTP request and its duration
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint, status).Observe(durationSec)
}

// RecordStreamSession records one finished chat stream pipeline
func RecordStreamSession(outcome string, durationSec float64) {
	StreamSessionsTotal.WithLabelValues(outcome).Inc()
	StreamDuration.WithLabelValues(outcome).Observe(durationSec)
}

// RecordFeedbackDerivation records a feedback derivation attempt
func RecordFeedbackDerivation(result string) {
	FeedbackDerivationsTotal.WithLabelValues(result).Inc()
}

// RecordTitleDerivation records a title derivation attempt
func RecordTitleDerivation(result string) {
	TitleDerivationsTotal.WithLabelValues(result).Inc()
}
