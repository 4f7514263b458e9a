// Package metrics provides Prometheus metrics for the conversation-api service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "workify"
	subsystem = "conversation_api"
)

var (
	// RequestsTotal counts HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// MessagesSent counts committed messages by sender type.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Total number of messages appended",
		},
		[]string{"sender_type", "transport"},
	)

	// SendRejections counts sends refused before any write.
	SendRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "send_rejections_total",
			Help:      "Total number of rejected sends by reason",
		},
		[]string{"reason"},
	)

	// DuplicateSends counts sends replayed through client_message_id.
	DuplicateSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duplicate_sends_total",
			Help:      "Total number of sends answered from an earlier client_message_id",
		},
	)

	// SeenFlips counts messages flipped to seen.
	SeenFlips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "seen_flips_total",
			Help:      "Total number of messages marked seen",
		},
		[]string{"reader_type"},
	)

	// LockWait tracks how long callers waited for the conversation lock.
	LockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversation_lock_wait_seconds",
			Help:      "Time spent acquiring the per-conversation lock",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3, 5},
		},
		[]string{"driver", "outcome"},
	)

	// ConversationsCreated counts conversations inserted by getOrCreate.
	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "conversations_created_total",
			Help:      "Total number of conversations created",
		},
	)

	// WebsocketConnections tracks live websocket sessions on this instance.
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "websocket_connections",
			Help:      "Number of open websocket connections",
		},
	)

	// FanoutEvents counts per-destination deliveries.
	FanoutEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fanout_events_total",
			Help:      "Realtime events by channel and result",
		},
		[]string{"channel", "result"},
	)

	// RelayErrors counts broker publish and decode failures.
	RelayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "relay_errors_total",
			Help:      "Cross-instance relay failures",
		},
		[]string{"broker", "stage"},
	)

	// ReconcileRuns counts reconciler cycles.
	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_runs_total",
			Help:      "Unread reconciler cycles by outcome",
		},
		[]string{"outcome"},
	)

	// ReconcileFixes counts conversations whose counters were corrected.
	ReconcileFixes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconcile_fixed_total",
			Help:      "Conversations with corrected unread counters",
		},
	)
)

// RecordRequest records one finished HTTP request.
func RecordRequest(method, endpoint, status string, duration float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordMessageSent records a committed send.
func RecordMessageSent(senderType, transport string) {
	MessagesSent.WithLabelValues(senderType, transport).Inc()
}

// RecordSendRejected records a refused send.
func RecordSendRejected(reason string) {
	SendRejections.WithLabelValues(reason).Inc()
}

// RecordSeen records messages flipped by one markSeen call.
func RecordSeen(readerType string, flipped int64) {
	if flipped <= 0 {
		return
	}
	SeenFlips.WithLabelValues(readerType).Add(float64(flipped))
}

// RecordLockWait records one lock acquisition attempt.
func RecordLockWait(driver, outcome string, seconds float64) {
	LockWait.WithLabelValues(driver, outcome).Observe(seconds)
}

// RecordFanout records one event handed to a destination.
func RecordFanout(channel string, delivered bool) {
	result := "dropped"
	if delivered {
		result = "delivered"
	}
	FanoutEvents.WithLabelValues(channel, result).Inc()
}

// RecordRelayError records a broker failure.
func RecordRelayError(broker, stage string) {
	RelayErrors.WithLabelValues(broker, stage).Inc()
}

// RecordReconcile records one reconciler cycle.
func RecordReconcile(outcome string, fixed int) {
	ReconcileRuns.WithLabelValues(outcome).Inc()
	if fixed > 0 {
		ReconcileFixes.Add(float64(fixed))
	}
}
