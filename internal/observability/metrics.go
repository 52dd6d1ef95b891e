package observability

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands. Cache misses are not errors.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarhub_redis_errors_total",
		Help: "Failed Redis commands by command name",
	}, []string{"operation"})

	// CacheLookups counts cache-aside reads by hit, miss or error.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarhub_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// DatabaseQueryLatency records repository latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scholarhub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ApplicationTransitions counts workflow actions by outcome.
	ApplicationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarhub_application_transitions_total",
		Help: "Application workflow actions by action and result",
	}, []string{"action", "result"})

	// InFlightRejections counts mutations refused because another one on the
	// same application was still running.
	InFlightRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarhub_inflight_rejections_total",
		Help: "Mutations rejected by the in-flight guard",
	}, []string{"scope"})

	// PaymentNotifications counts gateway callbacks by mapped outcome.
	PaymentNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarhub_payment_notifications_total",
		Help: "Payment gateway notifications by outcome",
	}, []string{"outcome"})

	// WebSocketConnections is the number of open status-push sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scholarhub_websocket_connections",
		Help: "Open status push connections",
	})

	// WebSocketDrops counts frames not delivered to a client, labelled
	// "full" when its outbox overflowed and "closed" after disconnect.
	WebSocketDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scholarhub_websocket_dropped_frames_total",
		Help: "Status push frames dropped per reason",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// codedError is satisfied by errors that carry an API error code.
type codedError interface {
	ErrorCode() string
}

// resultLabel is "ok" or the lowercased error code, so a dashboard can tell
// forbidden attempts from stale-state conflicts.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var coded codedError
	if errors.As(err, &coded) {
		return strings.ToLower(coded.ErrorCode())
	}
	return "error"
}

// RecordTransition counts one workflow action outcome.
func RecordTransition(action string, err error) {
	ApplicationTransitions.WithLabelValues(action, resultLabel(err)).Inc()
}
