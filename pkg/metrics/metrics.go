package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Send attempts by final status: sent, failed, invalid
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_emails_total",
			Help: "Total number of send attempts by outcome",
		},
		[]string{"status"},
	)

	// Relay round-trip (seconds)
	RelayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mail_relay_duration_seconds",
			Help:    "Relay operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"provider", "operation", "result"},
	)

	RelayFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_relay_failures_total",
			Help: "Relay failures by classified reason",
		},
		[]string{"provider", "reason"},
	)

	// HTTP request latency (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		},
		[]string{"method", "path", "status"},
	)

	HistoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mail_history_entries",
			Help: "Number of entries currently held in the send history",
		},
	)

	// 0 closed, 1 open, 2 half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mail_relay_circuit_breaker_state",
			Help: "Relay circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"provider"},
	)
)

func IncrementEmails(status string) {
	EmailsTotal.WithLabelValues(status).Inc()
}

func RecordRelayDuration(provider, operation, result string, duration time.Duration) {
	RelayDuration.WithLabelValues(provider, operation, result).Observe(duration.Seconds())
}

func IncrementRelayFailure(provider, reason string) {
	RelayFailures.WithLabelValues(provider, reason).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func SetHistoryEntries(n int) {
	HistoryEntries.Set(float64(n))
}

func SetCircuitBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
