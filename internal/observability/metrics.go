// Package observability holds the Prometheus collectors shared across the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts adapter invocations by outcome
	// ("success", "error", "timeout" or "canceled").
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instaorbit_provider_requests_total",
			Help: "Total number of upstream provider calls by outcome",
		},
		[]string{"provider", "status"},
	)

	// ProviderDuration observes adapter latency, including timeouts.
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "instaorbit_provider_request_duration_seconds",
			Help:    "Upstream provider call duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"provider"},
	)

	// CacheLookups counts response cache lookups ("hit" or "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instaorbit_cache_lookups_total",
			Help: "Total number of response cache lookups by result",
		},
		[]string{"result"},
	)

	// Resolutions counts resolver outcomes.
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "instaorbit_resolutions_total",
			Help: "Total number of resolution requests by outcome",
		},
		[]string{"outcome"},
	)

	// CircuitState reports each provider's circuit breaker:
	// 0 closed, 1 half-open, 2 open.
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "instaorbit_provider_circuit_state",
			Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)

	// UsageDropped counts usage increments dropped because the tracker queue was full.
	UsageDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "instaorbit_usage_dropped_total",
			Help: "Total number of usage increments dropped before reaching the store",
		},
	)
)

// ObserveProvider records one adapter call.
func ObserveProvider(provider, status string, elapsed time.Duration) {
	ProviderRequests.WithLabelValues(provider, status).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}
