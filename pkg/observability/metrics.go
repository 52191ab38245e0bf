// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the relais gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and model.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "model"},
	)

	// RequestDuration records HTTP request duration in seconds by method and model.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relais_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "model"},
	)

	// StreamingConnections tracks the number of active SSE streaming connections.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relais_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// BackendRequestsTotal counts calls to backend hosts by failover outcome.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_backend_requests_total",
			Help: "Backend host calls",
		},
		[]string{"host", "outcome"},
	)

	// BackendLatency records backend call latency in seconds per host.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relais_backend_latency_seconds",
			Help:    "Backend latency",
			Buckets: LLMBuckets,
		},
		[]string{"host"},
	)

	// TokensTotal counts tokens processed by model and direction (input/output).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// TokenRefreshesTotal counts credential refresh attempts by outcome.
	TokenRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relais_token_refreshes_total",
			Help: "Credential refresh attempts",
		},
		[]string{"outcome"},
	)
)

// Backend outcome label values.
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		BackendRequestsTotal,
		BackendLatency,
		TokensTotal,
		TokenRefreshesTotal,
	)
}
