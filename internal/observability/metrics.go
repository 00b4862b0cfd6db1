// Package observability instruments the server with
// Prometheus metrics and OpenTelemetry tracing, grounded on
// coreengine/observability's promauto/otlptracegrpc wiring and adapted
// from pipeline/agent/LLM counters to RPC dispatch counters.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tcprest/tcprest-go/internal/rpcerrors"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tcprest_requests_total",
			Help: "Total number of dispatched RPC requests",
		},
		[]string{"class", "method", "status"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tcprest_request_duration_seconds",
			Help:    "Dispatch duration in seconds, from parsed request to encoded response",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"class", "method"},
	)

	connectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tcprest_connections_total",
			Help: "Total number of connections or datagrams whose request frame parsed and reached dispatch",
		},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tcprest_active_connections",
			Help: "Number of requests currently being dispatched",
		},
	)
)

// Metrics implements server.Hooks over the package-level Prometheus
// collectors above.
type Metrics struct{}

// NewMetrics returns a Metrics hook set. Prometheus collectors are
// process-global (promauto registers them once at package init), so
// every Metrics value shares the same underlying series.
func NewMetrics() *Metrics { return &Metrics{} }

// RequestReceived implements server.Hooks.
func (*Metrics) RequestReceived(classFQN, method string) {
	connectionsTotal.Inc()
	activeConnections.Inc()
}

// RequestCompleted implements server.Hooks.
func (*Metrics) RequestCompleted(classFQN, method string, status rpcerrors.Status, duration time.Duration) {
	requestsTotal.WithLabelValues(classFQN, method, status.String()).Inc()
	requestDurationSeconds.WithLabelValues(classFQN, method).Observe(duration.Seconds())
	activeConnections.Dec()
}
