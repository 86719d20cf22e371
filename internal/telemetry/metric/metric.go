// Package metric provides Prometheus metrics for minikv.
//
// It exposes connection, command, and store gauges/counters for the
// /metrics endpoint of the ops HTTP server.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Connection metrics
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter

	// Command metrics
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	CommandErrors   prometheus.Counter

	// Protocol metrics
	ProtocolErrors prometheus.Counter

	// Store metrics
	StoreKeys prometheus.GaugeFunc
}

// New creates and registers all metrics with reg. A nil reg falls back to
// a private registry, which keeps repeated construction (e.g. in tests)
// free of duplicate registration panics.
//
// keyCount feeds the store key gauge; it may be nil.
func New(reg prometheus.Registerer, keyCount func() int) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	m := &Metrics{
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "minikv",
			Name:      "connections_active",
			Help:      "Number of currently active client connections.",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "minikv",
			Name:      "connections_total",
			Help:      "Total number of accepted client connections.",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minikv",
			Name:      "commands_total",
			Help:      "Total number of dispatched commands by name.",
		}, []string{"command"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "minikv",
			Name:      "command_duration_seconds",
			Help:      "Command handler latency by name.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"command"}),
		CommandErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "minikv",
			Name:      "command_errors_total",
			Help:      "Total number of requests answered with an in-band error.",
		}),
		ProtocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "minikv",
			Name:      "protocol_errors_total",
			Help:      "Total number of connections dropped for framing violations.",
		}),
	}

	if keyCount != nil {
		m.StoreKeys = factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "minikv",
			Name:      "store_keys",
			Help:      "Current number of keys in the store.",
		}, func() float64 { return float64(keyCount()) })
	}

	return m
}
