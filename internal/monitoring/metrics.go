package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for streaming sessions. Counters are
// updated from the task loops at chunk granularity, never per sample.
type Metrics struct {
	registry *prometheus.Registry

	// Chunk flow
	ChunksDelivered *prometheus.CounterVec
	SamplesMoved    *prometheus.CounterVec

	// Ring health, mirrored from the shared-memory counters
	Overflows    prometheus.Counter
	Underflows   prometheus.Counter
	BufferStalls prometheus.Counter

	// Observability-channel health
	WarningsDropped *prometheus.CounterVec

	// Session lifecycle
	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec
}

// NewMetrics creates a metrics collector backed by its own registry, so
// independent sessions and tests never collide on collector registration.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		ChunksDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iqbridge_chunks_total",
				Help: "Total number of chunks moved through the ring",
			},
			[]string{"direction"},
		),
		SamplesMoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iqbridge_samples_total",
				Help: "Total number of IQ samples moved through the ring",
			},
			[]string{"direction"},
		),

		Overflows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "iqbridge_overflows_total",
				Help: "Producer-side overflow events observed on RX rings",
			},
		),
		Underflows: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "iqbridge_underflows_total",
				Help: "Consumer-side underflow events observed on TX rings",
			},
		),
		BufferStalls: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "iqbridge_buffer_stalls_total",
				Help: "Zero-fill events observed on TX rings",
			},
		),

		WarningsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iqbridge_warnings_dropped_total",
				Help: "Warnings dropped because the warnings channel was full",
			},
			[]string{"kind"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "iqbridge_sessions_active",
				Help: "Number of live streaming sessions",
			},
		),
		SessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iqbridge_sessions_total",
				Help: "Total number of streaming sessions started",
			},
			[]string{"mode"},
		),
	}
}

// Registry exposes the backing registry for the debug server.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
