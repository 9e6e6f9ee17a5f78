package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phillarmonic/credstore/internal/secrets"
)

// Metrics contains Prometheus metrics for credential operations.
type Metrics struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	enumeratedItems *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,

		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credstore_operations_total",
				Help: "Total number of credential operations by result",
			},
			[]string{"backend", "op", "result"},
		),

		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credstore_operation_duration_seconds",
				Help:    "Duration of native store calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to 26s
			},
			[]string{"backend", "op"},
		),

		enumeratedItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credstore_enumerated_items_total",
				Help: "Total number of credentials returned by enumeration",
			},
			[]string{"backend"},
		),
	}
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteToTextfile writes the registry in the node exporter textfile format
func (m *Metrics) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Record records one operation and how long it took.
func (m *Metrics) Record(backend secrets.BackendKind, op string, start time.Time, err error) {
	m.operations.WithLabelValues(string(backend), op, Result(err)).Inc()
	m.duration.WithLabelValues(string(backend), op).Observe(time.Since(start).Seconds())
}

// RecordEnumerated counts items returned by one enumeration.
func (m *Metrics) RecordEnumerated(backend secrets.BackendKind, n int) {
	m.enumeratedItems.WithLabelValues(string(backend)).Add(float64(n))
}

// Result maps an error onto the result label
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, secrets.ErrNoEntry):
		return "no_entry"
	case errors.Is(err, secrets.ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, secrets.ErrBadEncoding):
		return "bad_encoding"
	default:
		return "error"
	}
}
