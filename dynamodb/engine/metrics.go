package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

type metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

func newMetrics() *metrics {
	return &metrics{
		// operations counts engine operations.
		// Labels: op (insert, query, remove, write, read, delete), outcome (success, error)
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "refcache",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total cache operations by outcome",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "refcache",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Cache operation latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op"}),
	}
}

func (m *metrics) observe(op, outcome string, d time.Duration) {
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	m *metrics
}

// NewMetrics registers the engine collectors on reg. Registering twice on
// the same registry reuses the collectors already there.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := newMetrics()
	ops, err := register(reg, m.operations)
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, m.latency)
	if err != nil {
		return nil, err
	}
	m.operations, m.latency = ops, latency
	return &Metrics{m: m}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
