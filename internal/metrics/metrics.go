// Package metrics records exchange and binding metrics for a Server in a
// Prometheus registry.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "endpointd"

// Metrics implements server.Observer.
type Metrics struct {
	registry *prometheus.Registry

	exchanges *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bindings  prometheus.Gauge
}

// New creates the metrics and registers them, together with the Go runtime
// and process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "total",
			Help:      "Exchanges dispatched to services",
		}, []string{"context_path", "method", "code"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "exchange",
			Name:      "duration_seconds",
			Help:      "Time spent inside services per exchange",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"context_path"}),

		bindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bindings",
			Help:      "Context paths bound in the live listener",
		}),
	}

	m.registry.MustRegister(
		m.exchanges,
		m.duration,
		m.bindings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ExchangeCompleted records one finished exchange.
func (m *Metrics) ExchangeCompleted(contextPath, method string, status int, elapsed time.Duration) {
	m.exchanges.WithLabelValues(contextPath, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(contextPath).Observe(elapsed.Seconds())
}

// BindingsChanged sets the bound path count.
func (m *Metrics) BindingsChanged(count int) {
	m.bindings.Set(float64(count))
}

// Gatherer exposes the registry for exposition.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
