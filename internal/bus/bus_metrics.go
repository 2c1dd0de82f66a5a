package bus

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the event bus.
type Metrics struct {
	Published       *prometheus.CounterVec
	Dropped         prometheus.Counter
	HandlerFailures *prometheus.CounterVec
}

// NewMetrics registers and returns bus metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnol_bus_events_published_total",
			Help: "Total events published by type.",
		}, []string{"type"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnol_bus_events_dropped_total",
			Help: "Total malformed events dropped before dispatch.",
		}),
		HandlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnol_bus_handler_failures_total",
			Help: "Total subscriber errors and panics by event type.",
		}, []string{"type"}),
	}

	reg.MustRegister(m.Published, m.Dropped, m.HandlerFailures)
	return m
}
