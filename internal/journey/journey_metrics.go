package journey

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the journey aggregator.
type Metrics struct {
	FlushesTotal    prometheus.Counter
	ClaimsPerWindow prometheus.Histogram
	HintsTotal      *prometheus.CounterVec
}

// NewMetrics registers and returns journey metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnol_journey_flushes_total",
			Help: "Total non-empty aggregation windows flushed.",
		}),
		ClaimsPerWindow: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fnol_journey_claims_per_window",
			Help:    "Distinct claims seen per flushed window.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1 .. 512
		}),
		HintsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnol_journey_hints_total",
			Help: "Improvement hints emitted by target agent.",
		}, []string{"target_agent"}),
	}

	reg.MustRegister(
		m.FlushesTotal,
		m.ClaimsPerWindow,
		m.HintsTotal,
	)
	return m
}
