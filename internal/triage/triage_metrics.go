package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	TriagesTotal    *prometheus.CounterVec
	TriageDuration  prometheus.Histogram
	FraudFlagsTotal prometheus.Counter
	SubmitsTotal    *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TriagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnol_triages_total",
			Help: "Total triage runs by decision.",
		}, []string{"decision"}),
		TriageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fnol_triage_duration_seconds",
			Help:    "Duration of triage runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		FraudFlagsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fnol_fraud_flags_total",
			Help: "Total triage runs that raised a fraud signal.",
		}),
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fnol_submits_total",
			Help: "Total claim submissions by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.TriagesTotal,
		m.TriageDuration,
		m.FraudFlagsTotal,
		m.SubmitsTotal,
	)
	return m
}
