package sandbox

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts executions by outcome.
type Metrics struct {
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics registers the sandbox collectors on reg. A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_executions_total",
			Help: "Code executions by language and outcome.",
		}, []string{"language", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sandbox_execution_duration_seconds",
			Help:    "Wall-clock time of child processes.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.executions, m.duration)
	}
	return m
}

func (m *Metrics) observe(language, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(language, outcome).Inc()
	if seconds > 0 {
		m.duration.Observe(seconds)
	}
}
