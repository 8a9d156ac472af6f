package trace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fdtrace/internal/model"
)

// Metrics counts what a replay saw. It is an Observer.
type Metrics struct {
	// Observations by action: OPEN, CLOSE, READ, WRITE
	Observations *prometheus.CounterVec

	// Replay errors by kind: malformed, shape, not_open, conflict, unsupported
	Diagnostics *prometheus.CounterVec

	// Events processed, handled or not
	Events prometheus.Counter

	// Files in the aggregated tree, split by permission
	Files *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// A nil registerer gets a private registry so counters still work
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		Observations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fdtrace_observations_total",
			Help: "Descriptor observations by action.",
		}, []string{"action"}),

		Diagnostics: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fdtrace_diagnostics_total",
			Help: "Recoverable replay errors by kind.",
		}, []string{"kind"}),

		Events: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fdtrace_events_total",
			Help: "Trace events replayed.",
		}),

		Files: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdtrace_files",
			Help: "Distinct regular files in the last aggregated tree.",
		}, []string{"perm"}),
	}
}

func (m *Metrics) Observe(obs model.Observation) {
	m.Observations.WithLabelValues(string(obs.Action)).Inc()
}
