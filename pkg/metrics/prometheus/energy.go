package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"spacetimedb.com/client/pkg/metrics"
)

// energyMetrics is the Prometheus implementation of
// metrics.EnergyMetrics.
type energyMetrics struct {
	level  *prometheus.GaugeVec
	budget *prometheus.GaugeVec
	events *prometheus.CounterVec
}

func newEnergyMetrics() metrics.EnergyMetrics {
	reg := metrics.GetRegistry()
	return &energyMetrics{
		level: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spacetimedb_client_energy_level",
				Help: "Energy tracker level, labelled current or max.",
			},
			[]string{"kind"},
		),
		budget: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spacetimedb_client_energy_budget",
				Help: "Energy budget accounting, labelled used, reserved, or budget.",
			},
			[]string{"kind"},
		),
		events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacetimedb_client_energy_events_total",
				Help: "Total EnergyEvents emitted, by kind.",
			},
			[]string{"kind"},
		),
	}
}

func (m *energyMetrics) SetLevel(current, max uint64) {
	m.level.WithLabelValues("current").Set(float64(current))
	m.level.WithLabelValues("max").Set(float64(max))
}

func (m *energyMetrics) SetBudget(used, reserved, budget uint64) {
	m.budget.WithLabelValues("used").Set(float64(used))
	m.budget.WithLabelValues("reserved").Set(float64(reserved))
	m.budget.WithLabelValues("budget").Set(float64(budget))
}

func (m *energyMetrics) ObserveEvent(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

func init() {
	metrics.RegisterEnergyMetricsConstructor(newEnergyMetrics)
}
