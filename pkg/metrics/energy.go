package metrics

// EnergyMetrics records the energy tracker's current level and the
// budget manager's usage, kept as an interface so callers can pass nil
// for zero overhead when metrics are disabled.
type EnergyMetrics interface {
	SetLevel(current, max uint64)
	SetBudget(used, reserved, budget uint64)
	ObserveEvent(kind string)
}

// newPrometheusEnergyMetrics is registered by
// pkg/metrics/prometheus/energy.go during its init, avoiding an import
// cycle between metrics and its prometheus-backed implementation.
var newPrometheusEnergyMetrics func() EnergyMetrics

// RegisterEnergyMetricsConstructor installs the Prometheus energy
// metrics constructor.
func RegisterEnergyMetricsConstructor(constructor func() EnergyMetrics) {
	newPrometheusEnergyMetrics = constructor
}

// NewEnergyMetrics returns a Prometheus-backed EnergyMetrics, or nil if
// InitRegistry has not been called.
func NewEnergyMetrics() EnergyMetrics {
	if !IsEnabled() || newPrometheusEnergyMetrics == nil {
		return nil
	}
	return newPrometheusEnergyMetrics()
}

// SetEnergyLevel records the tracker's current and max level, tolerating
// a nil metrics sink.
func SetEnergyLevel(m EnergyMetrics, current, max uint64) {
	if m != nil {
		m.SetLevel(current, max)
	}
}

// SetEnergyBudget records the budget manager's used/reserved/budget.
func SetEnergyBudget(m EnergyMetrics, used, reserved, budget uint64) {
	if m != nil {
		m.SetBudget(used, reserved, budget)
	}
}

// ObserveEnergyEvent records an emitted EnergyEvent by kind.
func ObserveEnergyEvent(m EnergyMetrics, kind string) {
	if m != nil {
		m.ObserveEvent(kind)
	}
}
