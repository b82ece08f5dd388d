// Package metrics provides the enable/disable switch and shared Prometheus
// registry every metrics-emitting component in this module reads from.
// Concrete metric sets (compression, energy) live in their own
// packages and register themselves against GetRegistry via promauto.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and installs reg as the shared
// registry. Passing nil installs a fresh prometheus.NewRegistry().
// Constructors that check IsEnabled before registering must be called
// after InitRegistry to take effect.
func InitRegistry(reg *prometheus.Registry) *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	registry = reg
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Reset disables metrics and drops the registry. Exposed for tests that
// need a clean slate between cases.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	registry = nil
}
