// Package collections provides the small generic containers the rest
// of this module builds on: an OperationsMap keyed by a caller-supplied
// extractor, and a fixed-capacity LRU cache.
package collections

import "sync"

// Strategy selects an OperationsMap's iteration and locking behavior.
type Strategy int

const (
	// Unordered iterates in arbitrary (Go map) order and is not
	// goroutine-safe.
	Unordered Strategy = iota
	// Ordered preserves insertion order and is not goroutine-safe.
	Ordered
	// Concurrent preserves insertion order and is safe for concurrent
	// use.
	Concurrent
)

// OperationsMap stores values of type V keyed by a key extracted from
// each value via keyOf, rather than by a caller-supplied hash plus
// equality predicate. A caller-provided key extractor collapses to an
// ordinary map lookup, which is simpler and just as general.
type OperationsMap[K comparable, V any] struct {
	strategy Strategy
	keyOf    func(V) K

	mu     sync.Mutex
	values map[K]V
	order  []K
}

// NewOperationsMap creates an OperationsMap using keyOf to derive each
// value's key.
func NewOperationsMap[K comparable, V any](strategy Strategy, keyOf func(V) K) *OperationsMap[K, V] {
	return &OperationsMap[K, V]{
		strategy: strategy,
		keyOf:    keyOf,
		values:   make(map[K]V),
	}
}

func (m *OperationsMap[K, V]) lock() {
	if m.strategy == Concurrent {
		m.mu.Lock()
	}
}

func (m *OperationsMap[K, V]) unlock() {
	if m.strategy == Concurrent {
		m.mu.Unlock()
	}
}

// Put inserts or replaces v, keyed by keyOf(v).
func (m *OperationsMap[K, V]) Put(v V) {
	m.lock()
	defer m.unlock()
	k := m.keyOf(v)
	if _, exists := m.values[k]; !exists && m.strategy != Unordered {
		m.order = append(m.order, k)
	}
	m.values[k] = v
}

// Get looks up the value for k.
func (m *OperationsMap[K, V]) Get(k K) (V, bool) {
	m.lock()
	defer m.unlock()
	v, ok := m.values[k]
	return v, ok
}

// Delete removes k, if present.
func (m *OperationsMap[K, V]) Delete(k K) {
	m.lock()
	defer m.unlock()
	if _, ok := m.values[k]; !ok {
		return
	}
	delete(m.values, k)
	if m.strategy != Unordered {
		for i, existing := range m.order {
			if existing == k {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of entries.
func (m *OperationsMap[K, V]) Len() int {
	m.lock()
	defer m.unlock()
	return len(m.values)
}

// Values returns every value, in insertion order for Ordered and
// Concurrent strategies, or map order for Unordered.
func (m *OperationsMap[K, V]) Values() []V {
	m.lock()
	defer m.unlock()
	out := make([]V, 0, len(m.values))
	if m.strategy == Unordered {
		for _, v := range m.values {
			out = append(out, v)
		}
		return out
	}
	for _, k := range m.order {
		out = append(out, m.values[k])
	}
	return out
}
