package energy

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"spacetimedb.com/client/pkg/metrics"
)

// Manager enforces a per-period spending quota on top of a Tracker.
// Reservations are held by caller-opaque ids (google/uuid strings) so
// a caller can reserve an estimated cost ahead of an operation and
// later consume or release it.
type Manager struct {
	*emitter

	tracker *Tracker
	metrics metrics.EnergyMetrics

	mu           sync.Mutex
	budget       uint64
	used         uint64
	reserved     uint64
	reservations map[string]uint64
	periodStart  time.Time
	periodLength time.Duration
}

// NewManager creates a Manager enforcing budget per periodLength,
// backed by tracker for replenishment-aware cost checks.
func NewManager(tracker *Tracker, budget uint64, periodLength time.Duration) *Manager {
	return &Manager{
		emitter:      newEmitter(),
		tracker:      tracker,
		metrics:      metrics.NewEnergyMetrics(),
		budget:       budget,
		reservations: make(map[string]uint64),
		periodStart:  time.Now(),
		periodLength: periodLength,
	}
}

func (m *Manager) rolloverLocked(now time.Time) {
	if m.periodLength <= 0 {
		return
	}
	if now.Sub(m.periodStart) < m.periodLength {
		return
	}
	m.used = 0
	m.reserved = 0
	m.reservations = make(map[string]uint64)
	m.periodStart = now
}

// CanExecute reports whether an operation estimated at est units would
// fit within the remaining budget for the current period.
func (m *Manager) CanExecute(est uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(time.Now())
	return m.used+m.reserved+est <= m.budget
}

// Reserve attempts to set aside n units under a fresh reservation id.
// It fails if insufficient room remains in the current period.
func (m *Manager) Reserve(n uint64) (id string, ok bool) {
	m.mu.Lock()
	m.rolloverLocked(time.Now())
	if m.used+m.reserved+n > m.budget {
		m.mu.Unlock()
		metrics.ObserveEnergyEvent(m.metrics, string(OperationDeferred))
		m.emit(Event{Kind: OperationDeferred, At: time.Now().UnixMicro(), Data: map[string]any{"requested": n}})
		return "", false
	}
	id = uuid.NewString()
	m.reservations[id] = n
	m.reserved += n
	m.publishLocked()
	m.mu.Unlock()
	return id, true
}

// Release returns a reservation's units to the free budget without
// consuming them.
func (m *Manager) Release(id string) {
	m.mu.Lock()
	n, ok := m.reservations[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.reservations, id)
	m.reserved -= n
	m.publishLocked()
	m.mu.Unlock()
}

// Consume deducts n units from the budget's used total. If id names a
// live reservation, that reservation is released and its difference
// from n is returned to free budget; otherwise n is consumed directly
// against free budget.
func (m *Manager) Consume(n uint64, id string) {
	m.mu.Lock()
	m.rolloverLocked(time.Now())
	if id != "" {
		if reservedAmt, ok := m.reservations[id]; ok {
			delete(m.reservations, id)
			m.reserved -= reservedAmt
		}
	}
	m.used += n
	exceeded := m.used > m.budget
	m.publishLocked()
	m.mu.Unlock()

	if exceeded {
		metrics.ObserveEnergyEvent(m.metrics, string(BudgetExceeded))
		m.emit(Event{Kind: BudgetExceeded, At: time.Now().UnixMicro(), Data: map[string]any{"used": n}})
	}
}

// publishLocked updates the Prometheus gauges. Caller must hold mu.
func (m *Manager) publishLocked() {
	metrics.SetEnergyBudget(m.metrics, m.used, m.reserved, m.budget)
}

// Snapshot is a point-in-time view of budget accounting.
type Snapshot struct {
	Used     uint64
	Reserved uint64
	Budget   uint64
}

// Stats returns the Manager's current accounting snapshot.
func (m *Manager) Stats() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolloverLocked(time.Now())
	return Snapshot{Used: m.used, Reserved: m.reserved, Budget: m.budget}
}

// SchedulerBudget wires energy.Manager into scheduler.BudgetChecker: Reserve is
// called with an estimate before a fire, and the returned release
// closure is invoked with the actual consumed amount afterward.
type SchedulerBudget struct {
	mgr    *Manager
	opType OperationType
	opName string
}

// NewSchedulerBudget adapts mgr into a scheduler.BudgetChecker for
// reducer calls named opName.
func NewSchedulerBudget(mgr *Manager, opName string) *SchedulerBudget {
	return &SchedulerBudget{mgr: mgr, opType: OpScheduled, opName: opName}
}

// Reserve implements scheduler.BudgetChecker.
func (b *SchedulerBudget) Reserve(estimate uint64) (func(consumed uint64), bool) {
	id, ok := b.mgr.Reserve(estimate)
	if !ok {
		return nil, false
	}
	return func(consumed uint64) {
		if consumed == 0 {
			b.mgr.Release(id)
			return
		}
		b.mgr.Consume(consumed, id)
	}, true
}
