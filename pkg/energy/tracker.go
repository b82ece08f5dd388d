// Package energy tracks available compute credit and enforces a
// per-period spending quota. A Tracker replenishes lazily on read; a
// Manager layers reservation and consumption accounting with event
// notification on top.
package energy

import (
	"sync"
	"time"

	"spacetimedb.com/client/pkg/metrics"
)

// OperationType distinguishes the shape of cost being tracked, for
// per-(type, name) cost prediction.
type OperationType string

const (
	OpReducerCall OperationType = "reducer_call"
	OpScheduled   OperationType = "scheduled"
)

// Operation is one completed consume attempt, recorded in the
// Tracker's fixed-capacity history ring.
type Operation struct {
	Type OperationType
	Name string
	Cost uint64
	At   time.Time
	OK   bool
}

const historyCapacity = 256

// history is a fixed-capacity ring buffer of Operations, grounded on
// the same bounded-index-over-a-slice style the teacher uses for its
// LRU cache accounting.
type history struct {
	buf  [historyCapacity]Operation
	next int
	len  int
}

func (h *history) record(op Operation) {
	h.buf[h.next] = op
	h.next = (h.next + 1) % historyCapacity
	if h.len < historyCapacity {
		h.len++
	}
}

// costs returns every recorded cost for (opType, name), most recent
// first, for median-based prediction.
func (h *history) costs(opType OperationType, name string) []uint64 {
	out := make([]uint64, 0, h.len)
	for i := 0; i < h.len; i++ {
		idx := (h.next - 1 - i + historyCapacity) % historyCapacity
		e := h.buf[idx]
		if e.Type == opType && e.Name == name {
			out = append(out, e.Cost)
		}
	}
	return out
}

// defaultCost is the per-type fallback estimate used when an operation
// has no recorded history yet.
var defaultCost = map[OperationType]uint64{
	OpReducerCall: 100,
	OpScheduled:   100,
}

// Tracker holds a replenishing energy level. All methods are
// goroutine-safe.
type Tracker struct {
	mu      sync.Mutex
	current uint64
	max     uint64
	rate    uint64 // units per second
	last    time.Time
	hist    history
	metrics metrics.EnergyMetrics

	lowThreshold uint64
	belowLow     bool
}

// NewTracker creates a Tracker starting at max capacity.
func NewTracker(max, ratePerSecond, lowThreshold uint64) *Tracker {
	return &Tracker{
		current:      max,
		max:          max,
		rate:         ratePerSecond,
		last:         time.Now(),
		lowThreshold: lowThreshold,
		metrics:      metrics.NewEnergyMetrics(),
	}
}

func (t *Tracker) replenishLocked(now time.Time) {
	if now.Before(t.last) {
		return
	}
	elapsed := now.Sub(t.last).Seconds()
	gained := uint64(elapsed * float64(t.rate))
	if gained > 0 {
		t.current += gained
		if t.current > t.max {
			t.current = t.max
		}
		t.last = now
	}
}

// Current returns the level after applying lazy replenishment.
func (t *Tracker) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.replenishLocked(time.Now())
	return t.current
}

// Max returns the tracker's capacity.
func (t *Tracker) Max() uint64 { return t.max }

// PredictCost returns the median of every cost still held in the history
// ring for (opType, name), or the per-type default if no history exists.
func (t *Tracker) PredictCost(opType OperationType, name string) uint64 {
	t.mu.Lock()
	costs := t.hist.costs(opType, name)
	t.mu.Unlock()
	if len(costs) == 0 {
		if d, ok := defaultCost[opType]; ok {
			return d
		}
		return 1
	}
	return median(costs)
}

func median(vals []uint64) uint64 {
	sorted := append([]uint64(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		v := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > v {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = v
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Consume applies replenishment then deducts n if sufficient,
// recording the attempt in history regardless of outcome. It reports
// whether the deduction succeeded.
func (t *Tracker) Consume(n uint64, opType OperationType, name string) bool {
	t.mu.Lock()
	now := time.Now()
	t.replenishLocked(now)
	ok := t.current >= n
	if ok {
		t.current -= n
	}
	t.hist.record(Operation{Type: opType, Name: name, Cost: n, At: now, OK: ok})
	current, max := t.current, t.max
	crossedLow := t.lowThreshold > 0 && current < t.lowThreshold && !t.belowLow
	crossedUp := t.belowLow && current >= t.lowThreshold
	if crossedLow {
		t.belowLow = true
	}
	if crossedUp {
		t.belowLow = false
	}
	exhausted := current == 0
	t.mu.Unlock()

	metrics.SetEnergyLevel(t.metrics, current, max)
	if crossedLow {
		metrics.ObserveEnergyEvent(t.metrics, string(EnergyLow))
	}
	if crossedUp {
		metrics.ObserveEnergyEvent(t.metrics, string(EnergyReplenished))
	}
	if exhausted {
		metrics.ObserveEnergyEvent(t.metrics, string(EnergyExhausted))
	}
	return ok
}
