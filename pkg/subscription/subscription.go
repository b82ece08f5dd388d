// Package subscription owns query lifecycles: their client-allocated
// QueryIds, reapplication after reconnect, and in-order delivery of
// updates to the tables each query references.
package subscription

import (
	"sync"
	"time"

	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/wire"
)

// Status is one of the four states a Subscription may occupy.
type Status int

const (
	Pending Status = iota
	Applied
	Errored
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Applied:
		return "applied"
	case Errored:
		return "errored"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Callbacks are invoked from the Manager's dispatch goroutine, in the
// order: at most one OnApplied, then OnUpdate calls in server-send
// order, then at most one of OnError or OnEnd. None is ever called
// concurrently with another for the same Subscription.
type Callbacks struct {
	OnApplied func(initial wire.DatabaseUpdate)
	OnUpdate  func(update wire.DatabaseUpdate)
	OnError   func(err error)
	OnEnd     func()
}

// Subscription is a live or formerly-live query registration. It is
// exclusively owned by the Manager that created it and handed to callers
// as an opaque handle.
type Subscription struct {
	QueryID codec.QueryId
	Queries []string
	Durable bool

	createdAt time.Time

	mu            sync.Mutex
	status        Status
	lastAppliedAt time.Time
	tables        map[string]struct{}
	buffered      []wire.DatabaseUpdate
	callbacks     Callbacks
}

func newSubscription(queryID codec.QueryId, queries []string, durable bool, cb Callbacks) *Subscription {
	return &Subscription{
		QueryID:   queryID,
		Queries:   queries,
		Durable:   durable,
		createdAt: time.Now(),
		status:    Pending,
		tables:    make(map[string]struct{}),
		callbacks: cb,
	}
}

// Status returns the Subscription's current state.
func (s *Subscription) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CreatedAt returns when the Subscription was first registered.
func (s *Subscription) CreatedAt() time.Time { return s.createdAt }

func (s *Subscription) hasAnyTable(du wire.DatabaseUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range du.Tables {
		if _, ok := s.tables[t.TableName]; ok {
			return true
		}
	}
	return false
}

func (s *Subscription) tracksTable(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[name]
	return ok
}

// markApplied transitions Pending to Applied, fires OnApplied with the
// initial result set, then replays any updates buffered while Pending in
// arrival order.
func (s *Subscription) markApplied(initial wire.DatabaseUpdate) {
	s.mu.Lock()
	s.status = Applied
	s.lastAppliedAt = time.Now()
	for _, t := range initial.Tables {
		s.tables[t.TableName] = struct{}{}
	}
	buffered := s.buffered
	s.buffered = nil
	cb := s.callbacks
	s.mu.Unlock()

	if cb.OnApplied != nil {
		cb.OnApplied(initial)
	}
	for _, du := range buffered {
		if cb.OnUpdate != nil {
			cb.OnUpdate(du)
		}
	}
}

// markPendingForReapply resets an Applied subscription back to Pending
// ahead of a reconnect replay, so subsequent updates buffer instead of
// firing OnUpdate out of order with the new Applied ack.
func (s *Subscription) markPendingForReapply() {
	s.mu.Lock()
	s.status = Pending
	s.buffered = nil
	s.mu.Unlock()
}

// deliverOrBuffer routes an update matching this Subscription's tracked
// tables: buffered while Pending, delivered immediately once Applied.
func (s *Subscription) deliverOrBuffer(du wire.DatabaseUpdate) {
	s.mu.Lock()
	if s.status == Pending {
		s.buffered = append(s.buffered, du)
		s.mu.Unlock()
		return
	}
	cb := s.callbacks
	s.mu.Unlock()
	if cb.OnUpdate != nil {
		cb.OnUpdate(du)
	}
}

func (s *Subscription) fail(err error) {
	s.mu.Lock()
	s.status = Errored
	cb := s.callbacks
	s.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (s *Subscription) end() {
	s.mu.Lock()
	s.status = Cancelled
	cb := s.callbacks
	s.mu.Unlock()
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
}
