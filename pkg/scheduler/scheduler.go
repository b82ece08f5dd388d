// Package scheduler drives reducer calls that fire once at a timestamp
// or repeatedly on an interval. A single cooperative worker owns a
// min-heap of pending fires and bounds how many reducer calls may be
// in flight at once.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"spacetimedb.com/client/internal/logger"
	"spacetimedb.com/client/pkg/clocktypes"
	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/session"
	"spacetimedb.com/client/pkg/wire"
)

// Status is one of the five states a Scheduled entry may occupy.
type Status int

const (
	Pending Status = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// reducerCaller is the subset of *session.Session the Scheduler depends
// on, narrowed for testability.
type reducerCaller interface {
	CallReducer(reducer string, argsBytes []byte, flags wire.Flags) (codec.RequestId, chan session.Result, error)
	Await(ctx context.Context, requestID codec.RequestId, ch chan session.Result) (session.Result, error)
}

// BudgetChecker is consulted before each fire with an estimated energy
// cost. It is late-bound the same way session.SubscriptionSink is, so
// this package carries no compile-time dependency on pkg/energy.
type BudgetChecker interface {
	Reserve(estimate uint64) (release func(consumed uint64), ok bool)
}

// noopBudget always grants the reservation; used when no BudgetChecker
// is configured.
type noopBudget struct{}

func (noopBudget) Reserve(uint64) (func(uint64), bool) { return func(uint64) {}, true }

// Callbacks report per-entry outcomes. Both are optional and are never
// called concurrently for the same entry.
type Callbacks struct {
	OnComplete func(entry *Scheduled, result session.Result, duration time.Duration)
	OnFailure  func(entry *Scheduled, err error)
}

// Scheduled is one registered call. Callers receive it as an opaque
// handle; only the Scheduler mutates its fields.
type Scheduled struct {
	ID       string
	Reducer  string
	Args     []byte
	Metadata map[string]string

	mu           sync.Mutex
	when         clocktypes.ScheduleAt
	fireAt       clocktypes.Timestamp
	status       Status
	createdAt    time.Time
	lastErr      string
	lastDuration time.Duration
	callbacks    Callbacks

	heapIndex int
}

// Status returns the entry's current state.
func (e *Scheduled) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// FireAt returns the entry's next scheduled fire time.
func (e *Scheduled) FireAt() clocktypes.Timestamp {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fireAt
}

// LastError returns the error string from the most recent failed fire,
// or "" if the entry has never failed.
func (e *Scheduled) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// defaultEstimatedCost is a placeholder cost model: a fixed per-call estimate
// until pkg/energy's median-of-history predictor is wired in by a
// caller-supplied BudgetChecker.
const defaultEstimatedCost uint64 = 1

// entryHeap is a container/heap.Interface over *Scheduled ordered by
// fire time. There is no idiomatic third-party min-heap in the corpus
// for this shape, so this one component uses the standard library.
type entryHeap []*Scheduled

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	return h[i].fireAt < h[j].fireAt
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*Scheduled)
	e.heapIndex = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*h = old[:n-1]
	return e
}

// Stats is a point-in-time snapshot of entry counts by status.
type Stats struct {
	Pending   int
	Running   int
	Completed int
	Failed    int
	Cancelled int
	LastTick  time.Duration
}

// Scheduler owns a heap of Scheduled calls and a cooperative worker
// that fires them against a Session.
type Scheduler struct {
	sess        reducerCaller
	budget      BudgetChecker
	maxInFlight int

	mu       sync.Mutex
	heap     entryHeap
	byID     map[string]*Scheduled
	wake     chan struct{}
	lastTick time.Duration

	inFlight chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Options configures a Scheduler.
type Options struct {
	// MaxInFlight bounds concurrent in-flight reducer calls. Defaults
	// to 1 for strict fire-order execution.
	MaxInFlight int
	// Budget is consulted before each fire. Defaults to an always-grant
	// stub when nil.
	Budget BudgetChecker
}

// New creates a Scheduler bound to sess and starts its worker
// goroutine. Call Close to stop it.
func New(sess *session.Session, opts Options) *Scheduler {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 1
	}
	budget := opts.Budget
	if budget == nil {
		budget = noopBudget{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sess:        sess,
		budget:      budget,
		maxInFlight: opts.MaxInFlight,
		byID:        make(map[string]*Scheduled),
		wake:        make(chan struct{}, 1),
		inFlight:    make(chan struct{}, opts.MaxInFlight),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the worker. In-flight reducer calls are not aborted.
func (s *Scheduler) Close() {
	s.cancel()
	<-s.done
}

// Schedule registers a new call. scheduleID may be empty, in which case
// one is generated; a caller-supplied id that already exists fails.
func (s *Scheduler) Schedule(scheduleID, reducer string, args []byte, when clocktypes.ScheduleAt, metadata map[string]string, cb Callbacks) (*Scheduled, error) {
	if err := validate(when); err != nil {
		return nil, err
	}
	if scheduleID == "" {
		scheduleID = uuid.NewString()
	}

	s.mu.Lock()
	if _, exists := s.byID[scheduleID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("scheduler: schedule id %q already exists", scheduleID)
	}
	entry := &Scheduled{
		ID:        scheduleID,
		Reducer:   reducer,
		Args:      args,
		Metadata:  metadata,
		when:      when,
		fireAt:    when.ToTimestampFrom(clocktypes.Now()),
		status:    Pending,
		createdAt: time.Now(),
		callbacks: cb,
	}
	s.byID[scheduleID] = entry
	heap.Push(&s.heap, entry)
	s.mu.Unlock()

	s.poke()
	return entry, nil
}

func validate(when clocktypes.ScheduleAt) error {
	const slack = 2 * time.Second
	if when.IsRecurring() {
		if when.Interval <= 0 {
			return fmt.Errorf("scheduler: AtInterval must be strictly positive")
		}
		return nil
	}
	if when.At.Before(clocktypes.FromTime(time.Now().Add(-slack))) {
		return fmt.Errorf("scheduler: AtTime is too far in the past")
	}
	return nil
}

// Reschedule updates an existing entry's fire time and re-heapifies.
func (s *Scheduler) Reschedule(scheduleID string, when clocktypes.ScheduleAt) error {
	if err := validate(when); err != nil {
		return err
	}
	s.mu.Lock()
	entry, ok := s.byID[scheduleID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: unknown schedule id %q", scheduleID)
	}
	entry.mu.Lock()
	entry.when = when
	entry.fireAt = when.ToTimestampFrom(clocktypes.Now())
	if entry.heapIndex >= 0 {
		heap.Fix(&s.heap, entry.heapIndex)
	}
	entry.mu.Unlock()
	s.mu.Unlock()

	s.poke()
	return nil
}

// Cancel marks an entry Cancelled. Cancelling a Running entry leaves
// the in-flight call alone but prevents any re-arm; cancelling a
// Pending entry takes effect immediately and it is lazily evicted from
// the heap on its next pop.
func (s *Scheduler) Cancel(scheduleID string) error {
	s.mu.Lock()
	entry, ok := s.byID[scheduleID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown schedule id %q", scheduleID)
	}
	entry.mu.Lock()
	if entry.status == Pending || entry.status == Running {
		entry.status = Cancelled
	}
	entry.mu.Unlock()
	return nil
}

// Get looks up a Scheduled entry by id.
func (s *Scheduler) Get(scheduleID string) (*Scheduled, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[scheduleID]
	return e, ok
}

// List returns every registered entry, regardless of status.
func (s *Scheduler) List() []*Scheduled {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Scheduled, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	return out
}

// NextFireTime returns the earliest pending fire time in the heap, and
// false if nothing is pending.
func (s *Scheduler) NextFireTime() (clocktypes.Timestamp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.heap {
		if e.Status() == Pending {
			return e.fireAt, true
		}
	}
	return 0, false
}

// Stats returns a snapshot of entry counts by status.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	st.LastTick = s.lastTick
	for _, e := range s.byID {
		switch e.Status() {
		case Pending:
			st.Pending++
		case Running:
			st.Running++
		case Completed:
			st.Completed++
		case Failed:
			st.Failed++
		case Cancelled:
			st.Cancelled++
		}
	}
	return st
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run is the scheduler's single cooperative worker: it wakes at the
// next fire time or whenever a mutation pokes it, fires every Pending
// entry due by now (bounded by maxInFlight), and sleeps again.
func (s *Scheduler) run() {
	defer close(s.done)
	for {
		wait := s.nextWait()
		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
			continue
		case <-time.After(wait):
		}
		s.tick()
	}
}

func (s *Scheduler) nextWait() time.Duration {
	at, ok := s.NextFireTime()
	if !ok {
		return time.Hour
	}
	d := at.Sub(clocktypes.Now()).Duration()
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler) tick() {
	start := time.Now()
	defer func() {
		s.mu.Lock()
		s.lastTick = time.Since(start)
		s.mu.Unlock()
	}()

	for {
		entry := s.popDue()
		if entry == nil {
			return
		}
		select {
		case s.inFlight <- struct{}{}:
		default:
			// Saturated: put it back and defer to the next tick.
			s.requeue(entry)
			return
		}
		go s.fire(entry)
	}
}

// popDue pops and returns the earliest heap entry due by now, skipping
// (and dropping) any tombstoned entries along the way. Returns nil if
// nothing is due.
func (s *Scheduler) popDue() *Scheduled {
	now := clocktypes.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.heap.Len() > 0 {
		entry := s.heap[0]
		if entry.Status() != Pending {
			heap.Pop(&s.heap)
			continue
		}
		if entry.fireAt > now {
			return nil
		}
		heap.Pop(&s.heap)
		return entry
	}
	return nil
}

func (s *Scheduler) requeue(entry *Scheduled) {
	s.mu.Lock()
	heap.Push(&s.heap, entry)
	s.mu.Unlock()
}

func (s *Scheduler) fire(entry *Scheduled) {
	defer func() { <-s.inFlight }()

	release, ok := s.budget.Reserve(defaultEstimatedCost)
	if !ok {
		s.markFailed(entry, fmt.Errorf("scheduler: budget-exceeded"))
		return
	}

	entry.mu.Lock()
	entry.status = Running
	cb := entry.callbacks
	reducer := entry.Reducer
	args := entry.Args
	entry.mu.Unlock()

	started := time.Now()
	reqID, ch, err := s.sess.CallReducer(reducer, args, wire.FullUpdate)
	if err != nil {
		release(0)
		s.markFailed(entry, err)
		if cb.OnFailure != nil {
			cb.OnFailure(entry, err)
		}
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	res, err := s.sess.Await(ctx, reqID, ch)
	cancel()
	duration := time.Since(started)
	release(defaultEstimatedCost)

	if err != nil {
		s.markFailed(entry, err)
		if cb.OnFailure != nil {
			cb.OnFailure(entry, err)
		}
		return
	}
	if res.Err != nil {
		s.markFailed(entry, res.Err)
		if cb.OnFailure != nil {
			cb.OnFailure(entry, res.Err)
		}
		return
	}

	s.markCompletedOrRearm(entry, duration)
	if cb.OnComplete != nil {
		cb.OnComplete(entry, res, duration)
	}
}

func (s *Scheduler) markFailed(entry *Scheduled, err error) {
	logger.Warn("scheduler: fire failed", "schedule_id", entry.ID, "reducer", entry.Reducer, "error", err)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.status == Cancelled {
		return
	}
	entry.status = Failed
	entry.lastErr = err.Error()
	if entry.when.IsRecurring() {
		entry.fireAt = entry.when.ToTimestampFrom(clocktypes.Now())
		entry.status = Pending
		s.requeue(entry)
		s.poke()
	}
}

func (s *Scheduler) markCompletedOrRearm(entry *Scheduled, duration time.Duration) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.lastDuration = duration
	if entry.status == Cancelled {
		return
	}
	if entry.when.IsRecurring() {
		entry.fireAt = entry.when.ToTimestampFrom(clocktypes.Now())
		entry.status = Pending
		s.requeue(entry)
		s.poke()
		return
	}
	entry.status = Completed
}
