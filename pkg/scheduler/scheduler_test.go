package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacetimedb.com/client/pkg/clocktypes"
	"spacetimedb.com/client/pkg/codec"
	"spacetimedb.com/client/pkg/session"
	"spacetimedb.com/client/pkg/wire"
)

// fakeCaller is a minimal reducerCaller stub that completes every call
// immediately with a scripted result, without any real transport.
type fakeCaller struct {
	mu     sync.Mutex
	calls  []string
	result session.Result
	err    error
}

func (f *fakeCaller) CallReducer(reducer string, argsBytes []byte, flags wire.Flags) (codec.RequestId, chan session.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, reducer)
	f.mu.Unlock()
	if f.err != nil {
		return 0, nil, f.err
	}
	ch := make(chan session.Result, 1)
	ch <- f.result
	return codec.RequestId(1), ch, nil
}

func (f *fakeCaller) Await(ctx context.Context, requestID codec.RequestId, ch chan session.Result) (session.Result, error) {
	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return session.Result{}, ctx.Err()
	}
}

func (f *fakeCaller) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestScheduler(caller *fakeCaller, maxInFlight int) *Scheduler {
	return &Scheduler{
		sess:        caller,
		budget:      noopBudget{},
		maxInFlight: maxInFlight,
		byID:        make(map[string]*Scheduled),
		wake:        make(chan struct{}, 1),
		inFlight:    make(chan struct{}, maxInFlight),
		ctx:         context.Background(),
		cancel:      func() {},
		done:        make(chan struct{}),
	}
}

// runTicksFor drives the worker loop inline (no goroutine) for a fixed
// wall-clock budget, ticking whenever something is due.
func runTicksFor(s *Scheduler, d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		s.tick()
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedule_AtTime_FiresOnceAndCompletes(t *testing.T) {
	caller := &fakeCaller{result: session.Result{}}
	s := newTestScheduler(caller, 1)

	var completed bool
	entry, err := s.Schedule("", "send_reminder", nil, clocktypes.AtTime(clocktypes.Now()), nil, Callbacks{
		OnComplete: func(*Scheduled, session.Result, time.Duration) { completed = true },
	})
	require.NoError(t, err)
	assert.Equal(t, Pending, entry.Status())

	runTicksFor(s, 100*time.Millisecond)

	assert.Equal(t, Completed, entry.Status())
	assert.True(t, completed)
	assert.Equal(t, 1, caller.callCount())
}

func TestSchedule_RejectsDuplicateID(t *testing.T) {
	caller := &fakeCaller{}
	s := newTestScheduler(caller, 1)

	_, err := s.Schedule("dup", "reducer_a", nil, clocktypes.AtTime(clocktypes.Now().Add(clocktypes.FromDuration(time.Minute))), nil, Callbacks{})
	require.NoError(t, err)

	_, err = s.Schedule("dup", "reducer_b", nil, clocktypes.AtTime(clocktypes.Now().Add(clocktypes.FromDuration(time.Minute))), nil, Callbacks{})
	assert.Error(t, err)
}

func TestSchedule_AtIntervalRejectsNonPositive(t *testing.T) {
	s := newTestScheduler(&fakeCaller{}, 1)
	_, err := s.Schedule("", "tick", nil, clocktypes.AtInterval(0), nil, Callbacks{})
	assert.Error(t, err)
}

func TestSchedule_AtInterval_RearmsAfterEachFire(t *testing.T) {
	caller := &fakeCaller{result: session.Result{}}
	s := newTestScheduler(caller, 1)

	entry, err := s.Schedule("", "heartbeat", nil, clocktypes.AtInterval(clocktypes.FromDuration(10*time.Millisecond)), nil, Callbacks{})
	require.NoError(t, err)

	runTicksFor(s, 150*time.Millisecond)

	assert.GreaterOrEqual(t, caller.callCount(), 2)
	assert.Equal(t, Pending, entry.Status())
}

func TestCancel_PendingEntryNeverFires(t *testing.T) {
	caller := &fakeCaller{result: session.Result{}}
	s := newTestScheduler(caller, 1)

	entry, err := s.Schedule("", "never", nil, clocktypes.AtTime(clocktypes.Now()), nil, Callbacks{})
	require.NoError(t, err)

	require.NoError(t, s.Cancel(entry.ID))
	runTicksFor(s, 50*time.Millisecond)

	assert.Equal(t, 0, caller.callCount())
	assert.Equal(t, Cancelled, entry.Status())
}

func TestCancel_AtIntervalStopsRearmingAfterCurrentFire(t *testing.T) {
	caller := &fakeCaller{result: session.Result{}}
	s := newTestScheduler(caller, 1)

	entry, err := s.Schedule("", "heartbeat", nil, clocktypes.AtInterval(clocktypes.FromDuration(5*time.Millisecond)), nil, Callbacks{})
	require.NoError(t, err)

	runTicksFor(s, 20*time.Millisecond)
	require.NoError(t, s.Cancel(entry.ID))
	countAtCancel := caller.callCount()

	runTicksFor(s, 50*time.Millisecond)
	assert.Equal(t, countAtCancel, caller.callCount(), "no further fires once cancelled")
	assert.Equal(t, Cancelled, entry.Status())
}

func TestOrdering_EarlierFireTimeFiresFirst(t *testing.T) {
	caller := &fakeCaller{result: session.Result{}}
	s := newTestScheduler(caller, 1)

	var order []string
	var mu sync.Mutex
	record := func(name string) Callbacks {
		return Callbacks{OnComplete: func(*Scheduled, session.Result, time.Duration) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}}
	}

	now := clocktypes.Now()
	_, err := s.Schedule("", "second", nil, clocktypes.AtTime(now.Add(clocktypes.FromDuration(20*time.Millisecond))), nil, record("second"))
	require.NoError(t, err)
	_, err = s.Schedule("", "first", nil, clocktypes.AtTime(now), nil, record("first"))
	require.NoError(t, err)

	runTicksFor(s, 150*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 2)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestFire_BudgetExceededFailsWithoutCallingReducer(t *testing.T) {
	caller := &fakeCaller{result: session.Result{}}
	s := newTestScheduler(caller, 1)
	s.budget = rejectingBudget{}

	entry, err := s.Schedule("", "denied", nil, clocktypes.AtTime(clocktypes.Now()), nil, Callbacks{})
	require.NoError(t, err)

	runTicksFor(s, 50*time.Millisecond)

	assert.Equal(t, Failed, entry.Status())
	assert.Contains(t, entry.LastError(), "budget-exceeded")
	assert.Equal(t, 0, caller.callCount())
}

type rejectingBudget struct{}

func (rejectingBudget) Reserve(uint64) (func(uint64), bool) { return nil, false }

func TestStats_ReflectsEntryCounts(t *testing.T) {
	caller := &fakeCaller{result: session.Result{}}
	s := newTestScheduler(caller, 1)

	_, err := s.Schedule("", "done-me", nil, clocktypes.AtTime(clocktypes.Now()), nil, Callbacks{})
	require.NoError(t, err)
	cancelMe, err := s.Schedule("", "cancel-me", nil, clocktypes.AtTime(clocktypes.Now().Add(clocktypes.FromDuration(time.Minute))), nil, Callbacks{})
	require.NoError(t, err)
	require.NoError(t, s.Cancel(cancelMe.ID))

	runTicksFor(s, 50*time.Millisecond)

	stats := s.Stats()
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Cancelled)
}
