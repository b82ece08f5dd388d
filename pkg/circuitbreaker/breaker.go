// Package circuitbreaker implements the Closed/Open/HalfOpen state machine
// protecting outbound calls from cascading failures, grounded on the
// reference SDK's CircuitBreaker (retry_policies.py).
package circuitbreaker

import (
	"sync"
	"time"

	"spacetimedb.com/client/pkg/sdkerrors"
)

// State is one of the three circuit breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Breaker tracks consecutive failures of calls routed through Call and
// fails fast once the threshold is reached.
type Breaker struct {
	threshold       int
	recoveryTimeout time.Duration

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureTime time.Time
}

// New creates a Breaker that opens after threshold consecutive failures and
// probes again recoveryTimeout after the last failure.
func New(threshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{threshold: threshold, recoveryTimeout: recoveryTimeout, state: Closed}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Call executes fn under circuit breaker protection. If the breaker is
// Open and the recovery timeout has not elapsed, fn is not invoked and
// CircuitOpenError is returned.
func (b *Breaker) Call(fn func() error) error {
	if !b.allow() {
		return sdkerrors.NewCircuitOpen()
	}
	err := fn()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open {
		if !b.lastFailureTime.IsZero() && time.Since(b.lastFailureTime) >= b.recoveryTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	}
	return true
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = Closed
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case HalfOpen:
		b.state = Open
	default:
		if b.failureCount >= b.threshold {
			b.state = Open
		}
	}
}

// Reset forces the breaker back to Closed with a zeroed failure count.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.lastFailureTime = time.Time{}
}
