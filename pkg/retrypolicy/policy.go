// Package retrypolicy implements configurable backoff policies for
// transient connection failures, grounded on the reference SDK's
// RetryPolicy/RetryPolicyPresets (retry_policies.py).
package retrypolicy

import (
	"math/rand"
	"time"

	"spacetimedb.com/client/pkg/sdkerrors"
)

// BackoffStrategy selects how delay grows between attempts.
type BackoffStrategy string

const (
	Constant          BackoffStrategy = "constant"
	Linear            BackoffStrategy = "linear"
	Exponential       BackoffStrategy = "exponential"
	ExponentialJitter BackoffStrategy = "exponential_jitter"
)

// Classifier decides whether an error is worth retrying.
type Classifier func(err error) bool

// DefaultClassifier treats an error as retryable iff it implements
// sdkerrors.Retryable.
func DefaultClassifier(err error) bool {
	_, ok := err.(sdkerrors.Retryable)
	return ok
}

// Policy is an immutable value object describing a retry schedule.
type Policy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Base            float64
	BackoffStrategy BackoffStrategy
	Classifier      Classifier
	Predicate       func(err error) bool
	OnRetry         func(attempt int, err error, delay time.Duration)
}

// ShouldRetry reports whether attempt (1-based, the attempt that just
// failed) should be followed by another.
func (p Policy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	if p.Predicate != nil {
		return p.Predicate(err)
	}
	classifier := p.Classifier
	if classifier == nil {
		classifier = DefaultClassifier
	}
	return classifier(err)
}

// Delay returns the backoff delay preceding attempt n (1-based: the delay
// before the n-th attempt, i.e. after n-1 prior failures).
func (p Policy) Delay(attempt int) time.Duration {
	var delay time.Duration
	switch p.BackoffStrategy {
	case Constant:
		delay = p.InitialDelay
	case Linear:
		delay = p.InitialDelay * time.Duration(attempt)
	case Exponential:
		delay = scale(p.InitialDelay, p.Base, attempt-1)
	case ExponentialJitter:
		base := scale(p.InitialDelay, p.Base, attempt-1)
		jitter := time.Duration(rand.Int63n(int64(base)/10 + 1))
		delay = base + jitter
	default:
		delay = p.InitialDelay
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func scale(initial time.Duration, base float64, exponent int) time.Duration {
	factor := 1.0
	for i := 0; i < exponent; i++ {
		factor *= base
	}
	return time.Duration(float64(initial) * factor)
}

// Aggressive makes up to 10 attempts for critical operations.
func Aggressive() Policy {
	return Policy{MaxAttempts: 10, InitialDelay: 500 * time.Millisecond, MaxDelay: 60 * time.Second, Base: 1.5, BackoffStrategy: ExponentialJitter}
}

// Standard is the default policy for ordinary connect attempts.
func Standard() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second, Base: 2, BackoffStrategy: ExponentialJitter}
}

// Conservative retries sparingly to avoid adding load to a struggling server.
func Conservative() Policy {
	return Policy{MaxAttempts: 3, InitialDelay: 2 * time.Second, MaxDelay: 60 * time.Second, Base: 3, BackoffStrategy: Exponential}
}

// NoRetry never retries.
func NoRetry() Policy {
	return Policy{MaxAttempts: 0}
}

// ReconnectPolicy is the Session's internal backoff policy for
// re-establishing a dropped transport, distinct from the caller-facing
// connect retry policy.
func ReconnectPolicy(maxAttempts int) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return Policy{MaxAttempts: maxAttempts, InitialDelay: time.Second, MaxDelay: 60 * time.Second, Base: 2, BackoffStrategy: ExponentialJitter}
}

// Execute runs op, retrying per the policy until it succeeds, the
// classifier rejects the error, or attempts are exhausted. It takes no
// context: the waits between attempts use time.Sleep and are not
// interrupted by cancellation.
func Execute(op func(attempt int) error, policy Policy) error {
	var lastErr error
	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !policy.ShouldRetry(err, attempt) {
			return err
		}
		delay := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}
		time.Sleep(delay)
	}
	return lastErr
}
