// Package resilience implements the retry, circuit-breaker, and fallback
// subsystem that wraps every stage invocation the workflow engine makes
// against an unreliable external dependency. The wrappers are explicit
// composable values applied at graph-construction time; none of them hold
// ambient global state.
package resilience

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/slidesmith/slidesmith/internal/faults"
)

// RetryPolicy wraps an invocation with bounded, backed-off re-attempts for
// transient failures. The policy is stateless configuration; it is safe to
// share across call sites and goroutines.
type RetryPolicy struct {
	// MaxAttempts bounds the total number of tries, including the first.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration

	// Multiplier scales the delay after each attempt:
	// delay(n) = InitialDelay × Multiplier^(n-1).
	Multiplier float64

	// MaxDelay caps the computed delay. Zero means no cap.
	MaxDelay time.Duration

	// RetryableKinds restricts which failure kinds are retried. When
	// empty, the fault classifier's retryable class applies.
	RetryableKinds []faults.Kind
}

// DefaultRetryPolicy returns the policy used for stage invocations unless
// the configuration overrides it: 3 attempts, 1s initial delay, doubling.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     time.Minute,
	}
}

// Delay returns the wait before retry attempt n (1-indexed: attempt 1 is
// the first retry after the initial failure).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}

	d := time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) retryable(err error) bool {
	if len(p.RetryableKinds) > 0 {
		return slices.Contains(p.RetryableKinds, faults.KindOf(err))
	}
	return faults.Classify(err).Retryable
}

// Execute invokes fn up to MaxAttempts times. Non-retryable failures
// propagate immediately on first occurrence; after MaxAttempts the last
// failure propagates unchanged. On eventual success, the failures absorbed
// by earlier attempts are returned so the caller can record them as
// superseded.
func (p RetryPolicy) Execute(ctx context.Context, fn func(context.Context) error) ([]error, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var absorbed []error
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return absorbed, nil
		}

		if attempt >= attempts || !p.retryable(err) {
			return nil, err
		}

		absorbed = append(absorbed, err)

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
