package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/slidesmith/slidesmith/internal/faults"
)

// Invoker composes the per-call timeout, circuit breaker, and retry policy
// around a single stage invocation. Each retry attempt is an independent
// call through the breaker, so failed attempts accumulate toward the
// breaker's failure threshold.
type Invoker struct {
	// Breaker guards the external dependency behind the call. Nil skips
	// circuit breaking.
	Breaker *Breaker

	// Retry bounds re-attempts for transient failures. A zero value
	// performs a single attempt.
	Retry RetryPolicy

	// Timeout bounds each individual attempt. Zero disables the
	// per-attempt deadline.
	Timeout time.Duration

	// TimeoutKind is the taxonomy kind assigned to attempts that expire,
	// so a timed-out OCR call classifies under the extraction stage
	// rather than a generic kind. Defaults to backend-connection.
	TimeoutKind faults.Kind
}

// Do executes fn through the composed wrappers. On eventual success it
// returns the failures absorbed by earlier attempts; on failure the final
// error propagates unchanged.
func (iv *Invoker) Do(ctx context.Context, fn func(context.Context) error) ([]error, error) {
	attempt := func(ctx context.Context) error {
		call := fn
		if iv.Timeout > 0 {
			call = func(ctx context.Context) error {
				attemptCtx, cancel := context.WithTimeout(ctx, iv.Timeout)
				defer cancel()

				err := fn(attemptCtx)
				if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
					return faults.Wrap(iv.timeoutKind(), "call timed out", err).
						WithDetail("timeout", iv.Timeout.String())
				}
				return err
			}
		}

		if iv.Breaker != nil {
			return iv.Breaker.Execute(ctx, call)
		}
		return call(ctx)
	}

	return iv.Retry.Execute(ctx, attempt)
}

func (iv *Invoker) timeoutKind() faults.Kind {
	if iv.TimeoutKind != "" {
		return iv.TimeoutKind
	}
	return faults.KindBackendConnection
}
