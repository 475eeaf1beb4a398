package resilience

import (
	"context"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/jobs"
)

// StageFunc is one implementation of a logical pipeline stage: it receives
// an immutable job snapshot and returns a partial-state patch or a
// classified failure.
type StageFunc func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error)

// Alternative is one link of a fallback chain: a named stage implementation
// with its own resilience wrapping, so each backend keeps an independent
// circuit breaker and retry budget.
type Alternative struct {
	Name    string
	Invoker *Invoker
	Invoke  StageFunc
}

// FallbackChain tries an ordered list of alternative implementations of the
// same logical stage. A degradable failure from the current alternative
// advances the chain; any other failure propagates immediately. The chain
// records which alternative ultimately produced the result so the job's
// recovery_strategy reflects it.
type FallbackChain struct {
	alternatives []Alternative
}

// NewFallbackChain creates a chain over the given alternatives, tried in
// order.
func NewFallbackChain(alternatives ...Alternative) *FallbackChain {
	return &FallbackChain{alternatives: alternatives}
}

// Invoke runs the chain. On success the returned patch carries the records
// of every degraded alternative (and superseded retry attempts) that
// preceded it, plus the winning alternative's name as the recovery strategy
// when it was not the primary. Exhausting the chain yields the final
// failure for the stage; the engine treats it as unrecovered regardless of
// its class since no further degradation is possible.
func (c *FallbackChain) Invoke(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	if len(c.alternatives) == 0 {
		return nil, faults.New(faults.KindUnknown, "fallback chain has no alternatives")
	}

	var degraded []faults.Record
	var lastErr error

	for i, alt := range c.alternatives {
		patch, absorbed, err := c.invokeAlternative(ctx, alt, snapshot)
		if err == nil {
			if patch == nil {
				patch = &jobs.Patch{}
			}

			records := append(degraded, recordsOf(absorbed, map[string]any{"superseded": true})...)
			patch.Faults = append(records, patch.Faults...)

			if i > 0 {
				patch.RecoveryStrategy = alt.Name
			}
			return patch, nil
		}

		lastErr = err
		if !faults.Classify(err).Degradable {
			return nil, err
		}

		rec := faults.RecordOf(err, "")
		if rec.Details == nil {
			rec.Details = make(map[string]any)
		}
		rec.Details["alternative"] = alt.Name
		degraded = append(degraded, rec)
	}

	return nil, lastErr
}

func (c *FallbackChain) invokeAlternative(
	ctx context.Context,
	alt Alternative,
	snapshot *jobs.Job,
) (*jobs.Patch, []error, error) {
	var patch *jobs.Patch

	call := func(ctx context.Context) error {
		p, err := alt.Invoke(ctx, snapshot)
		if err != nil {
			return err
		}
		patch = p
		return nil
	}

	if alt.Invoker == nil {
		err := call(ctx)
		return patch, nil, err
	}

	absorbed, err := alt.Invoker.Do(ctx, call)
	return patch, absorbed, err
}

func recordsOf(errs []error, details map[string]any) []faults.Record {
	if len(errs) == 0 {
		return nil
	}

	records := make([]faults.Record, 0, len(errs))
	for _, err := range errs {
		rec := faults.RecordOf(err, "")
		if len(details) > 0 {
			if rec.Details == nil {
				rec.Details = make(map[string]any, len(details))
			}
			for k, v := range details {
				rec.Details[k] = v
			}
		}
		records = append(records, rec)
	}
	return records
}
