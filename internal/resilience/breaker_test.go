package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slidesmith/slidesmith/internal/faults"
	"github.com/slidesmith/slidesmith/internal/resilience"
)

var errDown = errors.New("dependency down")

func failN(b *resilience.Breaker, n int) {
	for range n {
		b.Execute(context.Background(), func(context.Context) error {
			return errDown
		})
	}
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := resilience.NewBreaker("primary-backend", resilience.BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  time.Minute,
	})

	failN(b, 4)
	if b.State() != resilience.BreakerClosed {
		t.Fatalf("state after 4 failures = %s, want CLOSED", b.State())
	}

	failN(b, 1)
	if b.State() != resilience.BreakerOpen {
		t.Fatalf("state after 5 failures = %s, want OPEN", b.State())
	}
}

func TestBreakerOpenRejectsWithoutInvoking(t *testing.T) {
	b := resilience.NewBreaker("primary-backend", resilience.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
	})
	failN(b, 1)

	calls := 0
	err := b.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	if calls != 0 {
		t.Errorf("calls = %d, want 0: open circuit must not invoke", calls)
	}
	if faults.KindOf(err) != faults.KindDependencyUnavailable {
		t.Errorf("kind = %q, want %q", faults.KindOf(err), faults.KindDependencyUnavailable)
	}
}

func TestBreakerCountsFailuresAcrossSuccesses(t *testing.T) {
	b := resilience.NewBreaker("primary-backend", resilience.BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  time.Minute,
	})

	failN(b, 4)
	b.Execute(context.Background(), func(context.Context) error { return nil })
	if b.State() != resilience.BreakerClosed {
		t.Fatalf("state = %s, want CLOSED below the threshold", b.State())
	}

	failN(b, 1)
	if b.State() != resilience.BreakerOpen {
		t.Errorf("state = %s, want OPEN: a closed-circuit success must not clear accumulated failures", b.State())
	}
}

func TestBreakerProbeSuccessResetsCount(t *testing.T) {
	b := resilience.NewBreaker("primary-backend", resilience.BreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Millisecond,
	})

	failN(b, 2)
	time.Sleep(15 * time.Millisecond)

	if err := b.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe should be admitted, got %v", err)
	}

	failN(b, 1)
	if b.State() != resilience.BreakerClosed {
		t.Errorf("state = %s, want CLOSED: closing the circuit starts a fresh count", b.State())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	cfg := resilience.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
	}

	t.Run("successful probe closes", func(t *testing.T) {
		b := resilience.NewBreaker("primary-backend", cfg)
		failN(b, 1)
		time.Sleep(15 * time.Millisecond)

		err := b.Execute(context.Background(), func(context.Context) error { return nil })
		if err != nil {
			t.Fatalf("probe should be admitted, got %v", err)
		}
		if b.State() != resilience.BreakerClosed {
			t.Errorf("state = %s, want CLOSED", b.State())
		}
	})

	t.Run("failed probe reopens", func(t *testing.T) {
		b := resilience.NewBreaker("primary-backend", cfg)
		failN(b, 1)
		time.Sleep(15 * time.Millisecond)

		failN(b, 1)
		if b.State() != resilience.BreakerOpen {
			t.Errorf("state = %s, want OPEN", b.State())
		}
	})
}

func TestBreakerSetReturnsSameInstance(t *testing.T) {
	set := resilience.NewBreakerSet(resilience.DefaultBreakerConfig())

	a := set.Get("blob-storage")
	b := set.Get("blob-storage")
	if a != b {
		t.Error("Get should return the same breaker per key")
	}
	if a == set.Get("primary-backend") {
		t.Error("distinct keys should get distinct breakers")
	}
}

func TestBreakerSetStates(t *testing.T) {
	set := resilience.NewBreakerSet(resilience.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
	})
	failN(set.Get("primary-backend"), 1)
	set.Get("blob-storage")

	states := set.States()
	if states["primary-backend"] != resilience.BreakerOpen {
		t.Errorf("primary-backend = %s, want OPEN", states["primary-backend"])
	}
	if states["blob-storage"] != resilience.BreakerClosed {
		t.Errorf("blob-storage = %s, want CLOSED", states["blob-storage"])
	}
}
