package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/slidesmith/slidesmith/internal/faults"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	// BreakerClosed admits calls and counts failures.
	BreakerClosed BreakerState = "CLOSED"

	// BreakerOpen rejects calls without invoking the dependency until
	// the recovery timeout elapses.
	BreakerOpen BreakerState = "OPEN"

	// BreakerHalfOpen admits a probe call after the recovery timeout;
	// its outcome closes or reopens the circuit.
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig holds circuit breaker thresholds.
type BreakerConfig struct {
	// FailureThreshold is the cumulative failure count that opens a
	// closed circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit rejects calls before
	// admitting a half-open probe.
	RecoveryTimeout time.Duration
}

// DefaultBreakerConfig mirrors the upstream service defaults: 5 failures,
// 60 second recovery window.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker tracks failures for one external dependency and disables calls
// while the dependency is persistently failing. One Breaker exists per
// dependency key for the process lifetime and is shared by every
// concurrent job using that dependency; a mutex serializes all state
// access so concurrent failures never lose updates.
type Breaker struct {
	key string
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewBreaker creates a closed breaker for the given dependency key.
func NewBreaker(key string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	return &Breaker{
		key:   key,
		cfg:   cfg,
		state: BreakerClosed,
		now:   time.Now,
	}
}

// Key returns the dependency key the breaker guards.
func (b *Breaker) Key() string {
	return b.key
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute invokes fn under circuit breaker protection. An open circuit
// rejects immediately with a dependency-unavailable failure; otherwise the
// call proceeds and its outcome drives the state machine. The original
// failure is re-raised to the caller in all cases.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err)
	return err
}

// admit applies the pre-call transitions: OPEN moves to HALF_OPEN once the
// recovery timeout has elapsed since the last failure; a circuit still
// OPEN rejects the call.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) > b.cfg.RecoveryTimeout {
		b.state = BreakerHalfOpen
	}

	if b.state == BreakerOpen {
		return faults.New(faults.KindDependencyUnavailable, "circuit breaker is open").
			WithDetail("dependency", b.key)
	}

	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		// Only a successful half-open probe clears the count; a success
		// on a closed circuit leaves accumulated failures in place.
		if b.state == BreakerHalfOpen {
			b.failures = 0
			b.state = BreakerClosed
		}
		return
	}

	b.failures++
	b.lastFailure = b.now()

	if (b.state == BreakerClosed && b.failures >= b.cfg.FailureThreshold) ||
		b.state == BreakerHalfOpen {
		b.state = BreakerOpen
	}
}

// BreakerSet owns the process-wide breakers, one per dependency key.
// It is constructed once at startup and injected wherever breakers are
// needed; lookups create missing breakers on first use and always return
// the same instance for a key thereafter.
type BreakerSet struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty breaker registry with the given defaults.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for the dependency key, creating it on first use.
func (s *BreakerSet) Get(key string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.breakers[key]
	if !ok {
		b = NewBreaker(key, s.cfg)
		s.breakers[key] = b
	}
	return b
}

// States reports the current state of every registered breaker, keyed by
// dependency. Used by telemetry collection.
func (s *BreakerSet) States() map[string]BreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make(map[string]BreakerState, len(s.breakers))
	for key, b := range s.breakers {
		states[key] = b.State()
	}
	return states
}
