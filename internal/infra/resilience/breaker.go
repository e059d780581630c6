// Package resilience wraps external calls with retry and circuit breaking.
//
// Circuit Breaker states:
//   - CLOSED  (normal) → consecutive failures reach threshold → OPEN
//   - OPEN    (blocking) → after reset timeout → HALF_OPEN
//   - HALF_OPEN (probing) → probe succeeds → CLOSED, probe fails → OPEN
//
// The breaker guards the routing API; while it is open, travel lookups
// short-circuit straight to the simulated estimator.
package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/matchd-io/matchd/internal/domain"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation — calls pass through
	BreakerOpen                         // tripped — calls rejected immediately
	BreakerHalfOpen                     // recovery — a single probe allowed
)

// String returns a human-readable circuit breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	FailMax      int           // consecutive failures to trip (default 5)
	ResetTimeout time.Duration // time in OPEN before trying HALF_OPEN (default 30s)
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailMax:      5,
		ResetTimeout: 30 * time.Second,
	}
}

// Breaker implements the circuit breaker pattern.
// Thread-safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	name      string
	config    BreakerConfig
	state     BreakerState
	failures  int // consecutive failures while CLOSED
	probing   bool
	trippedAt time.Time
	trips     int
	now       func() time.Time // injectable clock for testing
}

// NewBreaker creates a circuit breaker with the given name and config.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailMax <= 0 {
		cfg.FailMax = DefaultBreakerConfig().FailMax
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig().ResetTimeout
	}
	return &Breaker{
		name:   name,
		config: cfg,
		state:  BreakerClosed,
		now:    time.Now,
	}
}

// Allow checks whether a call should be permitted. Half-open admits exactly
// one probe; everything else short-circuits until the probe settles.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpenLocked()
	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerHalfOpen:
		if b.probing {
			return fmt.Errorf("%s: probe in flight: %w", b.name, domain.ErrCircuitOpen)
		}
		b.probing = true
		return nil
	default:
		return fmt.Errorf("%s: %w", b.name, domain.ErrCircuitOpen)
	}
}

// RecordSuccess records a successful call. A successful half-open probe
// closes the circuit; in closed state the consecutive-failure count resets.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerClosed
		b.failures = 0
		b.probing = false
	case BreakerClosed:
		b.failures = 0
	}
}

// RecordFailure records a failed call. May trip the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.config.FailMax {
			b.tripLocked()
		}
	case BreakerHalfOpen:
		// failed probe → back to open
		b.tripLocked()
	}
}

func (b *Breaker) tripLocked() {
	b.state = BreakerOpen
	b.trippedAt = b.now()
	b.trips++
	b.probing = false
}

// maybeHalfOpenLocked transitions OPEN → HALF_OPEN once the reset timeout
// has elapsed.
func (b *Breaker) maybeHalfOpenLocked() {
	if b.state == BreakerOpen && b.now().Sub(b.trippedAt) >= b.config.ResetTimeout {
		b.state = BreakerHalfOpen
		b.probing = false
	}
}

// State returns the current circuit breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

// BreakerSnapshot is a point-in-time view of the circuit breaker.
type BreakerSnapshot struct {
	Name      string       `json:"name"`
	State     BreakerState `json:"state"`
	Failures  int          `json:"failures"`
	Trips     int          `json:"trips"`
	TrippedAt time.Time    `json:"tripped_at,omitempty"`
}

// Snapshot returns the current state snapshot.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return BreakerSnapshot{
		Name:      b.name,
		State:     b.state,
		Failures:  b.failures,
		Trips:     b.trips,
		TrippedAt: b.trippedAt,
	}
}

// Reset forces the circuit breaker back to closed state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.failures = 0
	b.probing = false
}
