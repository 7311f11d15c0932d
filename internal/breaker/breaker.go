// Package breaker implements a per-source circuit breaker state machine:
// CLOSED -> OPEN -> HALF_OPEN -> CLOSED|OPEN.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Config holds the breaker's thresholds.
type Config struct {
	FailureThreshold int           // consecutive failures in CLOSED that trip to OPEN
	RecoveryTimeout  time.Duration // time in OPEN before a HALF_OPEN probe is allowed
	SuccessThreshold int           // consecutive HALF_OPEN successes needed to close
}

// DefaultConfig matches spec §4.3's defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
	}
}

// Stats is the observable snapshot of a Breaker's state.
type Stats struct {
	State                State
	Total                int64
	Successful           int64
	Failed               int64
	Rejected             int64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	TimeInState          time.Duration
}

// Breaker is a single per-source circuit breaker.
type Breaker struct {
	cfg Config

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	total                int64
	successful           int64
	failed               int64
	rejected             int64
	stateEnteredAt       time.Time
}

// New creates a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:            cfg,
		state:          Closed,
		stateEnteredAt: time.Now(),
	}
}

// CanExecute reports whether a call is currently allowed. It is
// side-effect-free except for performing the OPEN->HALF_OPEN transition
// once the recovery timeout has elapsed.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(b.stateEnteredAt) >= b.cfg.RecoveryTimeout {
			b.transitionLocked(HalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.successful++
	b.consecutiveFailures = 0
	b.consecutiveSuccesses++

	if b.state == HalfOpen && b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
		b.transitionLocked(Closed)
	}
}

// RecordFailure records a failed call outcome.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	b.failed++
	b.consecutiveSuccesses = 0
	b.consecutiveFailures++

	switch b.state {
	case HalfOpen:
		b.transitionLocked(Open)
	case Closed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionLocked(Open)
		}
	}
}

// RecordRejection records a call that was blocked by an OPEN circuit.
// Rejections do not count as failures and do not affect consecutive counters.
func (b *Breaker) RecordRejection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejected++
}

// Stats returns a snapshot of the breaker's current counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:                b.state,
		Total:                b.total,
		Successful:           b.successful,
		Failed:               b.failed,
		Rejected:             b.rejected,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		TimeInState:          time.Since(b.stateEnteredAt),
	}
}

// transitionLocked must be called with b.mu held.
func (b *Breaker) transitionLocked(to State) {
	b.state = to
	b.stateEnteredAt = time.Now()
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
}
