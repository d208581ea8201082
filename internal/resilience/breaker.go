// Package resilience guards calls to external services, chiefly the
// decomposition oracle, so a dead dependency fails fast instead of
// stalling every request behind its timeout.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a consecutive-failure circuit breaker. After threshold
// failures in a row it trips open for the cooldown period, then lets a
// single trial call through: success closes it, failure re-trips it.
type Breaker struct {
	mu        sync.Mutex
	state     state
	failures  int
	threshold int
	cooldown  time.Duration
	trippedAt time.Time
	now       func() time.Time // stubbed in tests
}

// NewBreaker creates a breaker tripping after maxFailures consecutive
// failures and cooling down for timeout before a trial call.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		threshold: maxFailures,
		cooldown:  timeout,
		now:       time.Now,
	}
}

// Execute runs fn unless the breaker is open, and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

// admit decides whether a call may proceed, moving an expired open
// breaker to half-open on the way.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if b.now().Sub(b.trippedAt) < b.cooldown {
			return false
		}
		b.state = stateHalfOpen
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = stateClosed
		return
	}

	b.failures++
	// A half-open trial failure re-trips regardless of the count.
	if b.state == stateHalfOpen || b.failures >= b.threshold {
		b.state = stateOpen
		b.trippedAt = b.now()
	}
}
