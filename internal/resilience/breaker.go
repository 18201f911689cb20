// Package resilience provides reliability patterns for shared-store calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen reports that the breaker is rejecting calls without
// letting them reach the backend.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State identifies the breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{"closed", "open", "half-open"}

// String returns the lowercase name of the state.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Breaker is a circuit breaker around the remote store. A streak of
// consecutive failures trips it open; after a cooldown a single probe is
// allowed through to test the backend. An open breaker is how the store
// knows to stay in local-only mode between probes.
type Breaker struct {
	mu        sync.Mutex
	state     State
	streak    int // consecutive failures
	maxStreak int
	cooldown  time.Duration
	trippedAt time.Time
	now       func() time.Time // test hook
}

// NewBreaker returns a closed breaker that trips after maxFailures
// consecutive failures and cools down for the given duration before
// probing again.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	return &Breaker{
		maxStreak: maxFailures,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Execute runs fn unless the circuit is open, folding the result back
// into the breaker state. An open circuit returns ErrCircuitOpen without
// touching fn.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	return b.settle(fn())
}

// State returns the breaker's current state without advancing the
// open-to-half-open transition.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// admit decides whether a call may go out. An open circuit past its
// cooldown flips to half-open and lets one probe through.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.trippedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
	}
	return nil
}

// settle records the call outcome. Any failure while half-open reopens
// immediately; in the closed state the failure streak has to reach the
// threshold first. Success resets everything.
func (b *Breaker) settle(err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.streak = 0
		b.state = StateClosed
		return nil
	}

	b.streak++
	if b.state == StateHalfOpen || b.streak >= b.maxStreak {
		b.state = StateOpen
		b.trippedAt = b.now()
	}
	return err
}
