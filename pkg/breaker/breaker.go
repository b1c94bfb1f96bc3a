// Package breaker provides a three-state circuit breaker for isolating
// failing external dependencies. One breaker guards one named dependency.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// State is the breaker's position in its lifecycle.
type State string

const (
	// Closed passes calls through normally.
	Closed State = "CLOSED"
	// Open fast-fails every call until the cooldown elapses.
	Open State = "OPEN"
	// HalfOpen admits exactly one probe call to test recovery.
	HalfOpen State = "HALF_OPEN"
)

// ErrOpen matches any open-circuit error via errors.Is.
var ErrOpen = errors.New("circuit open")

// OpenError is returned when a call is rejected by an open circuit.
// Callers treat it as "skip this path", never as fatal.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit %q is open, retry after %s", e.Name, e.RetryAfter.Round(time.Second))
}

// Is reports that an OpenError matches the ErrOpen sentinel.
func (e *OpenError) Is(target error) bool { return target == ErrOpen }

// Status is a point-in-time snapshot for observability.
type Status struct {
	Name           string        `json:"name"`
	State          State         `json:"state"`
	Failures       int           `json:"failures"`
	TimeUntilProbe time.Duration `json:"time_until_probe"`
}

// Breaker is a per-dependency circuit breaker. All state transitions are
// serialized by its lock; the wrapped call itself runs outside the lock so
// it may block without stalling other breakers' traffic.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu             sync.Mutex
	state          State
	failures       int
	probing        bool
	lastFailure    time.Time
	lastTransition time.Time

	now func() time.Time
}

// New creates a breaker for the named dependency.
func New(name string, failureThreshold int, cooldown time.Duration) *Breaker {
	now := time.Now
	return &Breaker{
		name:           name,
		threshold:      failureThreshold,
		cooldown:       cooldown,
		state:          Closed,
		lastTransition: now(),
		now:            now,
	}
}

// Call runs fn under the breaker. It returns *OpenError without invoking fn
// when the circuit rejects the call, otherwise fn's own error.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// admit decides whether a call may proceed, performing the OPEN -> HALF_OPEN
// transition once the cooldown has elapsed.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		remaining := b.cooldown - b.now().Sub(b.lastFailure)
		if remaining > 0 {
			return &OpenError{Name: b.name, RetryAfter: remaining}
		}
		b.transition(HalfOpen)
		b.probing = true
		return nil
	default: // HalfOpen
		if b.probing {
			return &OpenError{Name: b.name, RetryAfter: 0}
		}
		b.probing = true
		return nil
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.probing = false
		b.transition(Closed)
		b.failures = 0
	case Closed:
		// Successes decay the failure count so sporadic errors do not
		// accumulate into a trip.
		if b.failures > 0 {
			b.failures--
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case HalfOpen:
		b.probing = false
		b.transition(Open)
	case Closed:
		if b.failures >= b.threshold {
			b.transition(Open)
		}
	}
}

// transition must be called with the lock held.
func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	log.Printf("circuit [%s]: %s -> %s", b.name, b.state, next)
	b.state = next
	b.lastTransition = b.now()
}

// Reset forces the breaker back to CLOSED. Operator escape hatch.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.transition(Closed)
}

// Status returns the breaker's current state for health reporting.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	var untilProbe time.Duration
	if b.state == Open {
		if remaining := b.cooldown - b.now().Sub(b.lastFailure); remaining > 0 {
			untilProbe = remaining
		}
	}
	return Status{
		Name:           b.name,
		State:          b.state,
		Failures:       b.failures,
		TimeUntilProbe: untilProbe,
	}
}
