// Package breaker implements the three-state circuit breaker wrapping any
// fallible operation, per spec §4.10.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// ErrOpen is returned by Allow/Execute when the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker is a CLOSED→OPEN→HALF_OPEN→CLOSED fault-isolation wrapper.
// Closed→Open after FailureThreshold consecutive failures; Open→HalfOpen
// after RecoveryTimeout elapses; HalfOpen→Closed on one success, or back to
// Open on any failure. Safe for concurrent use. The bus consumer and each
// router component (the depth analyzer and every strategy) own an
// independent Breaker instance; the publisher's retry loop is not wrapped
// in a breaker.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTimeout  time.Duration

	state           State
	failureCount    int
	lastFailureTime time.Time
	lastSuccessTime time.Time

	totalRequests  int64
	totalFailures  int64
	totalSuccesses int64

	onStateChange func(State)
}

// New returns a Breaker in the CLOSED state. onStateChange, if non-nil, is
// called synchronously whenever the state transitions (used to drive the
// breaker-state gauge named in §5/§7).
func New(failureThreshold int, recoveryTimeout time.Duration, onStateChange func(State)) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		state:            Closed,
		onStateChange:    onStateChange,
	}
}

// Allow reports whether a call may proceed, updating OPEN→HALF_OPEN timeout
// transitions first.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateState()
	switch b.state {
	case Closed, HalfOpen:
		return true
	default:
		return false
	}
}

// Execute runs fn only if the breaker allows it, recording success/failure.
// Returns ErrOpen without calling fn if the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn()
	if err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) updateState() {
	now := time.Now()
	switch b.state {
	case Open:
		if !b.lastFailureTime.IsZero() && now.Sub(b.lastFailureTime) >= b.recoveryTimeout {
			b.setState(HalfOpen)
		}
	case Closed:
		if b.failureCount >= b.failureThreshold {
			b.lastFailureTime = now
			b.setState(Open)
		}
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	b.totalSuccesses++
	b.lastSuccessTime = time.Now()

	switch b.state {
	case HalfOpen:
		b.failureCount = 0
		b.setState(Closed)
	case Closed:
		b.failureCount = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalRequests++
	b.totalFailures++
	b.failureCount++
	b.lastFailureTime = time.Now()

	switch b.state {
	case HalfOpen:
		b.setState(Open)
	case Closed:
		if b.failureCount >= b.failureThreshold {
			b.setState(Open)
		}
	}
}

// setState must be called with mu held.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.onStateChange != nil {
		b.onStateChange(s)
	}
}

// State returns the current state, resolving any pending OPEN→HALF_OPEN
// timeout transition first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateState()
	return b.state
}

// Metrics is a point-in-time snapshot of the breaker's counters.
type Metrics struct {
	State           State
	FailureCount    int
	TotalRequests   int64
	TotalFailures   int64
	TotalSuccesses  int64
	LastFailureTime time.Time
	LastSuccessTime time.Time
}

func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updateState()
	return Metrics{
		State:           b.state,
		FailureCount:    b.failureCount,
		TotalRequests:   b.totalRequests,
		TotalFailures:   b.totalFailures,
		TotalSuccesses:  b.totalSuccesses,
		LastFailureTime: b.lastFailureTime,
		LastSuccessTime: b.lastSuccessTime,
	}
}

// Reset forces the breaker back to CLOSED.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.setState(Closed)
}

// ForceOpen forces the breaker open regardless of failure count.
func (b *Breaker) ForceOpen() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailureTime = time.Now()
	b.setState(Open)
}
