// Package resilience provides the per-dependency HTTP facade: circuit
// breaker, bounded retry with exponential backoff, request timeout, and
// shared-secret header injection.
package resilience

import (
	"log/slog"
	"sync"
	"time"

	"github.com/praxos/assistant-core/internal/adapter/observability"
	"github.com/praxos/assistant-core/internal/domain"
)

// Phase represents the state of the circuit breaker.
type Phase int

const (
	// PhaseClosed lets requests proceed; consecutive failures are counted.
	PhaseClosed Phase = iota
	// PhaseOpen fails requests immediately without a network call.
	PhaseOpen
	// PhaseHalfOpen permits a single exclusive probe request.
	PhaseHalfOpen
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "CLOSED"
	case PhaseOpen:
		return "OPEN"
	case PhaseHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Status is a point-in-time read of one dependency's circuit.
type Status struct {
	Dependency          string     `json:"dependency"`
	Phase               string     `json:"phase"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastTransitionAt    time.Time  `json:"last_transition_at"`
}

// Breaker is the per-dependency circuit. All transitions and counter updates
// are serialized by the mutex. State is in-memory only and reconstructs as
// CLOSED on restart.
type Breaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	recoveryDelay    time.Duration

	phase            Phase
	failures         int
	probing          bool
	lastFailureAt    time.Time
	lastTransitionAt time.Time
}

// NewBreaker creates a closed circuit for one dependency.
func NewBreaker(name string, failureThreshold int, recoveryDelay time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if recoveryDelay <= 0 {
		recoveryDelay = 30 * time.Second
	}
	b := &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryDelay:    recoveryDelay,
		phase:            PhaseClosed,
		lastTransitionAt: time.Now(),
	}
	observability.SetBreakerState(name, int(PhaseClosed))
	return b
}

// Allow reports whether a call may proceed. probe marks the exclusive
// half-open probe. Exactly one RecordSuccess or RecordFailure must follow
// every allowed call.
func (b *Breaker) Allow() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case PhaseClosed:
		return false, nil
	case PhaseOpen:
		if time.Since(b.lastTransitionAt) >= b.recoveryDelay {
			b.transition(PhaseHalfOpen)
			b.probing = true
			slog.Info("circuit half-open, probing",
				slog.String("dependency", b.name),
				slog.Duration("recovery_delay", b.recoveryDelay))
			return true, nil
		}
		return false, domain.ErrCircuitOpen
	case PhaseHalfOpen:
		if b.probing {
			// probe in flight; concurrent callers are rejected
			return false, domain.ErrCircuitOpen
		}
		b.probing = true
		return true, nil
	default:
		return false, domain.ErrCircuitOpen
	}
}

// RecordSuccess records the outcome of an allowed call that reached the
// dependency and got a non-5xx answer.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.phase {
	case PhaseClosed:
		b.failures = 0
	case PhaseHalfOpen:
		b.probing = false
		b.failures = 0
		b.transition(PhaseClosed)
		slog.Info("circuit closed after successful probe",
			slog.String("dependency", b.name))
	case PhaseOpen:
		// a call admitted before the circuit opened; the probe decides recovery
	}
}

// RecordFailure records an exhausted transport failure or 5xx outcome.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = time.Now()

	switch b.phase {
	case PhaseClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.transition(PhaseOpen)
			slog.Warn("circuit opened",
				slog.String("dependency", b.name),
				slog.Int("consecutive_failures", b.failures))
		}
	case PhaseHalfOpen:
		b.probing = false
		b.transition(PhaseOpen)
		slog.Warn("circuit reopened after failed probe",
			slog.String("dependency", b.name))
	case PhaseOpen:
		b.failures++
	}
}

// Status returns a snapshot for introspection.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		Dependency:          b.name,
		Phase:               b.phase.String(),
		ConsecutiveFailures: b.failures,
		LastTransitionAt:    b.lastTransitionAt,
	}
	if !b.lastFailureAt.IsZero() {
		t := b.lastFailureAt
		st.LastFailureAt = &t
	}
	return st
}

// transition must be called with the mutex held.
func (b *Breaker) transition(p Phase) {
	b.phase = p
	b.lastTransitionAt = time.Now()
	observability.SetBreakerState(b.name, int(p))
}
