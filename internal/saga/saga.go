// Package saga implements all-or-nothing multi-step composition over backing
// services that share no transaction protocol. Every forward step is paired
// with a compensation; on any forward failure the committed steps are undone
// in LIFO order, bounding externally visible inconsistency to the duration of
// a single saga.
package saga

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State represents the saga lifecycle.
type State string

const (
	// StateExecuting means forward steps are running.
	StateExecuting State = "EXECUTING"
	// StateCommitted means every forward step succeeded; not rollback-able.
	StateCommitted State = "COMMITTED"
	// StateRolledBack means a forward step failed and every compensation succeeded.
	StateRolledBack State = "ROLLED_BACK"
	// StateFailed means one or more compensations failed; operator attention needed.
	StateFailed State = "FAILED"
)

// Step pairs a forward action with its compensation. Compensate is nil-safe
// and is invoked only when Forward succeeded, with Forward's result.
type Step struct {
	Name       string
	Forward    func(ctx context.Context) (any, error)
	Compensate func(ctx context.Context, result any) error
}

type committedStep struct {
	step   Step
	result any
}

// Saga executes steps sequentially and compensates in reverse on failure.
// Status is readable concurrently with Run.
type Saga struct {
	mu sync.Mutex

	id        string
	steps     []Step
	state     State
	committed []committedStep
	failingAt int
	errText   string
	ran       bool
}

// Status is a point-in-time read of a saga.
type Status struct {
	ID             string `json:"id"`
	State          State  `json:"state"`
	TotalSteps     int    `json:"total_steps"`
	CompletedSteps int    `json:"completed_steps"`
	// FailingStep is the index of the failed forward step, -1 when none.
	FailingStep int    `json:"failing_step"`
	Error       string `json:"error,omitempty"`
}

// New constructs a saga. The id is used only for log correlation.
func New(id string, steps ...Step) *Saga {
	return &Saga{
		id:        id,
		steps:     steps,
		state:     StateExecuting,
		failingAt: -1,
	}
}

// Run executes the forward steps in order. On a forward failure it invokes
// the committed compensations in LIFO order and returns the forward error.
// Committed sagas are not rollback-able; Run can only be called once.
func (s *Saga) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.ran {
		s.mu.Unlock()
		return fmt.Errorf("op=saga.Run: %s: already ran", s.id)
	}
	s.ran = true
	s.state = StateExecuting
	s.mu.Unlock()

	for i, step := range s.steps {
		result, err := step.Forward(ctx)
		if err != nil {
			s.mu.Lock()
			s.failingAt = i
			s.errText = err.Error()
			s.mu.Unlock()

			slog.Warn("saga step failed, rolling back",
				slog.String("saga_id", s.id),
				slog.String("step", step.Name),
				slog.Int("step_index", i),
				slog.Any("error", err))
			s.rollback(ctx)
			return fmt.Errorf("op=saga.Run: %s: step %s: %w", s.id, step.Name, err)
		}

		s.mu.Lock()
		s.committed = append(s.committed, committedStep{step: step, result: result})
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.state = StateCommitted
	s.mu.Unlock()
	slog.Info("saga committed",
		slog.String("saga_id", s.id),
		slog.Int("steps", len(s.steps)))
	return nil
}

// rollback undoes committed steps in LIFO order. Compensation runs on a
// context detached from the caller's cancellation so an aborted request
// cannot leave forward effects in place.
func (s *Saga) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	committed := make([]committedStep, len(s.committed))
	copy(committed, s.committed)
	s.mu.Unlock()

	failed := 0
	for i := len(committed) - 1; i >= 0; i-- {
		cs := committed[i]
		if cs.step.Compensate == nil {
			continue
		}
		if err := cs.step.Compensate(ctx, cs.result); err != nil {
			failed++
			slog.Error("saga compensation failed",
				slog.String("saga_id", s.id),
				slog.String("step", cs.step.Name),
				slog.Any("error", err))
			continue
		}
		slog.Info("saga step compensated",
			slog.String("saga_id", s.id),
			slog.String("step", cs.step.Name))
	}

	s.mu.Lock()
	if failed > 0 {
		s.state = StateFailed
	} else {
		s.state = StateRolledBack
	}
	s.mu.Unlock()
}

// Status returns a snapshot of the saga.
func (s *Saga) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:             s.id,
		State:          s.state,
		TotalSteps:     len(s.steps),
		CompletedSteps: len(s.committed),
		FailingStep:    s.failingAt,
		Error:          s.errText,
	}
}
