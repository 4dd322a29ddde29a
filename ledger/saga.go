/*
saga.go - Compensating-transaction runner

PURPOSE:
  The store has no atomic multi-write, so multi-record operations are a
  sequence of (forward action, compensating action) pairs executed with
  tracked state. If a forward action fails partway, every completed
  step's compensation runs in reverse order. This is a small state
  machine object, not ad hoc try/catch nesting: rollback correctness
  depends on knowing exactly which prior steps succeeded, which is why
  the steps run strictly sequentially with no parallel fan-out.

CANCELLATION:
  Not supported mid-sequence. Once the first forward action has run,
  the saga runs to completion (success or rollback) before returning
  control, so the runner deliberately never checks ctx.Done() itself.

SEE ALSO:
  - engine.go: builds a saga per CreatePaymentAndMark call and maps a
    sagaFailure onto the public error taxonomy
*/
package ledger

import "context"

// sagaStep is one forward action paired with its compensation. Steps
// with nothing to undo (e.g. re-writing a value that was already set)
// leave compensate nil.
type sagaStep struct {
	label      string
	forward    func(ctx context.Context) error
	compensate func(ctx context.Context) error
}

type saga struct {
	steps []sagaStep
}

func (s *saga) add(label string, forward, compensate func(ctx context.Context) error) {
	s.steps = append(s.steps, sagaStep{label: label, forward: forward, compensate: compensate})
}

// sagaFailure records, for a failed run: which steps completed before
// the failure, which compensations succeeded, and which did not. The
// engine must surface all of it - this is the only signal the integrity
// scanner will later need.
type sagaFailure struct {
	failedLabel   string
	cause         error
	completed     []string // labels of steps that ran before the failure
	compensated   []string // labels whose compensation succeeded
	uncompensated []string // labels whose compensation failed
	compErrs      []error
}

// run executes forward actions in order. On the first failure it runs
// the compensations of every completed step in reverse order and
// reports the outcome. A nil return means every step succeeded.
func (s *saga) run(ctx context.Context) *sagaFailure {
	for i, step := range s.steps {
		if err := step.forward(ctx); err != nil {
			return s.rollback(ctx, i, err)
		}
	}
	return nil
}

func (s *saga) rollback(ctx context.Context, failedIdx int, cause error) *sagaFailure {
	f := &sagaFailure{
		failedLabel: s.steps[failedIdx].label,
		cause:       cause,
	}
	for _, step := range s.steps[:failedIdx] {
		f.completed = append(f.completed, step.label)
	}

	// Reverse order: undo the most recent write first.
	for i := failedIdx - 1; i >= 0; i-- {
		step := s.steps[i]
		if step.compensate == nil {
			f.compensated = append(f.compensated, step.label)
			continue
		}
		if err := step.compensate(ctx); err != nil {
			f.uncompensated = append(f.uncompensated, step.label)
			f.compErrs = append(f.compErrs, err)
			continue
		}
		f.compensated = append(f.compensated, step.label)
	}
	return f
}

// fullyCompensated reports whether every completed step was undone.
func (f *sagaFailure) fullyCompensated() bool {
	return len(f.uncompensated) == 0
}
