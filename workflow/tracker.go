package workflow

import (
	"fmt"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
)

// Tracker observes step outcomes and derives the aggregate run state.
// It performs pure aggregation over recorded results, no I/O.
//
// Derivation rule, applied on every Record: failed if any recorded
// result is failed; else running while any of the definition's
// top-level steps is unrecorded; else completed. Paused is an explicit
// external transition, never derived.
type Tracker struct {
	total int
}

// NewTracker creates a tracker for the given definition. The
// definition's top-level step count determines completeness.
func NewTracker(def *Definition) *Tracker {
	return &Tracker{total: len(def.Steps())}
}

// Total returns the number of top-level steps the run must record.
func (t *Tracker) Total() int { return t.total }

// Record stores a step result on the run and re-derives the run state.
func (t *Tracker) Record(run *Run, res *Result) {
	run.Results[res.StepID] = res
	run.Touch()

	if failed, failure := t.anyFailed(run); failed {
		run.State = RunStateFailed
		run.Error = fmt.Sprintf("step %s: %s", failure.StepID, failure.Error)
		return
	}

	if len(run.Results) < t.total {
		run.State = RunStateRunning
		return
	}

	run.State = RunStateCompleted
	now := time.Now().UTC()
	run.CompletedAt = &now
}

// Finalize settles the run's terminal state once the engine stops
// dispatching. It covers runs that halted early (halt-all policy, or
// continue-on-error leaving dependent steps unexecuted) where Record
// alone never saw the full step count.
func (t *Tracker) Finalize(run *Run) {
	if run.State == RunStatePaused {
		return
	}
	if failed, failure := t.anyFailed(run); failed {
		run.State = RunStateFailed
		run.Error = fmt.Sprintf("step %s: %s", failure.StepID, failure.Error)
	} else if len(run.Results) >= t.total {
		run.State = RunStateCompleted
	} else {
		// Nothing failed but steps remain: the run was interrupted.
		run.State = RunStateRunning
		return
	}
	if run.CompletedAt == nil {
		now := time.Now().UTC()
		run.CompletedAt = &now
	}
	run.Touch()
}

// Pause suspends a run. Only pending or running runs can pause;
// in-flight step dispatches are allowed to finish, but the engine will
// not start new ones.
func (t *Tracker) Pause(run *Run) error {
	if run.State != RunStatePending && run.State != RunStateRunning {
		return fmt.Errorf("%w: cannot pause %s run", symphony.ErrInvalidState, run.State)
	}
	run.State = RunStatePaused
	run.Touch()
	return nil
}

// Resume re-enters running from paused.
func (t *Tracker) Resume(run *Run) error {
	if run.State != RunStatePaused {
		return fmt.Errorf("%w: cannot resume %s run", symphony.ErrInvalidState, run.State)
	}
	run.State = RunStateRunning
	run.Touch()
	return nil
}

// anyFailed returns the earliest failed result by CompletedAt, so the
// failure reported on the run is deterministic despite map iteration
// order.
func (t *Tracker) anyFailed(run *Run) (bool, *Result) {
	var first *Result
	for _, res := range run.Results {
		if res.Success {
			continue
		}
		if first == nil || res.CompletedAt.Before(first.CompletedAt) {
			first = res
		}
	}
	return first != nil, first
}
