package workflow

import (
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
)

// RunState represents the lifecycle state of a workflow run.
type RunState string

const (
	// RunStatePending means the run has been created but no step has
	// been dispatched yet.
	RunStatePending RunState = "pending"
	// RunStateRunning means the workflow is currently executing.
	RunStateRunning RunState = "running"
	// RunStateCompleted means every step finished successfully.
	RunStateCompleted RunState = "completed"
	// RunStateFailed means at least one step failed terminally.
	RunStateFailed RunState = "failed"
	// RunStatePaused means a caller suspended the run; it can resume.
	RunStatePaused RunState = "paused"
)

// Terminal reports whether the state admits no further transitions.
// Paused is resumable, not terminal.
func (s RunState) Terminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

// Run is the mutable execution record for one execution of a workflow
// definition. It is owned by the Tracker: the engine records step
// results through Tracker methods, never by direct mutation.
type Run struct {
	symphony.Entity

	ID           id.RunID           `json:"id"`
	DefinitionID id.WorkflowID      `json:"definition_id"`
	State        RunState           `json:"state"`
	Results      map[string]*Result `json:"results"`
	Error        string             `json:"error,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}

// NewRun creates a pending run for the given definition.
func NewRun(definitionID id.WorkflowID) *Run {
	return &Run{
		Entity:       symphony.NewEntity(),
		ID:           id.NewRunID(),
		DefinitionID: definitionID,
		State:        RunStatePending,
		Results:      make(map[string]*Result),
		StartedAt:    time.Now().UTC(),
	}
}

// Clone returns a copy of the run with its own Results map. Stores
// return clones so callers never race against persisted state.
func (r *Run) Clone() *Run {
	cp := *r
	cp.Results = make(map[string]*Result, len(r.Results))
	for k, v := range r.Results {
		res := *v
		cp.Results[k] = &res
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
