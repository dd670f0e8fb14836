package workflow

import (
	"context"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
)

// ListOpts controls filtering and pagination for run list queries.
type ListOpts struct {
	// State filters by run state. Empty means all states.
	State RunState
	// Limit is the maximum number of runs to return. Zero means no limit.
	Limit int
	// Offset is the number of runs to skip.
	Offset int
}

// Store defines the persistence contract for workflow definitions and
// runs. The engine persists run state incrementally through it.
type Store interface {
	// CreateRun persists a new workflow run.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun retrieves a workflow run by ID.
	GetRun(ctx context.Context, runID id.RunID) (*Run, error)

	// UpdateRun persists changes to an existing workflow run.
	UpdateRun(ctx context.Context, run *Run) error

	// ListRuns returns workflow runs matching the given options,
	// ordered by StartedAt ascending.
	ListRuns(ctx context.Context, opts ListOpts) ([]*Run, error)

	// SaveDefinition persists a workflow definition. Saving the same
	// definition ID again is an idempotent overwrite (definitions are
	// immutable values).
	SaveDefinition(ctx context.Context, def *Definition) error

	// GetDefinition retrieves a workflow definition by ID.
	GetDefinition(ctx context.Context, defID id.WorkflowID) (*Definition, error)
}
