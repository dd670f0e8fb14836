// Package ext defines the extension system for Symphony.
// Extensions are notified of lifecycle events (run started, step
// completed, checkpoint saved, etc.) and can react to them — logging,
// metrics, tracing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Run lifecycle hooks
// ──────────────────────────────────────────────────

// WorkflowStarted is called when a workflow run begins executing.
type WorkflowStarted interface {
	OnWorkflowStarted(ctx context.Context, run *workflow.Run) error
}

// WorkflowCompleted is called after a run finishes with every step
// successful.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, run *workflow.Run, elapsed time.Duration) error
}

// WorkflowFailed is called when a run fails terminally.
type WorkflowFailed interface {
	OnWorkflowFailed(ctx context.Context, run *workflow.Run, err error) error
}

// WorkflowPaused is called when the engine observes a pause request
// and stops dispatching.
type WorkflowPaused interface {
	OnWorkflowPaused(ctx context.Context, run *workflow.Run) error
}

// ──────────────────────────────────────────────────
// Step lifecycle hooks
// ──────────────────────────────────────────────────

// StepCompleted is called after a step finishes successfully.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, run *workflow.Run, result *workflow.Result, elapsed time.Duration) error
}

// StepFailed is called when a step fails.
type StepFailed interface {
	OnStepFailed(ctx context.Context, run *workflow.Run, result *workflow.Result, err error) error
}

// ──────────────────────────────────────────────────
// Checkpoint lifecycle hooks
// ──────────────────────────────────────────────────

// CheckpointSaved is called after a checkpoint bundle is persisted.
type CheckpointSaved interface {
	OnCheckpointSaved(ctx context.Context, run *workflow.Run, meta *checkpoint.Metadata) error
}

// CheckpointRestored is called after a run is rebuilt from a bundle.
type CheckpointRestored interface {
	OnCheckpointRestored(ctx context.Context, run *workflow.Run, meta *checkpoint.Metadata) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
