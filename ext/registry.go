package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type workflowStartedEntry struct {
	name string
	hook WorkflowStarted
}

type workflowCompletedEntry struct {
	name string
	hook WorkflowCompleted
}

type workflowFailedEntry struct {
	name string
	hook WorkflowFailed
}

type workflowPausedEntry struct {
	name string
	hook WorkflowPaused
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type stepFailedEntry struct {
	name string
	hook StepFailed
}

type checkpointSavedEntry struct {
	name string
	hook CheckpointSaved
}

type checkpointRestoredEntry struct {
	name string
	hook CheckpointRestored
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	workflowStarted    []workflowStartedEntry
	workflowCompleted  []workflowCompletedEntry
	workflowFailed     []workflowFailedEntry
	workflowPaused     []workflowPausedEntry
	stepCompleted      []stepCompletedEntry
	stepFailed         []stepFailedEntry
	checkpointSaved    []checkpointSavedEntry
	checkpointRestored []checkpointRestoredEntry
	shutdown           []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(WorkflowStarted); ok {
		r.workflowStarted = append(r.workflowStarted, workflowStartedEntry{name, h})
	}
	if h, ok := e.(WorkflowCompleted); ok {
		r.workflowCompleted = append(r.workflowCompleted, workflowCompletedEntry{name, h})
	}
	if h, ok := e.(WorkflowFailed); ok {
		r.workflowFailed = append(r.workflowFailed, workflowFailedEntry{name, h})
	}
	if h, ok := e.(WorkflowPaused); ok {
		r.workflowPaused = append(r.workflowPaused, workflowPausedEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(StepFailed); ok {
		r.stepFailed = append(r.stepFailed, stepFailedEntry{name, h})
	}
	if h, ok := e.(CheckpointSaved); ok {
		r.checkpointSaved = append(r.checkpointSaved, checkpointSavedEntry{name, h})
	}
	if h, ok := e.(CheckpointRestored); ok {
		r.checkpointRestored = append(r.checkpointRestored, checkpointRestoredEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Run event emitters
// ──────────────────────────────────────────────────

// EmitWorkflowStarted notifies all extensions that implement WorkflowStarted.
func (r *Registry) EmitWorkflowStarted(ctx context.Context, run *workflow.Run) {
	for _, e := range r.workflowStarted {
		if err := e.hook.OnWorkflowStarted(ctx, run); err != nil {
			r.logHookError("OnWorkflowStarted", e.name, err)
		}
	}
}

// EmitWorkflowCompleted notifies all extensions that implement WorkflowCompleted.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, run *workflow.Run, elapsed time.Duration) {
	for _, e := range r.workflowCompleted {
		if err := e.hook.OnWorkflowCompleted(ctx, run, elapsed); err != nil {
			r.logHookError("OnWorkflowCompleted", e.name, err)
		}
	}
}

// EmitWorkflowFailed notifies all extensions that implement WorkflowFailed.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, run *workflow.Run, runErr error) {
	for _, e := range r.workflowFailed {
		if err := e.hook.OnWorkflowFailed(ctx, run, runErr); err != nil {
			r.logHookError("OnWorkflowFailed", e.name, err)
		}
	}
}

// EmitWorkflowPaused notifies all extensions that implement WorkflowPaused.
func (r *Registry) EmitWorkflowPaused(ctx context.Context, run *workflow.Run) {
	for _, e := range r.workflowPaused {
		if err := e.hook.OnWorkflowPaused(ctx, run); err != nil {
			r.logHookError("OnWorkflowPaused", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Step event emitters
// ──────────────────────────────────────────────────

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, run *workflow.Run, result *workflow.Result, elapsed time.Duration) {
	for _, e := range r.stepCompleted {
		if err := e.hook.OnStepCompleted(ctx, run, result, elapsed); err != nil {
			r.logHookError("OnStepCompleted", e.name, err)
		}
	}
}

// EmitStepFailed notifies all extensions that implement StepFailed.
func (r *Registry) EmitStepFailed(ctx context.Context, run *workflow.Run, result *workflow.Result, stepErr error) {
	for _, e := range r.stepFailed {
		if err := e.hook.OnStepFailed(ctx, run, result, stepErr); err != nil {
			r.logHookError("OnStepFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Checkpoint event emitters
// ──────────────────────────────────────────────────

// EmitCheckpointSaved notifies all extensions that implement CheckpointSaved.
func (r *Registry) EmitCheckpointSaved(ctx context.Context, run *workflow.Run, meta *checkpoint.Metadata) {
	for _, e := range r.checkpointSaved {
		if err := e.hook.OnCheckpointSaved(ctx, run, meta); err != nil {
			r.logHookError("OnCheckpointSaved", e.name, err)
		}
	}
}

// EmitCheckpointRestored notifies all extensions that implement CheckpointRestored.
func (r *Registry) EmitCheckpointRestored(ctx context.Context, run *workflow.Run, meta *checkpoint.Metadata) {
	for _, e := range r.checkpointRestored {
		if err := e.hook.OnCheckpointRestored(ctx, run, meta); err != nil {
			r.logHookError("OnCheckpointRestored", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the run.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
