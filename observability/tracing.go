package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/ext"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*TracingExtension)(nil)
	_ ext.WorkflowStarted   = (*TracingExtension)(nil)
	_ ext.WorkflowCompleted = (*TracingExtension)(nil)
	_ ext.WorkflowFailed    = (*TracingExtension)(nil)
	_ ext.WorkflowPaused    = (*TracingExtension)(nil)
	_ ext.StepCompleted     = (*TracingExtension)(nil)
	_ ext.StepFailed        = (*TracingExtension)(nil)
	_ ext.CheckpointSaved   = (*TracingExtension)(nil)
)

// TracingExtension opens one OpenTelemetry span per workflow run,
// annotates it with step and checkpoint events, and closes it when the
// run completes, fails, or pauses. If no TracerProvider is configured
// globally, the noop tracer makes this a pass-through.
type TracingExtension struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTracingExtension creates a TracingExtension on the global
// TracerProvider.
func NewTracingExtension() *TracingExtension {
	return NewTracingExtensionWithTracer(otel.Tracer(scopeName))
}

// NewTracingExtensionWithTracer creates a TracingExtension with the
// provided tracer.
func NewTracingExtensionWithTracer(tracer trace.Tracer) *TracingExtension {
	return &TracingExtension{
		tracer: tracer,
		spans:  make(map[string]trace.Span),
	}
}

// Name implements ext.Extension.
func (t *TracingExtension) Name() string { return "observability-tracing" }

// OnWorkflowStarted implements ext.WorkflowStarted.
func (t *TracingExtension) OnWorkflowStarted(ctx context.Context, run *workflow.Run) error {
	_, span := t.tracer.Start(ctx, "symphony.run",
		trace.WithAttributes(
			attribute.String("symphony.run.id", run.ID.String()),
			attribute.String("symphony.definition.id", run.DefinitionID.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	t.mu.Lock()
	t.spans[run.ID.String()] = span
	t.mu.Unlock()
	return nil
}

// OnStepCompleted implements ext.StepCompleted.
func (t *TracingExtension) OnStepCompleted(_ context.Context, run *workflow.Run, result *workflow.Result, elapsed time.Duration) error {
	if span, ok := t.span(run); ok {
		span.AddEvent("step completed", trace.WithAttributes(
			attribute.String("symphony.step.id", result.StepID),
			attribute.Float64("symphony.step.duration_s", elapsed.Seconds()),
		))
	}
	return nil
}

// OnStepFailed implements ext.StepFailed.
func (t *TracingExtension) OnStepFailed(_ context.Context, run *workflow.Run, result *workflow.Result, stepErr error) error {
	if span, ok := t.span(run); ok {
		span.AddEvent("step failed", trace.WithAttributes(
			attribute.String("symphony.step.id", result.StepID),
			attribute.String("symphony.step.error", stepErr.Error()),
		))
	}
	return nil
}

// OnCheckpointSaved implements ext.CheckpointSaved.
func (t *TracingExtension) OnCheckpointSaved(_ context.Context, run *workflow.Run, meta *checkpoint.Metadata) error {
	if span, ok := t.span(run); ok {
		span.AddEvent("checkpoint saved", trace.WithAttributes(
			attribute.String("symphony.checkpoint.id", meta.ID.String()),
		))
	}
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (t *TracingExtension) OnWorkflowCompleted(_ context.Context, run *workflow.Run, _ time.Duration) error {
	if span, ok := t.take(run); ok {
		span.SetStatus(codes.Ok, "")
		span.End()
	}
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (t *TracingExtension) OnWorkflowFailed(_ context.Context, run *workflow.Run, runErr error) error {
	if span, ok := t.take(run); ok {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		span.End()
	}
	return nil
}

// OnWorkflowPaused implements ext.WorkflowPaused.
func (t *TracingExtension) OnWorkflowPaused(_ context.Context, run *workflow.Run) error {
	// A paused run may resume in another process; the span can't stay
	// open across the gap, so it ends here and the resume opens a new one.
	if span, ok := t.take(run); ok {
		span.AddEvent("run paused")
		span.End()
	}
	return nil
}

func (t *TracingExtension) span(run *workflow.Run) (trace.Span, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[run.ID.String()]
	return span, ok
}

func (t *TracingExtension) take(run *workflow.Run) (trace.Span, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	span, ok := t.spans[run.ID.String()]
	if ok {
		delete(t.spans, run.ID.String())
	}
	return span, ok
}
