package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/ext"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// scopeName is the instrumentation scope for all Symphony telemetry.
const scopeName = "github.com/arunmenon/Symphony-Agent-Fwk-sub000"

// Compile-time interface checks.
var (
	_ ext.Extension          = (*MetricsExtension)(nil)
	_ ext.WorkflowStarted    = (*MetricsExtension)(nil)
	_ ext.WorkflowCompleted  = (*MetricsExtension)(nil)
	_ ext.WorkflowFailed     = (*MetricsExtension)(nil)
	_ ext.WorkflowPaused     = (*MetricsExtension)(nil)
	_ ext.StepCompleted      = (*MetricsExtension)(nil)
	_ ext.StepFailed         = (*MetricsExtension)(nil)
	_ ext.CheckpointSaved    = (*MetricsExtension)(nil)
	_ ext.CheckpointRestored = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle counters and duration histograms.
// Register it with the engine's extension registry to track run rates,
// failure rates, step latency, and checkpoint activity.
type MetricsExtension struct {
	runStarted   metric.Int64Counter
	runCompleted metric.Int64Counter
	runFailed    metric.Int64Counter
	runPaused    metric.Int64Counter
	runDuration  metric.Float64Histogram

	stepCompleted metric.Int64Counter
	stepFailed    metric.Int64Counter
	stepDuration  metric.Float64Histogram

	checkpointSaved    metric.Int64Counter
	checkpointRestored metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() (*MetricsExtension, error) {
	return NewMetricsExtensionWithMeter(otel.Meter(scopeName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Use this to inject a specific MeterProvider for
// testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) (*MetricsExtension, error) {
	m := &MetricsExtension{}

	var err error
	if m.runStarted, err = meter.Int64Counter("symphony.run.started"); err != nil {
		return nil, err
	}
	if m.runCompleted, err = meter.Int64Counter("symphony.run.completed"); err != nil {
		return nil, err
	}
	if m.runFailed, err = meter.Int64Counter("symphony.run.failed"); err != nil {
		return nil, err
	}
	if m.runPaused, err = meter.Int64Counter("symphony.run.paused"); err != nil {
		return nil, err
	}
	if m.runDuration, err = meter.Float64Histogram("symphony.run.duration",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.stepCompleted, err = meter.Int64Counter("symphony.step.completed"); err != nil {
		return nil, err
	}
	if m.stepFailed, err = meter.Int64Counter("symphony.step.failed"); err != nil {
		return nil, err
	}
	if m.stepDuration, err = meter.Float64Histogram("symphony.step.duration",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.checkpointSaved, err = meter.Int64Counter("symphony.checkpoint.saved"); err != nil {
		return nil, err
	}
	if m.checkpointRestored, err = meter.Int64Counter("symphony.checkpoint.restored"); err != nil {
		return nil, err
	}

	return m, nil
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func runAttrs(run *workflow.Run) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("symphony.definition.id", run.DefinitionID.String()),
	)
}

// OnWorkflowStarted implements ext.WorkflowStarted.
func (m *MetricsExtension) OnWorkflowStarted(ctx context.Context, run *workflow.Run) error {
	m.runStarted.Add(ctx, 1, runAttrs(run))
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(ctx context.Context, run *workflow.Run, elapsed time.Duration) error {
	m.runCompleted.Add(ctx, 1, runAttrs(run))
	m.runDuration.Record(ctx, elapsed.Seconds(), runAttrs(run))
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (m *MetricsExtension) OnWorkflowFailed(ctx context.Context, run *workflow.Run, _ error) error {
	m.runFailed.Add(ctx, 1, runAttrs(run))
	return nil
}

// OnWorkflowPaused implements ext.WorkflowPaused.
func (m *MetricsExtension) OnWorkflowPaused(ctx context.Context, run *workflow.Run) error {
	m.runPaused.Add(ctx, 1, runAttrs(run))
	return nil
}

// OnStepCompleted implements ext.StepCompleted.
func (m *MetricsExtension) OnStepCompleted(ctx context.Context, run *workflow.Run, result *workflow.Result, elapsed time.Duration) error {
	attrs := metric.WithAttributes(
		attribute.String("symphony.definition.id", run.DefinitionID.String()),
		attribute.String("symphony.step.id", result.StepID),
	)
	m.stepCompleted.Add(ctx, 1, attrs)
	m.stepDuration.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnStepFailed implements ext.StepFailed.
func (m *MetricsExtension) OnStepFailed(ctx context.Context, run *workflow.Run, result *workflow.Result, _ error) error {
	m.stepFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symphony.definition.id", run.DefinitionID.String()),
		attribute.String("symphony.step.id", result.StepID),
	))
	return nil
}

// OnCheckpointSaved implements ext.CheckpointSaved.
func (m *MetricsExtension) OnCheckpointSaved(ctx context.Context, run *workflow.Run, _ *checkpoint.Metadata) error {
	m.checkpointSaved.Add(ctx, 1, runAttrs(run))
	return nil
}

// OnCheckpointRestored implements ext.CheckpointRestored.
func (m *MetricsExtension) OnCheckpointRestored(ctx context.Context, run *workflow.Run, _ *checkpoint.Metadata) error {
	m.checkpointRestored.Add(ctx, 1, runAttrs(run))
	return nil
}
