package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/state"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Trigger identifies the event prompting a snapshot decision.
type Trigger string

// Snapshot triggers.
const (
	TriggerStart      Trigger = "start"
	TriggerStep       Trigger = "step"
	TriggerError      Trigger = "error"
	TriggerCompletion Trigger = "completion"
	TriggerManual     Trigger = "manual"
)

// Triggers configures when the engine snapshots a run.
type Triggers struct {
	// OnStart snapshots once before the first step dispatches.
	OnStart bool
	// EveryN snapshots after every N completed steps. Zero disables
	// the step-count trigger.
	EveryN int
	// OnError snapshots when a step fails.
	OnError bool
	// OnCompletion snapshots when the run reaches a terminal or
	// paused state.
	OnCompletion bool
}

// DefaultTriggers snapshots every 5 steps, on error, and on completion.
func DefaultTriggers() Triggers {
	return Triggers{EveryN: 5, OnError: true, OnCompletion: true}
}

// Manager serializes run state to durable storage and restores it.
// Restoration is two-phase (see package documentation); each entity
// kind is handled by a registered Restorer selected by the record's
// type tag.
type Manager struct {
	store     Store
	logger    *slog.Logger
	triggers  Triggers
	restorers map[string]Restorer
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithTriggers sets the snapshot trigger policy.
func WithTriggers(t Triggers) Option {
	return func(m *Manager) { m.triggers = t }
}

// New creates a checkpoint manager with the run and result restorers
// registered.
func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		logger:    slog.Default(),
		triggers:  DefaultTriggers(),
		restorers: make(map[string]Restorer),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Register(runRestorer{})
	m.Register(resultRestorer{})
	return m
}

// Register adds a restorer for an entity kind, replacing any existing
// registration for the same kind.
func (m *Manager) Register(r Restorer) {
	m.restorers[r.Kind()] = r
}

// ShouldSnapshot reports whether the trigger policy asks for a
// snapshot. stepsSinceLast counts completed steps since the previous
// snapshot and only affects the step trigger.
func (m *Manager) ShouldSnapshot(trigger Trigger, stepsSinceLast int) bool {
	switch trigger {
	case TriggerManual:
		return true
	case TriggerStart:
		return m.triggers.OnStart
	case TriggerStep:
		return m.triggers.EveryN > 0 && stepsSinceLast >= m.triggers.EveryN
	case TriggerError:
		return m.triggers.OnError
	case TriggerCompletion:
		return m.triggers.OnCompletion
	default:
		return false
	}
}

// Snapshot serializes the run and its context into a checkpoint bundle
// and persists it. Relational fields are written as identifiers only.
func (m *Manager) Snapshot(ctx context.Context, run *workflow.Run, st *state.Context, name string) (*Checkpoint, error) {
	records := make([]Record, 0, len(run.Results)+1)

	runRec, err := encodeRun(run)
	if err != nil {
		return nil, err
	}
	records = append(records, runRec)

	for _, res := range run.Results {
		rec, encErr := encodeResult(run.ID, res)
		if encErr != nil {
			return nil, encErr
		}
		records = append(records, rec)
	}

	cp := &Checkpoint{
		ID:           id.NewCheckpointID(),
		Name:         name,
		CreatedAt:    time.Now().UTC(),
		DefinitionID: run.DefinitionID,
		RunState:     records,
		Context:      st.Flatten(),
	}

	if err := m.store.SaveCheckpoint(ctx, cp); err != nil {
		return nil, fmt.Errorf("checkpoint: save %s: %w", cp.ID, err)
	}

	m.logger.Debug("checkpoint saved",
		slog.String("checkpoint_id", cp.ID.String()),
		slog.String("run_id", run.ID.String()),
		slog.Int("results", len(run.Results)),
	)
	return cp, nil
}

// Restore rebuilds a run and its context from a stored checkpoint.
//
// Creation phase: every record is independently reconstructed with
// scalar fields via its kind's restorer into a flat arena. Connection
// phase: every record's relational identifiers are resolved against
// the arena and replaced with live references. An identifier missing
// from the bundle fails with symphony.ErrDanglingReference.
func (m *Manager) Restore(ctx context.Context, cpID id.CheckpointID) (*workflow.Run, *state.Context, error) {
	cp, err := m.store.GetCheckpoint(ctx, cpID)
	if err != nil {
		return nil, nil, err
	}

	// Creation phase.
	arena := make(map[string]any, len(cp.RunState))
	for _, rec := range cp.RunState {
		restorer, ok := m.restorers[rec.Kind]
		if !ok {
			return nil, nil, fmt.Errorf("checkpoint: no restorer for entity kind %q", rec.Kind)
		}
		entity, createErr := restorer.Create(rec)
		if createErr != nil {
			return nil, nil, createErr
		}
		arena[arenaKey(rec.Kind, rec.ID)] = entity
	}

	lookup := func(kind, entityID string) (any, error) {
		entity, ok := arena[arenaKey(kind, entityID)]
		if !ok {
			return nil, fmt.Errorf("%w: %s %q (checkpoint %s)", symphony.ErrDanglingReference, kind, entityID, cpID)
		}
		return entity, nil
	}

	// Connection phase.
	var run *workflow.Run
	for _, rec := range cp.RunState {
		entity := arena[arenaKey(rec.Kind, rec.ID)]
		if connectErr := m.restorers[rec.Kind].Connect(entity, rec, lookup); connectErr != nil {
			return nil, nil, connectErr
		}
		if r, ok := entity.(*workflow.Run); ok {
			run = r
		}
	}
	if run == nil {
		return nil, nil, fmt.Errorf("checkpoint: bundle %s contains no run entity", cpID)
	}

	m.logger.Debug("checkpoint restored",
		slog.String("checkpoint_id", cpID.String()),
		slog.String("run_id", run.ID.String()),
		slog.Int("results", len(run.Results)),
	)
	return run, state.FromFlat(cp.Context), nil
}

// List returns metadata for all stored checkpoints.
func (m *Manager) List(ctx context.Context) ([]*Metadata, error) {
	return m.store.ListCheckpoints(ctx)
}

// Delete removes a stored checkpoint.
func (m *Manager) Delete(ctx context.Context, cpID id.CheckpointID) error {
	return m.store.DeleteCheckpoint(ctx, cpID)
}

func arenaKey(kind, entityID string) string {
	return kind + ":" + entityID
}
