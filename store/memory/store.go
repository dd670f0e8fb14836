// Package memory provides a fully in-memory store.Store
// implementation. Safe for concurrent access. Intended for unit
// testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Compile-time interface checks.
var (
	_ workflow.Store   = (*Store)(nil)
	_ checkpoint.Store = (*Store)(nil)
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	runs        map[string]*workflow.Run
	definitions map[string]*workflow.Definition
	checkpoints map[string]*checkpoint.Checkpoint
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		runs:        make(map[string]*workflow.Run),
		definitions: make(map[string]*workflow.Definition),
		checkpoints: make(map[string]*checkpoint.Checkpoint),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Workflow Store
// ──────────────────────────────────────────────────

// CreateRun persists a new workflow run.
func (m *Store) CreateRun(_ context.Context, run *workflow.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID.String()] = run.Clone()
	return nil
}

// GetRun retrieves a workflow run by ID.
func (m *Store) GetRun(_ context.Context, runID id.RunID) (*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[runID.String()]
	if !ok {
		return nil, symphony.ErrRunNotFound
	}
	return run.Clone(), nil
}

// UpdateRun persists changes to an existing workflow run.
func (m *Store) UpdateRun(_ context.Context, run *workflow.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := run.ID.String()
	if _, ok := m.runs[key]; !ok {
		return symphony.ErrRunNotFound
	}
	cp := run.Clone()
	cp.UpdatedAt = time.Now().UTC()
	m.runs[key] = cp
	return nil
}

// ListRuns returns workflow runs matching the given options, ordered
// by StartedAt ascending.
func (m *Store) ListRuns(_ context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*workflow.Run, 0, len(m.runs))
	for _, run := range m.runs {
		if opts.State != "" && run.State != opts.State {
			continue
		}
		result = append(result, run.Clone())
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].StartedAt.Before(result[k].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// SaveDefinition persists a workflow definition (idempotent overwrite).
func (m *Store) SaveDefinition(_ context.Context, def *workflow.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Definitions are immutable values; storing the pointer is safe.
	m.definitions[def.ID().String()] = def
	return nil
}

// GetDefinition retrieves a workflow definition by ID.
func (m *Store) GetDefinition(_ context.Context, defID id.WorkflowID) (*workflow.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.definitions[defID.String()]
	if !ok {
		return nil, symphony.ErrDefinitionNotFound
	}
	return def, nil
}

// ──────────────────────────────────────────────────
// Checkpoint Store
// ──────────────────────────────────────────────────

// SaveCheckpoint persists a checkpoint bundle.
func (m *Store) SaveCheckpoint(_ context.Context, cp *checkpoint.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[cp.ID.String()] = cloneCheckpoint(cp)
	return nil
}

// GetCheckpoint retrieves a checkpoint bundle by ID.
func (m *Store) GetCheckpoint(_ context.Context, cpID id.CheckpointID) (*checkpoint.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[cpID.String()]
	if !ok {
		return nil, symphony.ErrCheckpointNotFound
	}
	return cloneCheckpoint(cp), nil
}

// ListCheckpoints returns metadata for all stored checkpoints, ordered
// by CreatedAt ascending.
func (m *Store) ListCheckpoints(_ context.Context) ([]*checkpoint.Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metas := make([]*checkpoint.Metadata, 0, len(m.checkpoints))
	for _, cp := range m.checkpoints {
		metas = append(metas, cp.Metadata())
	}
	sort.Slice(metas, func(i, k int) bool {
		return metas[i].CreatedAt.Before(metas[k].CreatedAt)
	})
	return metas, nil
}

// DeleteCheckpoint removes a checkpoint bundle by ID.
func (m *Store) DeleteCheckpoint(_ context.Context, cpID id.CheckpointID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := cpID.String()
	if _, ok := m.checkpoints[key]; !ok {
		return symphony.ErrCheckpointNotFound
	}
	delete(m.checkpoints, key)
	return nil
}

// cloneCheckpoint copies the bundle's record slice and context map so
// callers can't mutate stored state.
func cloneCheckpoint(cp *checkpoint.Checkpoint) *checkpoint.Checkpoint {
	out := *cp
	out.RunState = make([]checkpoint.Record, len(cp.RunState))
	copy(out.RunState, cp.RunState)
	out.Context = make(map[string]any, len(cp.Context))
	for k, v := range cp.Context {
		out.Context[k] = v
	}
	return &out
}
