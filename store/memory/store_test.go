package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Workflow Store tests
// ──────────────────────────────────────────────────

func newRun(state workflow.RunState, startedAt time.Time) *workflow.Run {
	r := workflow.NewRun(id.NewWorkflowID())
	r.State = state
	r.StartedAt = startedAt
	return r
}

func TestRunCreateAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := newRun(workflow.RunStateRunning, time.Now().UTC())
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ID.Equal(r.ID) {
		t.Fatalf("run ID mismatch")
	}
	if got.State != workflow.RunStateRunning {
		t.Fatalf("state = %q, want %q", got.State, workflow.RunStateRunning)
	}

	// Not found.
	_, err = s.GetRun(ctx, id.NewRunID())
	if !errors.Is(err, symphony.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunUpdate(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := newRun(workflow.RunStateRunning, time.Now().UTC())
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatal(err)
	}

	r.State = workflow.RunStateCompleted
	now := time.Now().UTC()
	r.CompletedAt = &now
	r.Results["fetch"] = workflow.NewResult("fetch", "data", "")
	if err := s.UpdateRun(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetRun(ctx, r.ID)
	if got.State != workflow.RunStateCompleted {
		t.Fatalf("state = %q, want %q", got.State, workflow.RunStateCompleted)
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt should be set")
	}
	if got.Results["fetch"] == nil || got.Results["fetch"].Output != "data" {
		t.Fatalf("results not persisted: %+v", got.Results)
	}

	// Update non-existent.
	missing := newRun(workflow.RunStateRunning, time.Now().UTC())
	if err := s.UpdateRun(ctx, missing); !errors.Is(err, symphony.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRunCloneIsolation(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := newRun(workflow.RunStateRunning, time.Now().UTC())
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatal(err)
	}

	// Mutating a retrieved run must not leak into the store.
	got, _ := s.GetRun(ctx, r.ID)
	got.State = workflow.RunStateFailed
	got.Results["injected"] = workflow.NewFailure("injected", errors.New("boom"))

	fresh, _ := s.GetRun(ctx, r.ID)
	if fresh.State != workflow.RunStateRunning {
		t.Fatalf("store state mutated to %q", fresh.State)
	}
	if len(fresh.Results) != 0 {
		t.Fatalf("store results mutated: %+v", fresh.Results)
	}
}

func TestRunList(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	base := time.Now().UTC()
	r1 := newRun(workflow.RunStateRunning, base)
	r2 := newRun(workflow.RunStateCompleted, base.Add(time.Second))
	r3 := newRun(workflow.RunStateRunning, base.Add(2*time.Second))

	for _, r := range []*workflow.Run{r3, r1, r2} {
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		opts      workflow.ListOpts
		wantCount int
	}{
		{"all", workflow.ListOpts{}, 3},
		{"running only", workflow.ListOpts{State: workflow.RunStateRunning}, 2},
		{"completed only", workflow.ListOpts{State: workflow.RunStateCompleted}, 1},
		{"with limit", workflow.ListOpts{Limit: 2}, 2},
		{"with offset", workflow.ListOpts{Offset: 2}, 1},
		{"offset past end", workflow.ListOpts{Offset: 10}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(runs) != tt.wantCount {
				t.Fatalf("got %d, want %d", len(runs), tt.wantCount)
			}
		})
	}

	// Ordered by StartedAt ascending regardless of insertion order.
	runs, _ := s.ListRuns(ctx, workflow.ListOpts{})
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.Before(runs[i-1].StartedAt) {
			t.Fatalf("runs not ordered by StartedAt ascending")
		}
	}
}

func TestDefinitionSaveAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	def, err := workflow.New("pipeline").WithStep(
		workflow.NewTask("fetch", "fetcher", "{{input.url}}"),
	)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SaveDefinition(ctx, def); err != nil {
		t.Fatal(err)
	}
	// Saving again is an idempotent overwrite.
	if err := s.SaveDefinition(ctx, def); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDefinition(ctx, def.ID())
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != "pipeline" {
		t.Fatalf("name = %q, want %q", got.Name(), "pipeline")
	}

	// Not found.
	_, err = s.GetDefinition(ctx, id.NewWorkflowID())
	if !errors.Is(err, symphony.ErrDefinitionNotFound) {
		t.Fatalf("expected ErrDefinitionNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Checkpoint Store tests
// ──────────────────────────────────────────────────

func newCheckpoint(name string, createdAt time.Time) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		ID:           id.NewCheckpointID(),
		Name:         name,
		CreatedAt:    createdAt,
		DefinitionID: id.NewWorkflowID(),
		RunState:     []checkpoint.Record{{Kind: "workflow.run", ID: "wfrun_test", Data: []byte(`{}`)}},
		Context:      map[string]any{"step.fetch.result": "data"},
	}
}

func TestCheckpointSaveAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	cp := newCheckpoint("after-fetch", time.Now().UTC())
	if err := s.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCheckpoint(ctx, cp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "after-fetch" {
		t.Fatalf("name = %q, want %q", got.Name, "after-fetch")
	}
	if len(got.RunState) != 1 || got.RunState[0].Kind != "workflow.run" {
		t.Fatalf("run state not persisted: %+v", got.RunState)
	}
	if got.Context["step.fetch.result"] != "data" {
		t.Fatalf("context not persisted: %+v", got.Context)
	}

	// Mutating the returned bundle must not leak into the store.
	got.Context["step.fetch.result"] = "tampered"
	fresh, _ := s.GetCheckpoint(ctx, cp.ID)
	if fresh.Context["step.fetch.result"] != "data" {
		t.Fatal("store checkpoint mutated through returned clone")
	}

	// Not found.
	_, err = s.GetCheckpoint(ctx, id.NewCheckpointID())
	if !errors.Is(err, symphony.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got %v", err)
	}
}

func TestCheckpointListAndDelete(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	base := time.Now().UTC()
	first := newCheckpoint("first", base)
	second := newCheckpoint("second", base.Add(time.Second))

	// Insert out of order; listing sorts by CreatedAt.
	for _, cp := range []*checkpoint.Checkpoint{second, first} {
		if err := s.SaveCheckpoint(ctx, cp); err != nil {
			t.Fatal(err)
		}
	}

	metas, err := s.ListCheckpoints(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(metas) != 2 {
		t.Fatalf("got %d checkpoints, want 2", len(metas))
	}
	if metas[0].Name != "first" || metas[1].Name != "second" {
		t.Fatalf("checkpoints not ordered by CreatedAt: %q, %q", metas[0].Name, metas[1].Name)
	}

	// Delete.
	if err := s.DeleteCheckpoint(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	metas, _ = s.ListCheckpoints(ctx)
	if len(metas) != 1 {
		t.Fatalf("after delete: got %d, want 1", len(metas))
	}

	// Delete non-existent.
	if err := s.DeleteCheckpoint(ctx, id.NewCheckpointID()); !errors.Is(err, symphony.ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got %v", err)
	}
}
