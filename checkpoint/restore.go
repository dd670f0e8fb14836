package checkpoint

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Entity kind tags stored on checkpoint records.
const (
	KindRun    = "run"
	KindResult = "result"
)

// Lookup resolves an entity from the fully created arena during the
// connection phase. It fails with symphony.ErrDanglingReference if the
// identifier is absent from the checkpoint.
type Lookup func(kind, entityID string) (any, error)

// Restorer reconstructs one entity kind from its serialized record.
// Create runs in the creation phase and must populate scalar fields
// only; Connect runs in the connection phase once every entity exists
// and resolves relational identifiers into live references.
type Restorer interface {
	Kind() string
	Create(rec Record) (any, error)
	Connect(entity any, rec Record, lookup Lookup) error
}

// ──────────────────────────────────────────────────
// Serialized entity forms
// ──────────────────────────────────────────────────

// runRecord is the persisted form of a workflow.Run. Results are
// referenced by identifier only.
type runRecord struct {
	ID           string     `json:"id"`
	DefinitionID string     `json:"definition_id"`
	State        string     `json:"state"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResultIDs    []string   `json:"result_ids"`
}

// resultRecord is the persisted form of a workflow.Result. The owning
// run is referenced by identifier only.
type resultRecord struct {
	RunID       string    `json:"run_id"`
	StepID      string    `json:"step_id"`
	Success     bool      `json:"success"`
	Output      any       `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	ExecutionID string    `json:"execution_id,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// encodeRun serializes a run into a type-tagged record, writing result
// references as identifiers. Result IDs are sorted for a stable
// bundle.
func encodeRun(run *workflow.Run) (Record, error) {
	resultIDs := make([]string, 0, len(run.Results))
	for stepID := range run.Results {
		resultIDs = append(resultIDs, stepID)
	}
	sort.Strings(resultIDs)

	data, err := json.Marshal(runRecord{
		ID:           run.ID.String(),
		DefinitionID: run.DefinitionID.String(),
		State:        string(run.State),
		Error:        run.Error,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
		CreatedAt:    run.CreatedAt,
		UpdatedAt:    run.UpdatedAt,
		ResultIDs:    resultIDs,
	})
	if err != nil {
		return Record{}, fmt.Errorf("checkpoint: encode run %s: %w", run.ID, err)
	}
	return Record{Kind: KindRun, ID: run.ID.String(), Data: data}, nil
}

// encodeResult serializes a step result into a type-tagged record.
func encodeResult(runID id.RunID, res *workflow.Result) (Record, error) {
	data, err := json.Marshal(resultRecord{
		RunID:       runID.String(),
		StepID:      res.StepID,
		Success:     res.Success,
		Output:      res.Output,
		Error:       res.Error,
		ExecutionID: res.ExecutionID,
		CompletedAt: res.CompletedAt,
	})
	if err != nil {
		return Record{}, fmt.Errorf("checkpoint: encode result %s: %w", res.StepID, err)
	}
	return Record{Kind: KindResult, ID: res.StepID, Data: data}, nil
}

// ──────────────────────────────────────────────────
// Restorers
// ──────────────────────────────────────────────────

// runRestorer rebuilds workflow.Run entities.
type runRestorer struct{}

func (runRestorer) Kind() string { return KindRun }

func (runRestorer) Create(rec Record) (any, error) {
	var raw runRecord
	if err := json.Unmarshal(rec.Data, &raw); err != nil {
		return nil, fmt.Errorf("checkpoint: decode run record %q: %w", rec.ID, err)
	}

	runID, err := id.ParseRunID(raw.ID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: run record %q: %w", rec.ID, err)
	}
	defID, err := id.ParseWorkflowID(raw.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: run record %q: %w", rec.ID, err)
	}

	return &workflow.Run{
		Entity:       symphony.Entity{CreatedAt: raw.CreatedAt, UpdatedAt: raw.UpdatedAt},
		ID:           runID,
		DefinitionID: defID,
		State:        workflow.RunState(raw.State),
		Results:      make(map[string]*workflow.Result),
		Error:        raw.Error,
		StartedAt:    raw.StartedAt,
		CompletedAt:  raw.CompletedAt,
	}, nil
}

func (runRestorer) Connect(entity any, rec Record, lookup Lookup) error {
	run, ok := entity.(*workflow.Run)
	if !ok {
		return fmt.Errorf("checkpoint: run restorer got %T", entity)
	}

	var raw runRecord
	if err := json.Unmarshal(rec.Data, &raw); err != nil {
		return fmt.Errorf("checkpoint: decode run record %q: %w", rec.ID, err)
	}

	for _, resultID := range raw.ResultIDs {
		resolved, err := lookup(KindResult, resultID)
		if err != nil {
			return err
		}
		res, ok := resolved.(*workflow.Result)
		if !ok {
			return fmt.Errorf("checkpoint: result %q resolved to %T", resultID, resolved)
		}
		run.Results[res.StepID] = res
	}
	return nil
}

// resultRestorer rebuilds workflow.Result entities.
type resultRestorer struct{}

func (resultRestorer) Kind() string { return KindResult }

func (resultRestorer) Create(rec Record) (any, error) {
	var raw resultRecord
	if err := json.Unmarshal(rec.Data, &raw); err != nil {
		return nil, fmt.Errorf("checkpoint: decode result record %q: %w", rec.ID, err)
	}

	return &workflow.Result{
		StepID:      raw.StepID,
		Success:     raw.Success,
		Output:      raw.Output,
		Error:       raw.Error,
		ExecutionID: raw.ExecutionID,
		CompletedAt: raw.CompletedAt,
	}, nil
}

func (resultRestorer) Connect(_ any, rec Record, lookup Lookup) error {
	var raw resultRecord
	if err := json.Unmarshal(rec.Data, &raw); err != nil {
		return fmt.Errorf("checkpoint: decode result record %q: %w", rec.ID, err)
	}

	// A result's only relation is its owning run; verify it exists so
	// an orphaned result surfaces as a dangling reference instead of a
	// silently detached entity.
	_, err := lookup(KindRun, raw.RunID)
	return err
}
