package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// ── Run model ──

type runModel struct {
	ID           string     `bson:"_id"`
	DefinitionID string     `bson:"definition_id"`
	State        string     `bson:"state"`
	Results      []byte     `bson:"results"`
	Error        string     `bson:"error,omitempty"`
	StartedAt    time.Time  `bson:"started_at"`
	CompletedAt  *time.Time `bson:"completed_at,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toRunModel(r *workflow.Run) (*runModel, error) {
	results, err := json.Marshal(r.Results)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: encode results: %w", err)
	}

	return &runModel{
		ID:           r.ID.String(),
		DefinitionID: r.DefinitionID.String(),
		State:        string(r.State),
		Results:      results,
		Error:        r.Error,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		CreatedAt:    r.Entity.CreatedAt,
		UpdatedAt:    r.Entity.UpdatedAt,
	}, nil
}

func fromRunModel(m *runModel) (*workflow.Run, error) {
	rID, err := id.ParseRunID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: parse run id %q: %w", m.ID, err)
	}
	defID, err := id.ParseWorkflowID(m.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: parse definition id %q: %w", m.DefinitionID, err)
	}

	results := make(map[string]*workflow.Result)
	if len(m.Results) > 0 {
		if err := json.Unmarshal(m.Results, &results); err != nil {
			return nil, fmt.Errorf("symphony/mongo: decode results: %w", err)
		}
	}

	return &workflow.Run{
		Entity: symphony.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           rID,
		DefinitionID: defID,
		State:        workflow.RunState(m.State),
		Results:      results,
		Error:        m.Error,
		StartedAt:    m.StartedAt,
		CompletedAt:  m.CompletedAt,
	}, nil
}

// ── Definition model ──

type definitionModel struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Document  []byte    `bson:"document"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ── Checkpoint model ──

type checkpointModel struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name,omitempty"`
	DefinitionID string    `bson:"definition_id"`
	RunState     []byte    `bson:"run_state"`
	Context      []byte    `bson:"context"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toCheckpointModel(cp *checkpoint.Checkpoint) (*checkpointModel, error) {
	runState, err := json.Marshal(cp.RunState)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: encode run state: %w", err)
	}
	contextData, err := json.Marshal(cp.Context)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: encode context: %w", err)
	}

	return &checkpointModel{
		ID:           cp.ID.String(),
		Name:         cp.Name,
		DefinitionID: cp.DefinitionID.String(),
		RunState:     runState,
		Context:      contextData,
		CreatedAt:    cp.CreatedAt,
	}, nil
}

func fromCheckpointModel(m *checkpointModel) (*checkpoint.Checkpoint, error) {
	cpID, err := id.ParseCheckpointID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: parse checkpoint id %q: %w", m.ID, err)
	}
	defID, err := id.ParseWorkflowID(m.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: parse definition id %q: %w", m.DefinitionID, err)
	}

	cp := &checkpoint.Checkpoint{
		ID:           cpID,
		Name:         m.Name,
		DefinitionID: defID,
		CreatedAt:    m.CreatedAt,
		Context:      make(map[string]any),
	}
	if err := json.Unmarshal(m.RunState, &cp.RunState); err != nil {
		return nil, fmt.Errorf("symphony/mongo: decode run state: %w", err)
	}
	if len(m.Context) > 0 {
		if err := json.Unmarshal(m.Context, &cp.Context); err != nil {
			return nil, fmt.Errorf("symphony/mongo: decode context: %w", err)
		}
	}
	return cp, nil
}
