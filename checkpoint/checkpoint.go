package checkpoint

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
)

// Record is one type-tagged serialized entity bundle inside a
// checkpoint. Data holds the entity's scalar fields plus relational
// fields as raw identifiers; the Kind tag selects the Restorer used to
// rebuild it.
type Record struct {
	Kind string          `json:"kind"`
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Checkpoint is a durable, self-sufficient snapshot of a workflow run.
// The serialized form is stable across versions: id, name, created_at
// (RFC 3339), definition_id, run_state (entity records), and context
// (flat dotted-path map with JSON-encodable values).
type Checkpoint struct {
	ID           id.CheckpointID `json:"id"`
	Name         string          `json:"name,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	DefinitionID id.WorkflowID   `json:"definition_id"`
	RunState     []Record        `json:"run_state"`
	Context      map[string]any  `json:"context"`
}

// Metadata is the listing view of a checkpoint, without the bundle
// payload.
type Metadata struct {
	ID           id.CheckpointID `json:"id"`
	Name         string          `json:"name,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	DefinitionID id.WorkflowID   `json:"definition_id"`
}

// Metadata returns the checkpoint's listing view.
func (c *Checkpoint) Metadata() *Metadata {
	return &Metadata{
		ID:           c.ID,
		Name:         c.Name,
		CreatedAt:    c.CreatedAt,
		DefinitionID: c.DefinitionID,
	}
}

// Store defines the persistence contract for checkpoint bundles.
type Store interface {
	// SaveCheckpoint persists a checkpoint bundle.
	SaveCheckpoint(ctx context.Context, cp *Checkpoint) error

	// GetCheckpoint retrieves a checkpoint bundle by ID. Returns
	// symphony.ErrCheckpointNotFound for unknown IDs.
	GetCheckpoint(ctx context.Context, cpID id.CheckpointID) (*Checkpoint, error)

	// ListCheckpoints returns metadata for all stored checkpoints,
	// ordered by CreatedAt ascending.
	ListCheckpoints(ctx context.Context) ([]*Metadata, error)

	// DeleteCheckpoint removes a checkpoint bundle by ID. Returns
	// symphony.ErrCheckpointNotFound for unknown IDs.
	DeleteCheckpoint(ctx context.Context, cpID id.CheckpointID) error
}
