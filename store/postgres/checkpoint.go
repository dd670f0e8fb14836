package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
)

// SaveCheckpoint persists a checkpoint bundle.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	runState, err := json.Marshal(cp.RunState)
	if err != nil {
		return fmt.Errorf("symphony/postgres: encode run state: %w", err)
	}
	contextData, err := json.Marshal(cp.Context)
	if err != nil {
		return fmt.Errorf("symphony/postgres: encode context: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO symphony_checkpoints
			(id, name, definition_id, run_state, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, run_state = EXCLUDED.run_state, context = EXCLUDED.context
	`, cp.ID, cp.Name, cp.DefinitionID, runState, contextData, cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("symphony/postgres: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint bundle by ID.
func (s *Store) GetCheckpoint(ctx context.Context, cpID id.CheckpointID) (*checkpoint.Checkpoint, error) {
	var (
		cp          checkpoint.Checkpoint
		runState    []byte
		contextData []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(name, ''), definition_id, run_state, context, created_at
		FROM symphony_checkpoints
		WHERE id = $1
	`, cpID).Scan(&cp.ID, &cp.Name, &cp.DefinitionID, &runState, &contextData, &cp.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, symphony.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("symphony/postgres: get checkpoint: %w", err)
	}

	if err := json.Unmarshal(runState, &cp.RunState); err != nil {
		return nil, fmt.Errorf("symphony/postgres: decode run state: %w", err)
	}
	if err := json.Unmarshal(contextData, &cp.Context); err != nil {
		return nil, fmt.Errorf("symphony/postgres: decode context: %w", err)
	}
	return &cp, nil
}

// ListCheckpoints returns metadata for all stored checkpoints, ordered
// by CreatedAt ascending.
func (s *Store) ListCheckpoints(ctx context.Context) ([]*checkpoint.Metadata, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(name, ''), definition_id, created_at
		FROM symphony_checkpoints
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("symphony/postgres: list checkpoints: %w", err)
	}
	defer rows.Close()

	var metas []*checkpoint.Metadata
	for rows.Next() {
		var meta checkpoint.Metadata
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.DefinitionID, &meta.CreatedAt); err != nil {
			return nil, fmt.Errorf("symphony/postgres: scan checkpoint: %w", err)
		}
		metas = append(metas, &meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("symphony/postgres: list checkpoints rows: %w", err)
	}
	return metas, nil
}

// DeleteCheckpoint removes a checkpoint bundle by ID.
func (s *Store) DeleteCheckpoint(ctx context.Context, cpID id.CheckpointID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM symphony_checkpoints WHERE id = $1
	`, cpID)
	if err != nil {
		return fmt.Errorf("symphony/postgres: delete checkpoint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return symphony.ErrCheckpointNotFound
	}
	return nil
}
