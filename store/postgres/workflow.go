package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// CreateRun persists a new workflow run.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("symphony/postgres: encode results: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO symphony_runs
			(id, definition_id, state, results, error, started_at, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		run.ID, run.DefinitionID, string(run.State), results, run.Error,
		run.StartedAt, run.CompletedAt, run.Entity.CreatedAt, run.Entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("symphony/postgres: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, definition_id, state, results, COALESCE(error, ''),
		       started_at, completed_at, created_at, updated_at
		FROM symphony_runs
		WHERE id = $1
	`, runID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, symphony.ErrRunNotFound
		}
		return nil, fmt.Errorf("symphony/postgres: get run: %w", err)
	}
	return run, nil
}

// UpdateRun persists changes to an existing workflow run.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("symphony/postgres: encode results: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE symphony_runs
		SET state = $2, results = $3, error = $4, completed_at = $5, updated_at = $6
		WHERE id = $1
	`,
		run.ID, string(run.State), results, run.Error, run.CompletedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("symphony/postgres: update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return symphony.ErrRunNotFound
	}
	return nil
}

// ListRuns returns workflow runs matching the given options, ordered
// by StartedAt ascending.
func (s *Store) ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	query := `
		SELECT id, definition_id, state, results, COALESCE(error, ''),
		       started_at, completed_at, created_at, updated_at
		FROM symphony_runs
	`
	var args []any
	if opts.State != "" {
		query += ` WHERE state = $1`
		args = append(args, string(opts.State))
	}
	query += ` ORDER BY started_at ASC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("symphony/postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*workflow.Run
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("symphony/postgres: scan run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("symphony/postgres: list runs rows: %w", err)
	}
	return runs, nil
}

// SaveDefinition persists a workflow definition as its JSON document.
func (s *Store) SaveDefinition(ctx context.Context, def *workflow.Definition) error {
	doc, err := def.MarshalJSON()
	if err != nil {
		return fmt.Errorf("symphony/postgres: encode definition %s: %w", def.ID(), err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO symphony_definitions (id, name, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, document = EXCLUDED.document, updated_at = NOW()
	`, def.ID(), def.Name(), doc)
	if err != nil {
		return fmt.Errorf("symphony/postgres: save definition: %w", err)
	}
	return nil
}

// GetDefinition retrieves a workflow definition by ID.
func (s *Store) GetDefinition(ctx context.Context, defID id.WorkflowID) (*workflow.Definition, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `
		SELECT document FROM symphony_definitions WHERE id = $1
	`, defID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, symphony.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("symphony/postgres: get definition: %w", err)
	}

	var def workflow.Definition
	if err := def.UnmarshalJSON(doc); err != nil {
		return nil, fmt.Errorf("symphony/postgres: decode definition: %w", err)
	}
	return &def, nil
}

// scanRun reads one run row. The column order matches the SELECT
// statements above.
func scanRun(row pgx.Row) (*workflow.Run, error) {
	var (
		run     workflow.Run
		state   string
		results []byte
	)
	err := row.Scan(
		&run.ID, &run.DefinitionID, &state, &results, &run.Error,
		&run.StartedAt, &run.CompletedAt, &run.Entity.CreatedAt, &run.Entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.State = workflow.RunState(state)
	run.Results = make(map[string]*workflow.Result)
	if len(results) > 0 {
		if err := json.Unmarshal(results, &run.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	if run.Results == nil {
		run.Results = make(map[string]*workflow.Result)
	}
	return &run, nil
}
