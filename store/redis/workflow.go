package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// resultModel is the msgpack form of a step result stored inside the
// run hash.
type resultModel struct {
	StepID      string    `msgpack:"step_id"`
	Success     bool      `msgpack:"success"`
	Output      any       `msgpack:"output,omitempty"`
	Error       string    `msgpack:"error,omitempty"`
	ExecutionID string    `msgpack:"execution_id,omitempty"`
	CompletedAt time.Time `msgpack:"completed_at"`
}

// CreateRun persists a new workflow run.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	rID := run.ID.String()
	m, err := runToMap(run)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, runKey(rID), m)
	pipe.SAdd(ctx, runIDsKey, rID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("symphony/redis: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	vals, err := s.client.HGetAll(ctx, runKey(runID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: get run: %w", err)
	}
	if len(vals) == 0 {
		return nil, symphony.ErrRunNotFound
	}
	return mapToRun(vals)
}

// UpdateRun persists changes to an existing workflow run.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	key := runKey(run.ID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("symphony/redis: update run exists: %w", err)
	}
	if exists == 0 {
		return symphony.ErrRunNotFound
	}

	m, err := runToMap(run)
	if err != nil {
		return err
	}
	m["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.client.HSet(ctx, key, m).Result(); err != nil {
		return fmt.Errorf("symphony/redis: update run: %w", err)
	}
	return nil
}

// ListRuns returns workflow runs matching the given options, ordered
// by StartedAt ascending.
func (s *Store) ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	ids, err := s.client.SMembers(ctx, runIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: list runs smembers: %w", err)
	}

	var runs []*workflow.Run
	for _, rID := range ids {
		vals, getErr := s.client.HGetAll(ctx, runKey(rID)).Result()
		if getErr != nil || len(vals) == 0 {
			continue
		}
		r, convErr := mapToRun(vals)
		if convErr != nil {
			continue
		}
		if opts.State != "" && r.State != opts.State {
			continue
		}
		runs = append(runs, r)
	}

	sort.Slice(runs, func(i, k int) bool {
		return runs[i].StartedAt.Before(runs[k].StartedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(runs) {
			return nil, nil
		}
		runs = runs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(runs) {
		runs = runs[:opts.Limit]
	}
	return runs, nil
}

// SaveDefinition persists a workflow definition as its JSON document.
func (s *Store) SaveDefinition(ctx context.Context, def *workflow.Definition) error {
	doc, err := def.MarshalJSON()
	if err != nil {
		return fmt.Errorf("symphony/redis: encode definition %s: %w", def.ID(), err)
	}
	if err := s.client.Set(ctx, definitionKey(def.ID().String()), doc, 0).Err(); err != nil {
		return fmt.Errorf("symphony/redis: save definition: %w", err)
	}
	return nil
}

// GetDefinition retrieves a workflow definition by ID.
func (s *Store) GetDefinition(ctx context.Context, defID id.WorkflowID) (*workflow.Definition, error) {
	doc, err := s.client.Get(ctx, definitionKey(defID.String())).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, symphony.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("symphony/redis: get definition: %w", err)
	}

	var def workflow.Definition
	if err := def.UnmarshalJSON([]byte(doc)); err != nil {
		return nil, fmt.Errorf("symphony/redis: decode definition: %w", err)
	}
	return &def, nil
}

// ── helpers ──

func runToMap(r *workflow.Run) (map[string]any, error) {
	results, err := encodeResults(r.Results)
	if err != nil {
		return nil, err
	}

	m := map[string]any{
		"id":            r.ID.String(),
		"definition_id": r.DefinitionID.String(),
		"state":         string(r.State),
		"results":       results,
		"error":         r.Error,
		"started_at":    r.StartedAt.Format(time.RFC3339Nano),
		"created_at":    r.Entity.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    r.Entity.UpdatedAt.Format(time.RFC3339Nano),
	}
	if r.CompletedAt != nil {
		m["completed_at"] = r.CompletedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func mapToRun(m map[string]string) (*workflow.Run, error) {
	rID, err := id.ParseRunID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: parse run id: %w", err)
	}
	defID, err := id.ParseWorkflowID(m["definition_id"])
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: parse definition id: %w", err)
	}
	results, err := decodeResults([]byte(m["results"]))
	if err != nil {
		return nil, err
	}

	startedAt, _ := time.Parse(time.RFC3339Nano, m["started_at"])
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])

	r := &workflow.Run{
		Entity: symphony.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:           rID,
		DefinitionID: defID,
		State:        workflow.RunState(m["state"]),
		Results:      results,
		Error:        m["error"],
		StartedAt:    startedAt,
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v)
		r.CompletedAt = &t
	}
	return r, nil
}

func encodeResults(results map[string]*workflow.Result) ([]byte, error) {
	models := make(map[string]resultModel, len(results))
	for stepID, res := range results {
		models[stepID] = resultModel{
			StepID:      res.StepID,
			Success:     res.Success,
			Output:      res.Output,
			Error:       res.Error,
			ExecutionID: res.ExecutionID,
			CompletedAt: res.CompletedAt,
		}
	}
	data, err := msgpack.Marshal(models)
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: encode results: %w", err)
	}
	return data, nil
}

func decodeResults(data []byte) (map[string]*workflow.Result, error) {
	results := make(map[string]*workflow.Result)
	if len(data) == 0 {
		return results, nil
	}

	var models map[string]resultModel
	if err := msgpack.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("symphony/redis: decode results: %w", err)
	}
	for stepID, m := range models {
		results[stepID] = &workflow.Result{
			StepID:      m.StepID,
			Success:     m.Success,
			Output:      m.Output,
			Error:       m.Error,
			ExecutionID: m.ExecutionID,
			CompletedAt: m.CompletedAt,
		}
	}
	return results, nil
}
