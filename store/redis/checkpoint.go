package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
)

// bundleModel is the msgpack form of a checkpoint payload (entity
// records plus the flattened context) stored inside the hash.
type bundleModel struct {
	Records []recordModel  `msgpack:"records"`
	Context map[string]any `msgpack:"context"`
}

type recordModel struct {
	Kind string `msgpack:"kind"`
	ID   string `msgpack:"id"`
	Data []byte `msgpack:"data"`
}

// SaveCheckpoint persists a checkpoint bundle.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	cpID := cp.ID.String()
	bundle, err := encodeBundle(cp)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, checkpointKey(cpID),
		"id", cpID,
		"name", cp.Name,
		"definition_id", cp.DefinitionID.String(),
		"created_at", cp.CreatedAt.Format(time.RFC3339Nano),
		"bundle", bundle,
	)
	pipe.SAdd(ctx, checkpointIDsKey, cpID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("symphony/redis: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint bundle by ID.
func (s *Store) GetCheckpoint(ctx context.Context, cpID id.CheckpointID) (*checkpoint.Checkpoint, error) {
	vals, err := s.client.HGetAll(ctx, checkpointKey(cpID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: get checkpoint: %w", err)
	}
	if len(vals) == 0 {
		return nil, symphony.ErrCheckpointNotFound
	}
	return mapToCheckpoint(vals)
}

// ListCheckpoints returns metadata for all stored checkpoints, ordered
// by CreatedAt ascending.
func (s *Store) ListCheckpoints(ctx context.Context) ([]*checkpoint.Metadata, error) {
	ids, err := s.client.SMembers(ctx, checkpointIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: list checkpoints: %w", err)
	}

	metas := make([]*checkpoint.Metadata, 0, len(ids))
	for _, cpID := range ids {
		vals, getErr := s.client.HMGet(ctx, checkpointKey(cpID),
			"id", "name", "definition_id", "created_at").Result()
		if getErr != nil || vals[0] == nil {
			continue
		}
		meta, convErr := sliceToMetadata(vals)
		if convErr != nil {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, k int) bool {
		return metas[i].CreatedAt.Before(metas[k].CreatedAt)
	})
	return metas, nil
}

// DeleteCheckpoint removes a checkpoint bundle by ID.
func (s *Store) DeleteCheckpoint(ctx context.Context, cpID id.CheckpointID) error {
	key := checkpointKey(cpID.String())
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("symphony/redis: delete checkpoint: %w", err)
	}
	if deleted == 0 {
		return symphony.ErrCheckpointNotFound
	}
	if err := s.client.SRem(ctx, checkpointIDsKey, cpID.String()).Err(); err != nil {
		return fmt.Errorf("symphony/redis: delete checkpoint index: %w", err)
	}
	return nil
}

// ── helpers ──

func encodeBundle(cp *checkpoint.Checkpoint) ([]byte, error) {
	records := make([]recordModel, len(cp.RunState))
	for i, rec := range cp.RunState {
		records[i] = recordModel{Kind: rec.Kind, ID: rec.ID, Data: rec.Data}
	}
	data, err := msgpack.Marshal(bundleModel{Records: records, Context: cp.Context})
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: encode bundle %s: %w", cp.ID, err)
	}
	return data, nil
}

func mapToCheckpoint(m map[string]string) (*checkpoint.Checkpoint, error) {
	cpID, err := id.ParseCheckpointID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: parse checkpoint id: %w", err)
	}
	defID, err := id.ParseWorkflowID(m["definition_id"])
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: parse definition id: %w", err)
	}

	var bundle bundleModel
	if err := msgpack.Unmarshal([]byte(m["bundle"]), &bundle); err != nil {
		return nil, fmt.Errorf("symphony/redis: decode bundle: %w", err)
	}
	records := make([]checkpoint.Record, len(bundle.Records))
	for i, rec := range bundle.Records {
		records[i] = checkpoint.Record{Kind: rec.Kind, ID: rec.ID, Data: json.RawMessage(rec.Data)}
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])

	return &checkpoint.Checkpoint{
		ID:           cpID,
		Name:         m["name"],
		CreatedAt:    createdAt,
		DefinitionID: defID,
		RunState:     records,
		Context:      bundle.Context,
	}, nil
}

func sliceToMetadata(vals []any) (*checkpoint.Metadata, error) {
	strAt := func(i int) string {
		if s, ok := vals[i].(string); ok {
			return s
		}
		return ""
	}

	cpID, err := id.ParseCheckpointID(strAt(0))
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: parse checkpoint id: %w", err)
	}
	defID, err := id.ParseWorkflowID(strAt(2))
	if err != nil {
		return nil, fmt.Errorf("symphony/redis: parse definition id: %w", err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, strAt(3))

	return &checkpoint.Metadata{
		ID:           cpID,
		Name:         strAt(1),
		CreatedAt:    createdAt,
		DefinitionID: defID,
	}, nil
}
