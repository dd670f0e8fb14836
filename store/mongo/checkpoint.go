package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
)

// SaveCheckpoint persists a checkpoint bundle. Saving the same ID again
// replaces the stored bundle.
func (s *Store) SaveCheckpoint(ctx context.Context, cp *checkpoint.Checkpoint) error {
	m, err := toCheckpointModel(cp)
	if err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	_, err = s.db.Collection(colCheckpoints).ReplaceOne(ctx, bson.M{"_id": m.ID}, m, opts)
	if err != nil {
		return fmt.Errorf("symphony/mongo: save checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint retrieves a checkpoint bundle by ID.
func (s *Store) GetCheckpoint(ctx context.Context, cpID id.CheckpointID) (*checkpoint.Checkpoint, error) {
	var m checkpointModel
	err := s.db.Collection(colCheckpoints).FindOne(ctx, bson.M{"_id": cpID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, symphony.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("symphony/mongo: get checkpoint: %w", err)
	}
	return fromCheckpointModel(&m)
}

// ListCheckpoints returns metadata for all stored checkpoints, ordered
// by CreatedAt ascending.
func (s *Store) ListCheckpoints(ctx context.Context) ([]*checkpoint.Metadata, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetProjection(bson.M{"run_state": 0, "context": 0})

	cursor, err := s.db.Collection(colCheckpoints).Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: list checkpoints: %w", err)
	}
	defer cursor.Close(ctx)

	var models []checkpointModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("symphony/mongo: list checkpoints decode: %w", err)
	}

	metas := make([]*checkpoint.Metadata, 0, len(models))
	for i := range models {
		cpID, parseErr := id.ParseCheckpointID(models[i].ID)
		if parseErr != nil {
			return nil, fmt.Errorf("symphony/mongo: parse checkpoint id %q: %w", models[i].ID, parseErr)
		}
		defID, parseErr := id.ParseWorkflowID(models[i].DefinitionID)
		if parseErr != nil {
			return nil, fmt.Errorf("symphony/mongo: parse definition id %q: %w", models[i].DefinitionID, parseErr)
		}
		metas = append(metas, &checkpoint.Metadata{
			ID:           cpID,
			Name:         models[i].Name,
			DefinitionID: defID,
			CreatedAt:    models[i].CreatedAt,
		})
	}
	return metas, nil
}

// DeleteCheckpoint removes a checkpoint bundle by ID.
func (s *Store) DeleteCheckpoint(ctx context.Context, cpID id.CheckpointID) error {
	res, err := s.db.Collection(colCheckpoints).DeleteOne(ctx, bson.M{"_id": cpID.String()})
	if err != nil {
		return fmt.Errorf("symphony/mongo: delete checkpoint: %w", err)
	}
	if res.DeletedCount == 0 {
		return symphony.ErrCheckpointNotFound
	}
	return nil
}
