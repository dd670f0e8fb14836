package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// CreateRun persists a new workflow run.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	m, err := toRunModel(run)
	if err != nil {
		return err
	}
	if _, err := s.db.Collection(colRuns).InsertOne(ctx, m); err != nil {
		return fmt.Errorf("symphony/mongo: create run: %w", err)
	}
	return nil
}

// GetRun retrieves a workflow run by ID.
func (s *Store) GetRun(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	var m runModel
	err := s.db.Collection(colRuns).FindOne(ctx, bson.M{"_id": runID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, symphony.ErrRunNotFound
		}
		return nil, fmt.Errorf("symphony/mongo: get run: %w", err)
	}
	return fromRunModel(&m)
}

// UpdateRun persists changes to an existing workflow run.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	m, err := toRunModel(run)
	if err != nil {
		return err
	}
	m.UpdatedAt = now()

	res, err := s.db.Collection(colRuns).ReplaceOne(ctx, bson.M{"_id": m.ID}, m)
	if err != nil {
		return fmt.Errorf("symphony/mongo: update run: %w", err)
	}
	if res.MatchedCount == 0 {
		return symphony.ErrRunNotFound
	}
	return nil
}

// ListRuns returns workflow runs matching the given options, ordered
// by StartedAt ascending.
func (s *Store) ListRuns(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Run, error) {
	filter := bson.M{}
	if opts.State != "" {
		filter["state"] = string(opts.State)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "started_at", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colRuns).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("symphony/mongo: list runs: %w", err)
	}
	defer cursor.Close(ctx)

	var models []runModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("symphony/mongo: list runs decode: %w", err)
	}

	runs := make([]*workflow.Run, 0, len(models))
	for i := range models {
		r, convErr := fromRunModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("symphony/mongo: list runs convert: %w", convErr)
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// SaveDefinition persists a workflow definition as its JSON document.
func (s *Store) SaveDefinition(ctx context.Context, def *workflow.Definition) error {
	doc, err := def.MarshalJSON()
	if err != nil {
		return fmt.Errorf("symphony/mongo: encode definition %s: %w", def.ID(), err)
	}

	t := now()
	update := bson.M{
		"$set": bson.M{
			"name":       def.Name(),
			"document":   doc,
			"updated_at": t,
		},
		"$setOnInsert": bson.M{
			"created_at": t,
		},
	}
	opts := options.UpdateOne().SetUpsert(true)
	_, err = s.db.Collection(colDefinitions).UpdateOne(ctx, bson.M{"_id": def.ID().String()}, update, opts)
	if err != nil {
		return fmt.Errorf("symphony/mongo: save definition: %w", err)
	}
	return nil
}

// GetDefinition retrieves a workflow definition by ID.
func (s *Store) GetDefinition(ctx context.Context, defID id.WorkflowID) (*workflow.Definition, error) {
	var m definitionModel
	err := s.db.Collection(colDefinitions).FindOne(ctx, bson.M{"_id": defID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, symphony.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("symphony/mongo: get definition: %w", err)
	}

	var def workflow.Definition
	if err := def.UnmarshalJSON(m.Document); err != nil {
		return nil, fmt.Errorf("symphony/mongo: decode definition: %w", err)
	}
	return &def, nil
}
