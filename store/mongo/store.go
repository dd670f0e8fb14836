package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Collection name constants.
const (
	colRuns        = "symphony_runs"
	colDefinitions = "symphony_definitions"
	colCheckpoints = "symphony_checkpoints"
)

// Compile-time interface checks.
var (
	_ workflow.Store   = (*Store)(nil)
	_ checkpoint.Store = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store. The caller owns
// the client lifecycle; Store never disconnects it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a new MongoDB store on the given database. The caller
// owns the underlying client -- the Store will not disconnect it on
// Close().
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Database returns the underlying *mongo.Database for advanced usage.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// Migrate creates indexes for all symphony collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongod.IndexModel{
		colRuns: {
			{Keys: bson.D{{Key: "state", Value: 1}}},
			{Keys: bson.D{{Key: "started_at", Value: 1}}},
			{Keys: bson.D{{Key: "definition_id", Value: 1}}},
		},
		colCheckpoints: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("symphony/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments reports whether err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}
