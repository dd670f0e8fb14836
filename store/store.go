// Package store defines the composite persistence interface for
// Symphony.
//
// Each subsystem owns its store contract (workflow.Store for runs and
// definitions, checkpoint.Store for snapshot bundles); a single
// backend implements all of them plus the lifecycle methods here.
// Backends live in the subpackages memory, redis, postgres, and mongo.
package store

import (
	"context"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Store is the full persistence contract: every subsystem store plus
// lifecycle operations.
type Store interface {
	workflow.Store
	checkpoint.Store

	// Migrate applies any pending schema migrations.
	Migrate(ctx context.Context) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
