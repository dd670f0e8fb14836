// Package postgres implements store.Store using PostgreSQL via pgx/v5.
// Structured payloads (definition documents, step results, checkpoint
// bundles) are stored as JSONB. Migrate applies the embedded SQL
// migrations in filename order.
package postgres
