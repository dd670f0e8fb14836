// Package mongo implements store.Store using MongoDB via the official
// driver. Structured payloads (definition documents, step results,
// checkpoint bundles) are stored as JSON blobs inside bson documents:
// context keys are dotted paths, which MongoDB map keys cannot carry.
// Migrate creates the collection indexes.
package mongo
