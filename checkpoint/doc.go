// Package checkpoint implements durable snapshots of workflow run
// state and their two-phase restoration.
//
// A Checkpoint is a self-sufficient bundle: the run's state as a set
// of type-tagged entity records, the flattened run context, and a
// reference to the workflow definition identifier. Relational fields
// are serialized as identifiers only — never as embedded copies — so
// entities that reference each other (including cyclically) can be
// rebuilt.
//
// Restoration happens in two phases. The creation phase reconstructs
// every entity from its scalar fields, leaving relations as raw
// identifiers in an arena keyed by kind and ID. The connection phase
// resolves each identifier against the fully created entity set and
// replaces it with a live reference; an identifier absent from the
// bundle fails the restore with symphony.ErrDanglingReference rather
// than silently dropping the relation.
//
// The Manager also owns the trigger policy deciding when the engine
// snapshots: run start, every N steps, on error, and on completion.
package checkpoint
