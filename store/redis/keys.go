package redis

// Redis key naming conventions for Symphony data.
// All keys are prefixed with "symphony:" to avoid collisions.

const keyPrefix = "symphony:"

// runKey returns the key for a run entity: symphony:run:{id}
func runKey(id string) string { return keyPrefix + "run:" + id }

// runIDsKey is the Set tracking all run IDs for enumeration.
const runIDsKey = keyPrefix + "run_ids"

// definitionKey returns the key for a definition: symphony:definition:{id}
func definitionKey(id string) string { return keyPrefix + "definition:" + id }

// checkpointKey returns the key for a checkpoint bundle: symphony:checkpoint:{id}
func checkpointKey(id string) string { return keyPrefix + "checkpoint:" + id }

// checkpointIDsKey is the Set tracking all checkpoint IDs for enumeration.
const checkpointIDsKey = keyPrefix + "checkpoint_ids"
