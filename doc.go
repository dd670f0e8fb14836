// Package symphony provides a workflow orchestration engine for
// multi-step, agent-driven processes. Workflows are declarative graphs
// of typed steps (task, conditional, parallel, loop) executed against a
// shared context, with crash-resilient checkpointing and resumption.
//
// Symphony is designed as a library, not a service. Import it,
// configure a store and a task executor, build a workflow definition,
// and hand it to the engine.
//
// # Quick Start
//
//	def, _ := workflow.New("triage").
//	    WithStep(workflow.NewTask("classify", "classifier-agent",
//	        map[string]any{"text": "{{input.text}}"}))
//
//	eng, _ := engine.New(
//	    engine.WithStore(memory.New()),
//	    engine.WithExecutor(agents),
//	)
//	run, err := eng.Execute(ctx, def, map[string]any{
//	    "input.text": "hello",
//	})
//
// # Architecture
//
// Each subsystem owns its contracts: the workflow package defines
// steps, definitions, runs, and the run store interface; the
// checkpoint package defines snapshot bundles and the checkpoint
// store; store backends (memory, redis, postgres, mongo) implement
// all of them. The engine walks a definition in dependency order,
// rendering step inputs against the shared state.Context and
// dispatching tasks to an external executor.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package symphony
