// Package workflow defines the declarative workflow model: typed steps,
// immutable definitions, step results, runs, and the run store
// interface.
//
// A workflow is an ordered graph of steps. Each step is one of four
// kinds:
//
//   - task — invokes an external executor target with a templated input
//   - conditional — evaluates a predicate and executes one branch
//   - parallel — dispatches child steps concurrently
//   - loop — repeats a body step while a predicate holds, up to a
//     mandatory iteration bound
//
// Steps form a closed tagged union: a single Step struct with a Kind
// discriminator, dispatched by an exhaustive switch in the engine.
//
// # Building a Definition
//
//	def, err := workflow.New("triage").
//	    WithStep(workflow.NewTask("classify", "classifier",
//	        map[string]any{"text": "{{input.text}}"}))
//
// Definitions are immutable: WithStep and friends return a new
// Definition, validating step identifier uniqueness and that
// dependencies only reference earlier steps.
//
// # Run State Machine
//
// A [Run] moves through these states:
//
//	pending → running → completed
//	                  → failed
//	                  → paused → running
//
// The [Tracker] derives completed/failed/running from recorded step
// results; paused is an explicit external transition.
package workflow
