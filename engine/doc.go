// Package engine executes workflow definitions. It walks steps in
// dependency order, renders their inputs against the shared run
// context, dispatches per step kind, and persists the run after every
// step so execution survives a crash.
//
// The engine sits above all subsystem packages: workflow owns the
// data model and state derivation, executor owns the agent calls,
// checkpoint owns durable snapshots, and ext owns lifecycle
// notifications. The engine only wires them together.
//
// A step failure never panics and never cancels in-flight sibling
// work; it becomes a failed Result on the run. By default the run
// halts after the failing step; with Config.ContinueOnError the
// engine keeps dispatching steps that do not depend on a failed one.
package engine
