// Package executor defines the contract between the engine and the
// external agents that perform task work.
//
// The engine treats an Executor as a black box: one call per task
// dispatch, with the fully rendered input. Cross-cutting behavior
// (retries, throttling) composes as wrappers around an inner Executor,
// so the engine itself never retries.
package executor

import (
	"context"
	"fmt"
	"sync"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
)

// Result is what an agent call produced. ExecutionID is the external
// system's correlation identifier, carried through to the step result
// for tracing.
type Result struct {
	Output      any
	ExecutionID string
}

// Executor performs one unit of agent work. Implementations must be
// safe for concurrent use; parallel steps dispatch sibling tasks
// simultaneously.
type Executor interface {
	// Execute runs the named target with the given input and returns
	// its output. A returned error marks the step failed; it does not
	// abort sibling steps.
	Execute(ctx context.Context, target string, input any) (*Result, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, target string, input any) (*Result, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, target string, input any) (*Result, error) {
	return f(ctx, target, input)
}

// Registry routes targets to named executors. Register agents by name,
// then hand the registry to the engine as its single Executor.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Executor)}
}

// Register binds a target name to an executor, replacing any existing
// binding.
func (r *Registry) Register(target string, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[target] = exec
}

// RegisterFunc binds a target name to a plain function.
func (r *Registry) RegisterFunc(target string, fn Func) {
	r.Register(target, fn)
}

// Execute dispatches to the executor registered for target. Returns
// symphony.ErrUnknownTarget if no executor is bound to the name.
func (r *Registry) Execute(ctx context.Context, target string, input any) (*Result, error) {
	r.mu.RLock()
	exec, ok := r.targets[target]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", symphony.ErrUnknownTarget, target)
	}
	return exec.Execute(ctx, target, input)
}
