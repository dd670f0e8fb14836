package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/executor"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/ext"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/id"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/state"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

// Engine executes workflow definitions against a store and a task
// executor. Create one with New; a store and an executor are required,
// everything else is optional.
type Engine struct {
	store       workflow.Store
	exec        executor.Executor
	checkpoints *checkpoint.Manager
	extensions  *ext.Registry
	logger      *slog.Logger
	config      Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the run and definition store.
func WithStore(s workflow.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithExecutor sets the task executor.
func WithExecutor(x executor.Executor) Option {
	return func(e *Engine) { e.exec = x }
}

// WithCheckpoints enables durable snapshots through the given manager.
func WithCheckpoints(m *checkpoint.Manager) Option {
	return func(e *Engine) { e.checkpoints = m }
}

// WithExtensions sets the extension registry the engine emits through.
func WithExtensions(r *ext.Registry) Option {
	return func(e *Engine) { e.extensions = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithConfig sets the execution policy.
func WithConfig(c Config) Option {
	return func(e *Engine) { e.config = c }
}

// New creates an engine. Fails if no store or no executor is
// configured.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, symphony.ErrNoStore
	}
	if e.exec == nil {
		return nil, symphony.ErrNoExecutor
	}
	if e.extensions == nil {
		e.extensions = ext.NewRegistry(e.logger)
	}
	return e, nil
}

// Extensions returns the engine's extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// Execute validates and persists the definition, creates a pending
// run seeded with the given input values (keys may be dotted paths),
// and drives it to completion, failure, or pause.
//
// The returned error covers infrastructure problems only; a workflow
// whose steps fail returns a non-nil run in state failed and a nil
// error.
func (e *Engine) Execute(ctx context.Context, def *workflow.Definition, input map[string]any) (*workflow.Run, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.SaveDefinition(ctx, def); err != nil {
		return nil, fmt.Errorf("engine: save definition %s: %w", def.ID(), err)
	}

	run := workflow.NewRun(def.ID())
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("engine: create run %s: %w", run.ID, err)
	}

	st := state.New()
	for k, v := range input {
		st.Set(k, v)
	}
	return e.run(ctx, def, run, st)
}

// Resume continues a stored run from its recorded results. Steps with
// a successful result are skipped; everything else executes again.
//
// The rebuilt context contains the recorded step outputs but not the
// original Execute input values; runs whose later steps read the
// initial input should resume from a checkpoint (RestoreAndResume),
// which preserves the full context.
func (e *Engine) Resume(ctx context.Context, runID id.RunID) (*workflow.Run, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.State.Terminal() {
		return run, fmt.Errorf("%w: cannot resume %s run %s", symphony.ErrInvalidState, run.State, runID)
	}

	def, err := e.store.GetDefinition(ctx, run.DefinitionID)
	if err != nil {
		return nil, err
	}

	st := state.New()
	for _, res := range run.Results {
		recordResult(st, res)
	}
	return e.run(ctx, def, run, st)
}

// ResumeAll continues every paused or interrupted (still marked
// running) run in the store. Failures to resume individual runs are
// joined; the remaining runs still execute.
func (e *Engine) ResumeAll(ctx context.Context) ([]*workflow.Run, error) {
	var runs []*workflow.Run
	var errs []error

	for _, s := range []workflow.RunState{workflow.RunStatePaused, workflow.RunStateRunning} {
		listed, err := e.store.ListRuns(ctx, workflow.ListOpts{State: s})
		if err != nil {
			return runs, err
		}
		for _, stale := range listed {
			run, err := e.Resume(ctx, stale.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("resume %s: %w", stale.ID, err))
				continue
			}
			runs = append(runs, run)
		}
	}
	return runs, errors.Join(errs...)
}

// RestoreAndResume rebuilds a run and its full context from a
// checkpoint, persists the restored run, and continues execution.
func (e *Engine) RestoreAndResume(ctx context.Context, cpID id.CheckpointID) (*workflow.Run, error) {
	if e.checkpoints == nil {
		return nil, fmt.Errorf("engine: no checkpoint manager configured")
	}

	run, st, err := e.checkpoints.Restore(ctx, cpID)
	if err != nil {
		return nil, err
	}
	e.extensions.EmitCheckpointRestored(ctx, run, &checkpoint.Metadata{ID: cpID, DefinitionID: run.DefinitionID})

	def, err := e.store.GetDefinition(ctx, run.DefinitionID)
	if err != nil {
		return nil, err
	}

	// After a crash the restored run may not exist in the store yet.
	if _, err := e.store.GetRun(ctx, run.ID); errors.Is(err, symphony.ErrRunNotFound) {
		if err := e.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("engine: create restored run %s: %w", run.ID, err)
		}
	} else if err != nil {
		return nil, err
	}

	if run.State.Terminal() {
		return run, fmt.Errorf("%w: cannot resume %s run %s", symphony.ErrInvalidState, run.State, run.ID)
	}
	return e.run(ctx, def, run, st)
}

// Pause requests suspension of a run. The engine observes the stored
// state before each dispatch, lets in-flight steps finish, and stops
// starting new ones.
func (e *Engine) Pause(ctx context.Context, runID id.RunID) error {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	tr := &workflow.Tracker{}
	if err := tr.Pause(run); err != nil {
		return err
	}
	return e.store.UpdateRun(ctx, run)
}

// run drives a prepared run to completion, failure, or pause. All
// step-level errors become failed Results; the returned error is
// reserved for infrastructure failures.
func (e *Engine) run(ctx context.Context, def *workflow.Definition, run *workflow.Run, st *state.Context) (*workflow.Run, error) {
	order, err := topoOrder(def)
	if err != nil {
		return nil, err
	}
	tracker := workflow.NewTracker(def)

	if run.State == workflow.RunStatePaused {
		if err := tracker.Resume(run); err != nil {
			return nil, err
		}
	} else {
		run.State = workflow.RunStateRunning
		run.Touch()
	}
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("engine: update run %s: %w", run.ID, err)
	}

	started := time.Now()
	e.extensions.EmitWorkflowStarted(ctx, run)
	e.logger.Info("workflow started",
		slog.String("run_id", run.ID.String()),
		slog.String("workflow", def.Name()),
		slog.Int("steps", len(order)),
	)

	e.snapshot(ctx, run, st, checkpoint.TriggerStart, "start", 0)

	stepsSinceSnapshot := 0
	blocked := make(map[string]bool)

halted:
	for _, step := range order {
		if prev, done := run.Results[step.ID]; done && prev.Success {
			recordResult(st, prev)
			continue
		}

		// A dependent of a failed or skipped step never runs.
		if e.config.ContinueOnError {
			for _, dep := range step.DependsOn {
				if blocked[dep] {
					blocked[step.ID] = true
					continue halted
				}
			}
		}

		// Pause requests arrive through the store.
		paused, err := e.pauseRequested(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		if paused {
			return e.pause(ctx, run, st)
		}

		stepStart := time.Now()
		res := e.dispatch(ctx, step, st)
		tracker.Record(run, res)

		// A pause requested while the step ran must survive the
		// upcoming UpdateRun, which would otherwise overwrite it.
		if run.State == workflow.RunStateRunning {
			paused, err := e.pauseRequested(ctx, run.ID)
			if err != nil {
				return nil, err
			}
			if paused {
				return e.pause(ctx, run, st)
			}
		}

		if err := e.store.UpdateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("engine: update run %s: %w", run.ID, err)
		}

		if !res.Success {
			e.extensions.EmitStepFailed(ctx, run, res, errors.New(res.Error))
			e.logger.Warn("step failed",
				slog.String("run_id", run.ID.String()),
				slog.String("step", step.ID),
				slog.String("error", res.Error),
			)
			e.snapshot(ctx, run, st, checkpoint.TriggerError, "error", 0)
			if !e.config.ContinueOnError {
				break
			}
			blocked[step.ID] = true
			continue
		}

		e.extensions.EmitStepCompleted(ctx, run, res, time.Since(stepStart))
		stepsSinceSnapshot++
		if e.shouldSnapshot(checkpoint.TriggerStep, stepsSinceSnapshot) {
			e.snapshot(ctx, run, st, checkpoint.TriggerStep, "interval", stepsSinceSnapshot)
			stepsSinceSnapshot = 0
		}
	}

	tracker.Finalize(run)
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("engine: update run %s: %w", run.ID, err)
	}
	e.snapshot(ctx, run, st, checkpoint.TriggerCompletion, "completion", 0)

	switch run.State {
	case workflow.RunStateCompleted:
		e.extensions.EmitWorkflowCompleted(ctx, run, time.Since(started))
		e.logger.Info("workflow completed",
			slog.String("run_id", run.ID.String()),
			slog.Duration("elapsed", time.Since(started)),
		)
	case workflow.RunStateFailed:
		e.extensions.EmitWorkflowFailed(ctx, run, errors.New(run.Error))
		e.logger.Warn("workflow failed",
			slog.String("run_id", run.ID.String()),
			slog.String("error", run.Error),
		)
	}
	return run, nil
}

// dispatch executes one step of any kind and returns its result. It
// also writes the outcome into the context: step.<id>.result on
// success, step.<id>.error on failure. Nested steps (branches,
// parallel children, loop bodies) pass through here too, so each gets
// its own context entry; the branch a conditional does not choose
// leaves none.
func (e *Engine) dispatch(ctx context.Context, step *workflow.Step, st *state.Context) *workflow.Result {
	var res *workflow.Result
	switch step.Kind {
	case workflow.KindTask:
		res = e.dispatchTask(ctx, step, st)
	case workflow.KindConditional:
		res = e.dispatchConditional(ctx, step, st)
	case workflow.KindParallel:
		res = e.dispatchParallel(ctx, step, st)
	case workflow.KindLoop:
		res = e.dispatchLoop(ctx, step, st)
	default:
		res = workflow.NewFailure(step.ID, fmt.Errorf("%w: unknown kind %q", symphony.ErrInvalidStep, step.Kind))
	}

	recordResult(st, res)
	return res
}

// dispatchTask renders the step input against the context and makes
// exactly one executor call. Retries, if any, live inside the
// executor.
func (e *Engine) dispatchTask(ctx context.Context, step *workflow.Step, st *state.Context) *workflow.Result {
	input, err := st.RenderValue(step.Input)
	if err != nil {
		return workflow.NewFailure(step.ID, err)
	}

	out, err := e.exec.Execute(ctx, step.Target, input)
	if err != nil {
		return workflow.NewFailure(step.ID, fmt.Errorf("%w: target %q: %s", symphony.ErrTaskExecution, step.Target, err))
	}
	return workflow.NewResult(step.ID, out.Output, out.ExecutionID)
}

// dispatchConditional evaluates the predicate and executes exactly one
// branch. A false predicate with no else-branch succeeds with no
// output.
func (e *Engine) dispatchConditional(ctx context.Context, step *workflow.Step, st *state.Context) *workflow.Result {
	cond, err := st.Eval(step.Condition)
	if err != nil {
		return workflow.NewFailure(step.ID, err)
	}

	branch := step.Then
	if !cond {
		branch = step.Else
	}
	if branch == nil {
		return workflow.NewResult(step.ID, nil, "")
	}

	branchRes := e.dispatch(ctx, branch, st)
	if !branchRes.Success {
		return workflow.NewFailure(step.ID, fmt.Errorf("branch %s: %s", branchRes.StepID, branchRes.Error))
	}
	return workflow.NewResult(step.ID, branchRes.Output, "")
}

// dispatchParallel runs all children concurrently and waits for every
// one of them; a failing child never cancels its siblings, so each
// child's result always lands in the context. The step's output is
// the children's outputs in declaration order.
func (e *Engine) dispatchParallel(ctx context.Context, step *workflow.Step, st *state.Context) *workflow.Result {
	results := make([]*workflow.Result, len(step.Children))

	var g errgroup.Group
	for i, child := range step.Children {
		g.Go(func() error {
			results[i] = e.dispatch(ctx, child, st)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // children report failure through results

	outputs := make([]any, len(results))
	var failed []string
	for i, childRes := range results {
		if !childRes.Success {
			failed = append(failed, childRes.StepID)
			continue
		}
		outputs[i] = childRes.Output
	}
	if len(failed) > 0 {
		return workflow.NewFailure(step.ID, fmt.Errorf("children failed: %v", failed))
	}
	return workflow.NewResult(step.ID, outputs, "")
}

// dispatchLoop repeats the body while the predicate holds, bounded by
// MaxIterations. The body always runs at least once; the predicate is
// checked after each pass. The current iteration number (1-based) is
// exposed at step.<id>.iteration. The loop's output is the last body
// output.
func (e *Engine) dispatchLoop(ctx context.Context, step *workflow.Step, st *state.Context) *workflow.Result {
	var last any
	for i := 1; i <= step.MaxIterations; i++ {
		st.Set("step."+step.ID+".iteration", i)

		bodyRes := e.dispatch(ctx, step.Body, st)
		if !bodyRes.Success {
			return workflow.NewFailure(step.ID, fmt.Errorf("iteration %d: %s", i, bodyRes.Error))
		}
		last = bodyRes.Output

		cont, err := st.Eval(step.While)
		if err != nil {
			return workflow.NewFailure(step.ID, err)
		}
		if !cont {
			return workflow.NewResult(step.ID, last, "")
		}
	}
	return workflow.NewFailure(step.ID, fmt.Errorf("%w: %d iterations", symphony.ErrLoopLimitExceeded, step.MaxIterations))
}

// pauseRequested reports whether the stored run has been switched to
// paused by another caller.
func (e *Engine) pauseRequested(ctx context.Context, runID id.RunID) (bool, error) {
	stored, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("engine: read run %s: %w", runID, err)
	}
	return stored.State == workflow.RunStatePaused, nil
}

// pause settles a pause request: the run keeps its recorded results,
// switches to paused, and gets a final snapshot if enabled.
func (e *Engine) pause(ctx context.Context, run *workflow.Run, st *state.Context) (*workflow.Run, error) {
	run.State = workflow.RunStatePaused
	run.Touch()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("engine: update run %s: %w", run.ID, err)
	}
	e.extensions.EmitWorkflowPaused(ctx, run)
	e.snapshot(ctx, run, st, checkpoint.TriggerCompletion, "pause", 0)
	e.logger.Info("workflow paused", slog.String("run_id", run.ID.String()))
	return run, nil
}

// shouldSnapshot reports whether a checkpoint manager is configured
// and its trigger policy fires.
func (e *Engine) shouldSnapshot(trigger checkpoint.Trigger, stepsSince int) bool {
	return e.checkpoints != nil && e.checkpoints.ShouldSnapshot(trigger, stepsSince)
}

// snapshot takes a checkpoint if the trigger policy asks for one.
// Snapshot failures are logged, not fatal: losing a checkpoint must
// not fail the run.
func (e *Engine) snapshot(ctx context.Context, run *workflow.Run, st *state.Context, trigger checkpoint.Trigger, name string, stepsSince int) {
	if !e.shouldSnapshot(trigger, stepsSince) {
		return
	}
	cp, err := e.checkpoints.Snapshot(ctx, run, st, name)
	if err != nil {
		e.logger.Error("checkpoint failed",
			slog.String("run_id", run.ID.String()),
			slog.String("trigger", string(trigger)),
			slog.String("error", err.Error()),
		)
		return
	}
	e.extensions.EmitCheckpointSaved(ctx, run, cp.Metadata())
}

// recordResult writes a step outcome into the run context.
func recordResult(st *state.Context, res *workflow.Result) {
	if res.Success {
		st.Set("step."+res.StepID+".result", res.Output)
	} else {
		st.Set("step."+res.StepID+".error", res.Error)
	}
}
