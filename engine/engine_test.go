package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/checkpoint"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/engine"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/executor"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/store/memory"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/workflow"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingTarget returns an executor func that counts invocations and
// delegates to fn.
func countingTarget(n *atomic.Int32, fn func(input any) (any, error)) executor.Func {
	return func(_ context.Context, _ string, input any) (*executor.Result, error) {
		n.Add(1)
		out, err := fn(input)
		if err != nil {
			return nil, err
		}
		return &executor.Result{Output: out}, nil
	}
}

func echoTarget(n *atomic.Int32) executor.Func {
	return countingTarget(n, func(input any) (any, error) { return input, nil })
}

func newEngine(t *testing.T, st *memory.Store, reg *executor.Registry, opts ...engine.Option) *engine.Engine {
	t.Helper()

	opts = append([]engine.Option{
		engine.WithStore(st),
		engine.WithExecutor(reg),
		engine.WithLogger(discardLogger()),
	}, opts...)
	eng, err := engine.New(opts...)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return eng
}

func mustSteps(t *testing.T, name string, steps ...*workflow.Step) *workflow.Definition {
	t.Helper()

	def, err := workflow.New(name).WithSteps(steps...)
	if err != nil {
		t.Fatalf("build definition: %v", err)
	}
	return def
}

func TestNewRequiresStoreAndExecutor(t *testing.T) {
	if _, err := engine.New(engine.WithExecutor(executor.NewRegistry())); !errors.Is(err, symphony.ErrNoStore) {
		t.Errorf("error = %v, want ErrNoStore", err)
	}
	if _, err := engine.New(engine.WithStore(memory.New())); !errors.Is(err, symphony.ErrNoExecutor) {
		t.Errorf("error = %v, want ErrNoExecutor", err)
	}
}

func TestExecuteLinearWorkflow(t *testing.T) {
	var fetches, summaries, reports atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("fetch", countingTarget(&fetches, func(any) (any, error) {
		return "alpha beta", nil
	}))
	reg.RegisterFunc("summarize", countingTarget(&summaries, func(input any) (any, error) {
		return fmt.Sprintf("sum(%v)", input), nil
	}))
	reg.RegisterFunc("report", echoTarget(&reports))

	def := mustSteps(t, "pipeline",
		workflow.NewTask("fetch", "fetch", "docs"),
		workflow.NewTask("summarize", "summarize", "Summary of {{step.fetch.result}}",
			workflow.WithDependsOn("fetch")),
		workflow.NewTask("report", "report", "{{step.summarize.result}}",
			workflow.WithDependsOn("summarize")),
	)

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.State != workflow.RunStateCompleted {
		t.Fatalf("state = %s, want completed (error: %s)", run.State, run.Error)
	}
	if len(run.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(run.Results))
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt not set on completed run")
	}

	want := "sum(Summary of alpha beta)"
	if got := run.Results["summarize"].Output; got != want {
		t.Errorf("summarize output = %v, want %q", got, want)
	}
	if got := run.Results["report"].Output; got != want {
		t.Errorf("report output = %v, want %q", got, want)
	}
	for name, n := range map[string]*atomic.Int32{"fetch": &fetches, "summarize": &summaries, "report": &reports} {
		if n.Load() != 1 {
			t.Errorf("%s called %d times, want 1", name, n.Load())
		}
	}
}

func TestHaltOnFirstFailure(t *testing.T) {
	var after atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("ok", echoTarget(new(atomic.Int32)))
	reg.RegisterFunc("broken", func(context.Context, string, any) (*executor.Result, error) {
		return nil, errors.New("agent crashed")
	})
	reg.RegisterFunc("never", echoTarget(&after))

	def := mustSteps(t, "halts",
		workflow.NewTask("a", "ok", "x"),
		workflow.NewTask("b", "broken", "x", workflow.WithDependsOn("a")),
		workflow.NewTask("c", "never", "x", workflow.WithDependsOn("b")),
	)

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.State != workflow.RunStateFailed {
		t.Fatalf("state = %s, want failed", run.State)
	}
	if len(run.Results) != 2 {
		t.Errorf("got %d results, want 2 (a and b)", len(run.Results))
	}
	if after.Load() != 0 {
		t.Errorf("step after failure dispatched %d times", after.Load())
	}
	res := run.Results["b"]
	if res.Success || res.Output != nil {
		t.Errorf("failed result carries output: %+v", res)
	}
	if res.Error == "" {
		t.Error("failed result has no error message")
	}
	if !strings.Contains(run.Error, "step b") {
		t.Errorf("run error = %q, want step b named", run.Error)
	}
}

func TestContinueOnErrorSkipsDependents(t *testing.T) {
	var cCalls, dCalls atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("ok", echoTarget(new(atomic.Int32)))
	reg.RegisterFunc("broken", func(context.Context, string, any) (*executor.Result, error) {
		return nil, errors.New("agent crashed")
	})
	reg.RegisterFunc("dependent", echoTarget(&cCalls))
	reg.RegisterFunc("independent", echoTarget(&dCalls))

	def := mustSteps(t, "partial",
		workflow.NewTask("a", "ok", "x"),
		workflow.NewTask("b", "broken", "x"),
		workflow.NewTask("c", "dependent", "x", workflow.WithDependsOn("b")),
		workflow.NewTask("d", "independent", "x", workflow.WithDependsOn("a")),
		workflow.NewTask("e", "dependent", "x", workflow.WithDependsOn("c")),
	)

	eng := newEngine(t, memory.New(), reg, engine.WithConfig(engine.Config{ContinueOnError: true}))
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.State != workflow.RunStateFailed {
		t.Fatalf("state = %s, want failed", run.State)
	}
	if dCalls.Load() != 1 {
		t.Errorf("independent step called %d times, want 1", dCalls.Load())
	}
	if cCalls.Load() != 0 {
		t.Errorf("dependents of failed step called %d times, want 0", cCalls.Load())
	}
	for _, skipped := range []string{"c", "e"} {
		if _, ok := run.Results[skipped]; ok {
			t.Errorf("skipped step %q has a recorded result", skipped)
		}
	}
	if _, ok := run.Results["d"]; !ok {
		t.Error("independent step has no recorded result")
	}
}

// completionContext executes the definition with an on-completion
// checkpoint and returns the final run plus the checkpointed context.
func completionContext(t *testing.T, def *workflow.Definition, reg *executor.Registry, input map[string]any) (*workflow.Run, map[string]any) {
	t.Helper()

	st := memory.New()
	mgr := checkpoint.New(st,
		checkpoint.WithLogger(discardLogger()),
		checkpoint.WithTriggers(checkpoint.Triggers{OnCompletion: true}),
	)
	eng := newEngine(t, st, reg, engine.WithCheckpoints(mgr))

	run, err := eng.Execute(context.Background(), def, input)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	metas, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) == 0 {
		t.Fatal("no completion checkpoint recorded")
	}
	cp, err := st.GetCheckpoint(context.Background(), metas[len(metas)-1].ID)
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	return run, cp.Context
}

func TestConditionalTakesExactlyOneBranch(t *testing.T) {
	var approvals, rejections atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("approve", countingTarget(&approvals, func(any) (any, error) { return "approved", nil }))
	reg.RegisterFunc("reject", countingTarget(&rejections, func(any) (any, error) { return "rejected", nil }))

	def := mustSteps(t, "review",
		workflow.NewConditional("gate", "score > 50",
			workflow.NewTask("approve", "approve", "{{score}}"),
			workflow.NewTask("reject", "reject", "{{score}}"),
		),
	)

	run, cpCtx := completionContext(t, def, reg, map[string]any{"score": 75})

	if run.State != workflow.RunStateCompleted {
		t.Fatalf("state = %s, want completed (error: %s)", run.State, run.Error)
	}
	if approvals.Load() != 1 || rejections.Load() != 0 {
		t.Errorf("approve=%d reject=%d, want 1/0", approvals.Load(), rejections.Load())
	}
	if got := run.Results["gate"].Output; got != "approved" {
		t.Errorf("gate output = %v, want approved", got)
	}

	// The chosen branch left a context entry; the unchosen one none.
	if _, ok := cpCtx["step.approve.result"]; !ok {
		t.Error("chosen branch has no context entry")
	}
	for key := range cpCtx {
		if strings.HasPrefix(key, "step.reject.") {
			t.Errorf("unchosen branch left context entry %q", key)
		}
	}
}

func TestConditionalFalseWithoutElseSucceeds(t *testing.T) {
	reg := executor.NewRegistry()
	reg.RegisterFunc("approve", echoTarget(new(atomic.Int32)))

	def := mustSteps(t, "review",
		workflow.NewConditional("gate", "score > 50",
			workflow.NewTask("approve", "approve", "x"),
			nil,
		),
	)

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, map[string]any{"score": 10})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != workflow.RunStateCompleted {
		t.Fatalf("state = %s, want completed", run.State)
	}
	if out := run.Results["gate"].Output; out != nil {
		t.Errorf("gate output = %v, want nil", out)
	}
}

func TestParallelCollectsOrderedOutputs(t *testing.T) {
	reg := executor.NewRegistry()
	reg.RegisterFunc("slow", func(_ context.Context, _ string, input any) (*executor.Result, error) {
		time.Sleep(20 * time.Millisecond)
		return &executor.Result{Output: input}, nil
	})
	reg.RegisterFunc("fast", func(_ context.Context, _ string, input any) (*executor.Result, error) {
		return &executor.Result{Output: input}, nil
	})

	def := mustSteps(t, "fanout",
		workflow.NewParallel("par", []*workflow.Step{
			workflow.NewTask("p1", "slow", "first"),
			workflow.NewTask("p2", "fast", "second"),
			workflow.NewTask("p3", "fast", "third"),
		}),
	)

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != workflow.RunStateCompleted {
		t.Fatalf("state = %s, want completed (error: %s)", run.State, run.Error)
	}

	outputs, ok := run.Results["par"].Output.([]any)
	if !ok {
		t.Fatalf("parallel output is %T, want []any", run.Results["par"].Output)
	}
	want := []any{"first", "second", "third"}
	for i := range want {
		if outputs[i] != want[i] {
			t.Fatalf("outputs = %v, want declaration order %v", outputs, want)
		}
	}
}

func TestParallelPartialFailureRetainsSiblingResults(t *testing.T) {
	var siblings atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("ok", countingTarget(&siblings, func(input any) (any, error) {
		time.Sleep(10 * time.Millisecond)
		return input, nil
	}))
	reg.RegisterFunc("broken", func(context.Context, string, any) (*executor.Result, error) {
		return nil, errors.New("agent crashed")
	})

	def := mustSteps(t, "fanout",
		workflow.NewParallel("par", []*workflow.Step{
			workflow.NewTask("p1", "ok", "first"),
			workflow.NewTask("p2", "broken", "second"),
			workflow.NewTask("p3", "ok", "third"),
		}),
	)

	run, cpCtx := completionContext(t, def, reg, nil)

	if run.State != workflow.RunStateFailed {
		t.Fatalf("state = %s, want failed", run.State)
	}
	// The failing child must not cancel its siblings.
	if siblings.Load() != 2 {
		t.Errorf("sibling calls = %d, want 2", siblings.Load())
	}
	for _, key := range []string{"step.p1.result", "step.p3.result", "step.p2.error"} {
		if _, ok := cpCtx[key]; !ok {
			t.Errorf("context missing %q after partial failure", key)
		}
	}
	if !strings.Contains(run.Results["par"].Error, "p2") {
		t.Errorf("parallel error = %q, want failing child named", run.Results["par"].Error)
	}
}

func TestLoopRunsUntilPredicateFalse(t *testing.T) {
	var iterations atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("work", countingTarget(&iterations, func(input any) (any, error) {
		return fmt.Sprintf("pass %v", input), nil
	}))

	def := mustSteps(t, "refine",
		workflow.NewLoop("loop",
			workflow.NewTask("body", "work", "{{step.loop.iteration}}"),
			"step.loop.iteration < 3", 10),
	)

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != workflow.RunStateCompleted {
		t.Fatalf("state = %s, want completed (error: %s)", run.State, run.Error)
	}
	if iterations.Load() != 3 {
		t.Errorf("body ran %d times, want 3", iterations.Load())
	}
	if got := run.Results["loop"].Output; got != "pass 3" {
		t.Errorf("loop output = %v, want last body output", got)
	}
}

func TestLoopLimitExceeded(t *testing.T) {
	var iterations atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("work", countingTarget(&iterations, func(any) (any, error) { return "again", nil }))

	def := mustSteps(t, "stuck",
		workflow.NewLoop("loop",
			workflow.NewTask("body", "work", "x"),
			"true", 3),
	)

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != workflow.RunStateFailed {
		t.Fatalf("state = %s, want failed", run.State)
	}
	if iterations.Load() != 3 {
		t.Errorf("body ran %d times, want exactly the bound", iterations.Load())
	}
	if !strings.Contains(run.Results["loop"].Error, symphony.ErrLoopLimitExceeded.Error()) {
		t.Errorf("loop error = %q, want loop limit", run.Results["loop"].Error)
	}
}

func TestMissingVariableFailsStep(t *testing.T) {
	reg := executor.NewRegistry()
	reg.RegisterFunc("echo", echoTarget(new(atomic.Int32)))

	def := mustSteps(t, "broken-template",
		workflow.NewTask("a", "echo", "value: {{never.set}}"),
	)

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != workflow.RunStateFailed {
		t.Fatalf("state = %s, want failed", run.State)
	}
	if !strings.Contains(run.Results["a"].Error, "never.set") {
		t.Errorf("error = %q, want missing path named", run.Results["a"].Error)
	}
}

func TestCheckpointRestoreAndResume(t *testing.T) {
	var aCalls, bCalls, cCalls atomic.Int32

	reg := executor.NewRegistry()
	reg.RegisterFunc("a", countingTarget(&aCalls, func(any) (any, error) { return "A", nil }))
	reg.RegisterFunc("b", countingTarget(&bCalls, func(input any) (any, error) {
		return fmt.Sprintf("B(%v)", input), nil
	}))
	reg.RegisterFunc("c", countingTarget(&cCalls, func(input any) (any, error) {
		return fmt.Sprintf("C(%v)", input), nil
	}))

	def := mustSteps(t, "durable",
		workflow.NewTask("a", "a", "x"),
		workflow.NewTask("b", "b", "{{step.a.result}}", workflow.WithDependsOn("a")),
		workflow.NewTask("c", "c", "{{step.b.result}}", workflow.WithDependsOn("b")),
	)

	st := memory.New()
	mgr := checkpoint.New(st,
		checkpoint.WithLogger(discardLogger()),
		checkpoint.WithTriggers(checkpoint.Triggers{EveryN: 1}),
	)
	eng := newEngine(t, st, reg, engine.WithCheckpoints(mgr))

	original, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if original.State != workflow.RunStateCompleted {
		t.Fatalf("state = %s, want completed (error: %s)", original.State, original.Error)
	}

	metas, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 3 {
		t.Fatalf("got %d checkpoints, want one per step", len(metas))
	}

	// Resume from the snapshot taken after step a only.
	resumed, err := eng.RestoreAndResume(context.Background(), metas[0].ID)
	if err != nil {
		t.Fatalf("RestoreAndResume: %v", err)
	}

	if resumed.State != workflow.RunStateCompleted {
		t.Fatalf("resumed state = %s, want completed (error: %s)", resumed.State, resumed.Error)
	}
	// Steps recorded in the checkpoint are skipped; the rest re-run.
	if aCalls.Load() != 1 {
		t.Errorf("a called %d times, want 1", aCalls.Load())
	}
	if bCalls.Load() != 2 || cCalls.Load() != 2 {
		t.Errorf("b/c calls = %d/%d, want 2/2", bCalls.Load(), cCalls.Load())
	}
	// The resumed run converges on the same outputs.
	for _, stepID := range []string{"a", "b", "c"} {
		if got, want := resumed.Results[stepID].Output, original.Results[stepID].Output; got != want {
			t.Errorf("resumed %s output = %v, want %v", stepID, got, want)
		}
	}
}

func TestPauseAndResume(t *testing.T) {
	var aCalls, bCalls, cCalls atomic.Int32

	st := memory.New()
	reg := executor.NewRegistry()

	reg.RegisterFunc("a", echoTarget(&aCalls))
	reg.RegisterFunc("c", echoTarget(&cCalls))

	eng := newEngine(t, st, reg)

	// The pausing step suspends its own run through the store, the way
	// an operator would from another process.
	reg.RegisterFunc("pausing", func(ctx context.Context, _ string, _ any) (*executor.Result, error) {
		bCalls.Add(1)
		running, err := st.ListRuns(ctx, workflow.ListOpts{State: workflow.RunStateRunning})
		if err != nil || len(running) != 1 {
			return nil, fmt.Errorf("find own run: %v (%d running)", err, len(running))
		}
		if err := eng.Pause(ctx, running[0].ID); err != nil {
			return nil, err
		}
		return &executor.Result{Output: "b"}, nil
	})

	def := mustSteps(t, "pausable",
		workflow.NewTask("a", "a", "x"),
		workflow.NewTask("b", "pausing", "x", workflow.WithDependsOn("a")),
		workflow.NewTask("c", "c", "x", workflow.WithDependsOn("b")),
	)

	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.State != workflow.RunStatePaused {
		t.Fatalf("state = %s, want paused", run.State)
	}
	// The in-flight step finished; the next one never started.
	if len(run.Results) != 2 {
		t.Errorf("got %d results at pause, want 2", len(run.Results))
	}
	if cCalls.Load() != 0 {
		t.Errorf("step after pause dispatched %d times", cCalls.Load())
	}

	resumed, err := eng.Resume(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.State != workflow.RunStateCompleted {
		t.Fatalf("resumed state = %s, want completed (error: %s)", resumed.State, resumed.Error)
	}
	if aCalls.Load() != 1 || bCalls.Load() != 1 || cCalls.Load() != 1 {
		t.Errorf("calls a/b/c = %d/%d/%d, want 1/1/1", aCalls.Load(), bCalls.Load(), cCalls.Load())
	}
}

func TestResumeTerminalRunRejected(t *testing.T) {
	reg := executor.NewRegistry()
	reg.RegisterFunc("echo", echoTarget(new(atomic.Int32)))

	def := mustSteps(t, "done", workflow.NewTask("a", "echo", "x"))

	eng := newEngine(t, memory.New(), reg)
	run, err := eng.Execute(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	_, err = eng.Resume(context.Background(), run.ID)
	if !errors.Is(err, symphony.ErrInvalidState) {
		t.Errorf("error = %v, want ErrInvalidState", err)
	}
}

func TestResumeAllContinuesInterruptedRuns(t *testing.T) {
	var calls atomic.Int32

	st := memory.New()
	reg := executor.NewRegistry()
	reg.RegisterFunc("echo", echoTarget(&calls))

	def := mustSteps(t, "interrupted", workflow.NewTask("a", "echo", "x"))

	// Simulate a crashed process: a run persisted mid-flight.
	if err := st.SaveDefinition(context.Background(), def); err != nil {
		t.Fatalf("SaveDefinition: %v", err)
	}
	stale := workflow.NewRun(def.ID())
	stale.State = workflow.RunStateRunning
	if err := st.CreateRun(context.Background(), stale); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	eng := newEngine(t, st, reg)
	runs, err := eng.ResumeAll(context.Background())
	if err != nil {
		t.Fatalf("ResumeAll: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("resumed %d runs, want 1", len(runs))
	}
	if runs[0].State != workflow.RunStateCompleted {
		t.Errorf("state = %s, want completed", runs[0].State)
	}
	if calls.Load() != 1 {
		t.Errorf("step called %d times, want 1", calls.Load())
	}
}
