package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	symphony "github.com/arunmenon/Symphony-Agent-Fwk-sub000"
	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/backoff"
)

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFunc("summarize", func(_ context.Context, target string, input any) (*Result, error) {
		if target != "summarize" {
			t.Errorf("target = %q, want summarize", target)
		}
		return &Result{Output: "done", ExecutionID: "ext-1"}, nil
	})

	res, err := reg.Execute(context.Background(), "summarize", "text")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "done" || res.ExecutionID != "ext-1" {
		t.Errorf("got %+v", res)
	}
}

func TestRegistryUnknownTarget(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Execute(context.Background(), "missing", nil)
	if !errors.Is(err, symphony.ErrUnknownTarget) {
		t.Errorf("error = %v, want ErrUnknownTarget", err)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	inner := Func(func(_ context.Context, _ string, _ any) (*Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("agent unavailable")
		}
		return &Result{Output: calls}, nil
	})

	r := NewRetry(inner, backoff.NewConstant(0), 5)
	res, err := r.Execute(context.Background(), "flaky", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if res.Output != 3 {
		t.Errorf("output = %v, want 3", res.Output)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	calls := 0
	inner := Func(func(_ context.Context, _ string, _ any) (*Result, error) {
		calls++
		return nil, errors.New("still down")
	})

	r := NewRetry(inner, backoff.NewConstant(0), 3)
	_, err := r.Execute(context.Background(), "down", nil)
	if err == nil || err.Error() != "still down" {
		t.Errorf("error = %v, want last attempt's error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryHonorsContext(t *testing.T) {
	inner := Func(func(_ context.Context, _ string, _ any) (*Result, error) {
		return nil, errors.New("fail")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetry(inner, backoff.NewConstant(time.Hour), 5)
	_, err := r.Execute(ctx, "slow", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRateLimitedPassesThrough(t *testing.T) {
	inner := Func(func(_ context.Context, _ string, input any) (*Result, error) {
		return &Result{Output: input}, nil
	})

	l := NewRateLimited(inner, 1000, 10)
	res, err := l.Execute(context.Background(), "fast", "hello")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "hello" {
		t.Errorf("output = %v, want hello", res.Output)
	}
}
