package executor

import (
	"context"
	"time"

	"github.com/arunmenon/Symphony-Agent-Fwk-sub000/backoff"
)

// Retry wraps an executor with bounded retries. The engine sees a
// single Execute call; retry pacing is the wrapper's concern.
type Retry struct {
	inner       Executor
	strategy    backoff.Strategy
	maxAttempts int
}

// NewRetry wraps inner with up to maxAttempts total attempts, delayed
// by the given strategy between attempts. maxAttempts below 1 is
// treated as 1.
func NewRetry(inner Executor, strategy backoff.Strategy, maxAttempts int) *Retry {
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retry{inner: inner, strategy: strategy, maxAttempts: maxAttempts}
}

// Execute calls the inner executor, retrying on error until attempts
// are exhausted or the context is done. The last error wins.
func (r *Retry) Execute(ctx context.Context, target string, input any) (*Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(r.strategy.Delay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		res, err := r.inner.Execute(ctx, target, input)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
