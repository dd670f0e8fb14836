package executor

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited throttles calls to an inner executor with a shared token
// bucket. Useful when the target agent has a hard request quota and
// parallel steps would otherwise burst past it.
type RateLimited struct {
	inner   Executor
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter admitting rps requests per
// second with the given burst.
func NewRateLimited(inner Executor, rps float64, burst int) *RateLimited {
	return &RateLimited{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Execute waits for a token, then calls the inner executor. Returns
// the context's error if it is canceled while waiting.
func (l *RateLimited) Execute(ctx context.Context, target string, input any) (*Result, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.inner.Execute(ctx, target, input)
}
