package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/vietddude/framehash/internal/indexing/metrics"
)

// call is the per-operation retry state: attempt count plus the shared quota.
// It implements goretry.Backoff.
type call struct {
	s        *Strategy
	attempt  int
	reserved int
	lastErr  error
}

// Next is consulted after a retryable failure. It stops when the attempt cap
// or the quota is exhausted.
func (c *call) Next() (time.Duration, bool) {
	c.attempt++
	if c.attempt >= c.s.maxAttempts {
		metrics.RetryExhausted.WithLabelValues("attempts").Inc()
		return 0, true
	}
	if !c.s.reserve(c.lastErr) {
		return 0, true
	}
	c.reserved++
	return c.s.Delay(c.attempt), false
}

// Do runs fn, retrying per the strategy. A non-retryable error or the error of
// the final attempt is returned verbatim.
func Do(ctx context.Context, s *Strategy, fn func(ctx context.Context) error) error {
	c := &call{s: s}
	return goretry.Do(ctx, c, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			s.release(c.reserved)
			return nil
		}
		if !s.ShouldRetry(err) {
			return err
		}
		c.lastErr = err
		return goretry.RetryableError(err)
	})
}

// DoValue is Do for calls that produce a value.
func DoValue[T any](ctx context.Context, s *Strategy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, s, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
