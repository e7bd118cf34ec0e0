// Package retry implements the quota-gated retry strategy used for remote
// object-store calls.
//
// This package contains:
//   - Quota: bounded counter of retry attempts shared by one Strategy
//   - Classify: decides whether an error is retryable and why
//   - Strategy: retry decider, flat-jitter backoff and aws.RetryerV2 adapter
//   - Do: generic retrying client for calls outside the AWS SDK
package retry

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/vietddude/framehash/internal/indexing/metrics"
)

const (
	// DefaultMaxAttempts bounds attempts per call and seeds the quota.
	DefaultMaxAttempts = 10

	minDelayFloor = 100 * time.Millisecond
	delaySpread   = 400 * time.Millisecond
)

// Options configures a Strategy.
type Options struct {
	MaxAttempts int
	// RetryErrors, when non-empty, is the exact set of retryable error codes.
	// It replaces the default classification entirely.
	RetryErrors []string
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		MinDelay:    minDelayFloor,
		MaxDelay:    minDelayFloor + delaySpread,
	}
}

// Strategy decides whether and when a failed remote call is retried.
// One Strategy is shared by every call made through a client, and so is its Quota.
type Strategy struct {
	maxAttempts int
	retryErrors []string
	minDelay    time.Duration
	maxDelay    time.Duration
	quota       *Quota
}

var _ aws.RetryerV2 = (*Strategy)(nil)

// NewStrategy creates a Strategy, normalizing the delay bounds.
func NewStrategy(opts Options) *Strategy {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MinDelay < minDelayFloor {
		opts.MinDelay = minDelayFloor
	}
	if opts.MaxDelay <= opts.MinDelay {
		opts.MaxDelay = opts.MinDelay + delaySpread
	}

	s := &Strategy{
		maxAttempts: opts.MaxAttempts,
		retryErrors: slices.Clone(opts.RetryErrors),
		minDelay:    opts.MinDelay,
		maxDelay:    opts.MaxDelay,
		quota:       NewQuota(opts.MaxAttempts),
	}
	metrics.RetryQuotaRemaining.Set(float64(s.quota.Remaining()))
	return s
}

// ShouldRetry reports whether err may be retried.
func (s *Strategy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if len(s.retryErrors) > 0 {
		return slices.Contains(s.retryErrors, ErrorCode(err))
	}
	return Classify(err) != KindPermanent
}

// Delay returns a uniformly random wait in [MinDelay, MaxDelay].
// The attempt number does not influence the result.
func (s *Strategy) Delay(attempt int) time.Duration {
	spread := int64(s.maxDelay - s.minDelay)
	return s.minDelay + time.Duration(rand.Int64N(spread+1))
}

// Quota returns the shared retry quota.
func (s *Strategy) Quota() *Quota {
	return s.quota
}

// MinDelay returns the effective lower delay bound.
func (s *Strategy) MinDelay() time.Duration {
	return s.minDelay
}

// MaxDelay returns the effective upper delay bound.
func (s *Strategy) MaxDelay() time.Duration {
	return s.maxDelay
}

// reserve takes a token before a retry and records the attempt.
func (s *Strategy) reserve(err error) bool {
	remaining, qerr := s.quota.Reserve()
	if qerr != nil {
		metrics.RetryExhausted.WithLabelValues("quota").Inc()
		return false
	}
	metrics.RetryQuotaRemaining.Set(float64(remaining))
	metrics.RetryAttempts.WithLabelValues(Classify(err).String()).Inc()
	return true
}

func (s *Strategy) release(amount int) {
	s.quota.Release(amount)
	metrics.RetryQuotaRemaining.Set(float64(s.quota.Remaining()))
}

// IsErrorRetryable implements aws.Retryer.
func (s *Strategy) IsErrorRetryable(err error) bool {
	return s.ShouldRetry(err)
}

// MaxAttempts implements aws.Retryer. It includes the first attempt.
func (s *Strategy) MaxAttempts() int {
	return s.maxAttempts
}

// RetryDelay implements aws.Retryer.
func (s *Strategy) RetryDelay(attempt int, _ error) (time.Duration, error) {
	return s.Delay(attempt), nil
}

// GetRetryToken implements aws.Retryer. When the quota is empty the operation
// error is returned unchanged so the caller sees the last classified failure.
func (s *Strategy) GetRetryToken(_ context.Context, opErr error) (func(error) error, error) {
	if !s.reserve(opErr) {
		return nil, opErr
	}
	return func(err error) error {
		if err == nil {
			s.release(1)
		}
		return nil
	}, nil
}

// GetInitialToken implements aws.Retryer. First attempts are free.
func (s *Strategy) GetInitialToken() func(error) error {
	return nopRelease
}

// GetAttemptToken implements aws.RetryerV2.
func (s *Strategy) GetAttemptToken(context.Context) (func(error) error, error) {
	return nopRelease, nil
}

func nopRelease(error) error { return nil }
