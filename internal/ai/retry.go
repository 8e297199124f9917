package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig bounds the backoff wrapper around a single completion call.
type RetryConfig struct {
	MaxRetries int           // retries after the first attempt (default: 5)
	BaseDelay  time.Duration // first backoff delay, doubles each retry (default: 2s)
	MaxDelay   time.Duration // backoff ceiling (default: 60s)
}

// DefaultRetryConfig returns the retry configuration used when ghost.yaml
// doesn't override it.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

// ErrRetriesExhausted marks a throttled operation that stayed throttled
// through every allowed retry. Terminal for the session.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Retry invokes op, retrying with exponential backoff and jitter as long as
// the failure is provider-signaled throttling. Any other failure propagates
// immediately without sleeping. op runs at most cfg.MaxRetries+1 times.
func Retry[T any](ctx context.Context, cfg RetryConfig, operation string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig().MaxDelay
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				slog.Info("completion call succeeded after retries",
					"operation", operation, "retries", attempt)
			}
			return result, nil
		}
		lastErr = err

		if !IsThrottleError(err) {
			return zero, err
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s canceled: %w", operation, ctx.Err())
		}

		// Exponential backoff plus jitter so concurrently-healing paths
		// don't retry in lockstep. Jitter scales with the current delay so
		// it never dominates a short backoff.
		delay := cfg.BaseDelay * (1 << attempt)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
		sleep := delay + jitter

		slog.Warn("completion call throttled, backing off",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", cfg.MaxRetries+1,
			"delay", sleep)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return zero, fmt.Errorf("%s canceled during backoff: %w", operation, ctx.Err())
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w: %w",
		operation, cfg.MaxRetries+1, ErrRetriesExhausted, lastErr)
}
