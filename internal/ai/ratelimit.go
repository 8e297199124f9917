package ai

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum spacing between completion calls,
// process-wide. Every session shares one instance, so concurrent healing
// pipelines on different paths still serialize against one upstream quota.
//
// Built on x/time/rate with burst 1: Wait blocks until at least the
// configured interval has elapsed since the last permitted call.
type RateLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
}

// NewRateLimiter creates a limiter with the given minimum spacing.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	return &RateLimiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until the caller may issue a completion call, then records
// the slot as taken. Returns early only on context cancellation.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	limiter := r.limiter
	interval := r.interval
	r.mu.Unlock()

	if !limiter.Allow() {
		slog.Debug("rate limiter cooling down", "interval", interval)
		return limiter.Wait(ctx)
	}
	return nil
}

// SetInterval reconfigures the minimum spacing between calls
// (interval = 60s / requestsPerMinute).
func (r *RateLimiter) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = time.Nanosecond
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interval = interval
	r.limiter.SetLimit(rate.Every(interval))
}

// Interval returns the current minimum spacing.
func (r *RateLimiter) Interval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}
