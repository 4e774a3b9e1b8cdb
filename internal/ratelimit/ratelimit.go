// Package ratelimit throttles per-trader request volume, grounded on
// internal/api/middleware/security.go's SecurityMiddleware.RateLimiter:
// same library, same in-memory store, same per-key Get/Allow shape, but
// keyed by trader identity rather than client IP since every request here
// is already authenticated.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/merl-labs/clob/pkg/types"
)

// Config describes the allowed request rate.
type Config struct {
	// Period the limit applies over.
	Period time.Duration
	// Limit is the max requests allowed per Period.
	Limit int64
}

// DefaultConfig allows 120 requests per minute per trader, matching the
// teacher's order of magnitude (100/minute) with headroom for read-heavy
// polling clients.
func DefaultConfig() Config {
	return Config{Period: time.Minute, Limit: 120}
}

// Limiter enforces Config per trader using an in-memory fixed-window
// counter (at most Limit requests per trader in each Period).
type Limiter struct {
	inner *limiter.Limiter
}

// New builds a Limiter backed by an in-memory store. A distributed
// deployment would swap in a Redis-backed limiter/v3 store; the API
// surface here doesn't change either way.
func New(cfg Config) *Limiter {
	rate := limiter.Rate{Period: cfg.Period, Limit: cfg.Limit}
	store := memory.NewStore()
	return &Limiter{inner: limiter.New(store, rate)}
}

// Decision reports the outcome of a rate-limit check, mirroring the
// headers the teacher's RateLimiter middleware sets on every response.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetUnix int64
}

// Allow checks and consumes one unit of trader's budget.
func (l *Limiter) Allow(ctx context.Context, trader types.TraderKey) (Decision, error) {
	key := fmt.Sprintf("%x", trader)
	ctxLimiter, err := l.inner.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: get: %w", err)
	}
	return Decision{
		Allowed:   !ctxLimiter.Reached,
		Limit:     ctxLimiter.Limit,
		Remaining: ctxLimiter.Remaining,
		ResetUnix: ctxLimiter.Reset,
	}, nil
}
