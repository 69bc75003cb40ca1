package redis

import (
	"context"
	"time"

	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXED WINDOW RATE LIMITER
// One INCR per request on a key that expires with its window, so every
// API replica shares the same budget.
// ══════════════════════════════════════════════════════════════════════════════

// WindowCounter is the subset of Cache used by the limiter.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter allows up to limit requests per identifier per window.
type RateLimiter struct {
	counter WindowCounter
	limit   int
	window  time.Duration
	clock   timeutil.Clock
}

// NewRateLimiter creates a limiter. A nil clock uses the system clock.
func NewRateLimiter(counter WindowCounter, limit int, window time.Duration, clock timeutil.Clock) *RateLimiter {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{counter: counter, limit: limit, window: window, clock: clock}
}

// Allow counts one request of identifier.
func (l *RateLimiter) Allow(ctx context.Context, identifier string) (Decision, error) {
	now := l.clock.Now()
	slot := now.UnixNano() / int64(l.window)
	windowEnd := time.Unix(0, (slot+1)*int64(l.window))

	n, err := l.counter.IncrWindow(ctx, RateLimitKey(identifier, slot), l.window)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Limit: l.limit, Remaining: l.limit - int(n)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	d.Allowed = int(n) <= l.limit
	if !d.Allowed {
		d.RetryAfter = windowEnd.Sub(now)
	}
	return d, nil
}
