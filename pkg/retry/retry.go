// Package retry repeats an operation with capped exponential backoff.
// It serves two callers: the startup probes of Postgres and Redis, and the
// language model client, which decides per error whether a retry makes sense.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy describes how often and how patiently an operation is repeated.
// The zero value makes a single attempt.
type Policy struct {
	// Attempts counts the first call too.
	Attempts int

	// Base is the delay after the first failure; it doubles per attempt up
	// to Max.
	Base time.Duration
	Max  time.Duration

	// Jitter spreads each delay by ±Jitter of its value (0..1).
	Jitter float64

	// ShouldRetry reports whether err is worth another attempt. Nil retries
	// every error.
	ShouldRetry func(err error) bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)

	sleep func(ctx context.Context, d time.Duration) error
}

// Connect waits for a backing service during process startup.
func Connect() Policy {
	return Policy{
		Attempts: 5,
		Base:     250 * time.Millisecond,
		Max:      5 * time.Second,
		Jitter:   0.05,
	}
}

// Do calls op until it succeeds, the error is not retryable, the attempts
// run out or ctx ends. The last operation error is returned as is.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	sleep := p.sleep
	if sleep == nil {
		sleep = wait
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return err
			}
			return ctxErr
		}

		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts || (p.ShouldRetry != nil && !p.ShouldRetry(err)) {
			return err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if sleep(ctx, delay) != nil {
			return err
		}
	}
	return err
}

// Delay is the pause after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := float64(p.Base) * math.Pow(2, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(max(d, 0))
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
