package llm

import (
	"context"
	"errors"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/circuitbreaker"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESILIENT GENERATOR
// Retries transient failures, then trips a breaker when the model keeps
// failing so callers get a fast ErrLLMUnavailable.
// ══════════════════════════════════════════════════════════════════════════════

// transientError marks a model failure worth another attempt: rate limits,
// upstream 5xx and per-attempt timeouts.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err came back marked as retryable.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// RetryPolicy is the default retry policy for model calls: few attempts,
// generous backoff, transient errors only.
func RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:    3,
		Base:        500 * time.Millisecond,
		Max:         8 * time.Second,
		Jitter:      0.2,
		ShouldRetry: IsTransient,
	}
}

// ResilientOptions configures NewResilient. Zero values use the defaults.
type ResilientOptions struct {
	Retry   *retry.Policy
	Breaker *circuitbreaker.Breaker
	Logger  *logger.Logger
}

// Resilient wraps a Generator with retry and a circuit breaker.
type Resilient struct {
	next    Generator
	retry   retry.Policy
	breaker *circuitbreaker.Breaker
	log     *logger.Logger
}

var _ Generator = (*Resilient)(nil)

// NewResilient wraps next.
func NewResilient(next Generator, opts ResilientOptions) *Resilient {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("llm"))

	r := &Resilient{next: next, retry: RetryPolicy(), breaker: opts.Breaker, log: log}
	if opts.Retry != nil {
		r.retry = *opts.Retry
	}
	if r.retry.OnRetry == nil {
		r.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying model call",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}
	}
	if r.breaker == nil {
		r.breaker = circuitbreaker.LLM(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return r
}

// Generate runs req through the breaker and the retrier.
func (r *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	var out string
	start := time.Now()

	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.retry.Do(ctx, func(ctx context.Context) error {
			text, err := r.next.Generate(ctx, req)
			if err != nil {
				return err
			}
			out = text
			return nil
		})
	})

	switch {
	case err == nil:
		r.log.Debug("model call succeeded", logger.Latency(time.Since(start)))
		return out, nil
	case errors.Is(err, circuitbreaker.ErrOpen):
		return "", shared.ErrLLMUnavailable
	case errors.Is(err, context.Canceled):
		return "", err
	case errors.Is(err, shared.ErrLLMInvalidResponse), errors.Is(err, shared.ErrInvalidFormat):
		return "", err
	default:
		r.log.Error("model call failed", logger.Latency(time.Since(start)), logger.Err(err))
		return "", shared.WrapError("llm", "Generate", shared.ErrExternalService, "language model request failed", err)
	}
}
