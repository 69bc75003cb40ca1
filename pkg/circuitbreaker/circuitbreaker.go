// Package circuitbreaker stops calling an upstream that keeps failing and,
// after a cool-down, lets a single trial call decide whether it recovered.
// It sits in front of the language model so a dead API answers fast instead
// of holding request goroutines for the full timeout.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling the upstream while the breaker is open
// or its trial call is still in flight.
var ErrOpen = errors.New("circuit breaker is open")

// Config of a breaker. Zero fields take the defaults of New.
type Config struct {
	Name string

	// Threshold consecutive failures open the breaker. Default 5.
	Threshold int

	// CoolDown is how long the breaker stays open before a trial call.
	// Default 30s.
	CoolDown time.Duration

	// IsFailure filters errors that say nothing about upstream health.
	// Caller cancellation never counts.
	IsFailure func(error) bool

	OnStateChange func(name string, from, to State)

	Now func() time.Time
}

// Breaker is safe for concurrent use.
type Breaker struct {
	cfg Config

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// New builds a closed breaker.
func New(cfg Config) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{cfg: cfg}
}

// LLM is the breaker used in front of the hosted model API.
func LLM(onStateChange func(name string, from, to State)) *Breaker {
	return New(Config{
		Name:          "llm",
		Threshold:     4,
		CoolDown:      30 * time.Second,
		OnStateChange: onStateChange,
	})
}

// Execute runs fn unless the breaker is open and records the outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.CoolDown {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.trial = true
		return nil
	case StateHalfOpen:
		if b.trial {
			return ErrOpen
		}
		b.trial = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trial = false

	if err != nil && errors.Is(err, context.Canceled) {
		return
	}
	failed := err != nil && (b.cfg.IsFailure == nil || b.cfg.IsFailure(err))

	if !failed {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.setState(StateClosed)
		}
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.cfg.Now()
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if to != StateOpen {
		b.failures = 0
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
