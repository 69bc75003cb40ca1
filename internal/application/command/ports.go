// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION TRANSACTION PORT
// Every counter mutation (xp, level, streak, totals) goes through one
// per-user transaction. Implementations serialize transactions of the same
// user: postgres locks the profile row, the memory store holds a user mutex.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionStore opens per-user transactions.
type ProgressionStore interface {
	// InUserTx runs fn in a transaction scoped to uid. The transaction
	// commits when fn returns nil and rolls back otherwise.
	InUserTx(ctx context.Context, uid string, fn func(ctx context.Context, tx ProgressionTx) error) error
}

// ProgressionTx is the set of operations available inside a user transaction.
type ProgressionTx interface {
	// Profile returns the locked profile. ErrProfileNotFound if absent.
	Profile(ctx context.Context) (*profile.Profile, error)

	// Session returns one of the user's sessions. ErrSessionNotFound if absent.
	Session(ctx context.Context, id string) (*session.Session, error)

	// MarkCompleted swaps the stored session from in-progress to completed
	// with the score, xp and completion time carried by s. If the stored
	// session is no longer in-progress it returns ErrInvalidStateTransition.
	MarkCompleted(ctx context.Context, s *session.Session) error

	// CompletedSessions returns the user's full completed history.
	CompletedSessions(ctx context.Context) ([]progression.CompletedSession, error)

	// SaveProgress writes the progression fields of p.
	SaveProgress(ctx context.Context, p *profile.Profile) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HANDLER DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Env bundles what every handler needs besides its repositories.
type Env struct {
	Clock     timeutil.Clock
	DayZone   *time.Location
	Publisher shared.EventPublisher
	Log       *logger.Logger
}

func (e Env) withDefaults() Env {
	if e.Clock == nil {
		e.Clock = timeutil.SystemClock{}
	}
	if e.DayZone == nil {
		e.DayZone = timeutil.DefaultZone
	}
	if e.Log == nil {
		e.Log = logger.Nop()
	}
	return e
}

func (e Env) now() time.Time {
	return e.Clock.Now().UTC()
}

// publish hands events to the bus after commit. Failures are logged and
// never change the outcome of the command.
func (e Env) publish(events ...shared.Event) {
	if e.Publisher == nil {
		return
	}
	for _, ev := range events {
		if err := e.Publisher.Publish(ev); err != nil {
			e.Log.Warn("failed to publish event",
				logger.String("event_type", string(ev.EventType())),
				logger.UserID(ev.AggregateID()),
				logger.Err(err),
			)
		}
	}
}
