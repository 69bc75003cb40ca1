package command

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE SESSION COMMAND
// One transaction per completion: lock profile, swap the session to
// completed, apply the session result and the daily check, save progress.
// A session can be completed once; later calls fail and change nothing.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteSessionCommand contains the data to complete a session.
type CompleteSessionCommand struct {
	UserID    string
	SessionID string
	Score     int
	XPEarned  int
}

// Validate validates the command.
func (c CompleteSessionCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.SessionID == "" {
		return shared.Validation("session", "Complete", "session id is required")
	}
	return progression.ValidateCompletion(c.Score, c.XPEarned)
}

// CompleteSessionResult contains the result of a completion.
type CompleteSessionResult struct {
	Session *session.Session
	Profile *profile.Profile
	Events  []progression.Event

	// LeveledUp is true when the completion raised the level.
	LeveledUp bool
}

// CompleteSessionHandler handles CompleteSessionCommand.
type CompleteSessionHandler struct {
	store ProgressionStore
	env   Env
}

// NewCompleteSessionHandler creates a new CompleteSessionHandler.
func NewCompleteSessionHandler(store ProgressionStore, env Env) *CompleteSessionHandler {
	return &CompleteSessionHandler{store: store, env: env.withDefaults()}
}

// Handle executes the completion.
func (h *CompleteSessionHandler) Handle(ctx context.Context, cmd CompleteSessionCommand) (*CompleteSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_session: %w", err)
	}

	now := h.env.now()
	result := &CompleteSessionResult{}

	err := h.store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, tx ProgressionTx) error {
		p, err := tx.Profile(ctx)
		if err != nil {
			return err
		}

		s, err := tx.Session(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if err := s.Complete(cmd.Score, cmd.XPEarned, now); err != nil {
			return err
		}
		if err := tx.MarkCompleted(ctx, s); err != nil {
			return err
		}

		oldLevel := p.Level
		next, events := progression.Complete(p.Progress(), cmd.Score, cmd.XPEarned, now, h.env.DayZone)
		p.ApplyProgress(next, now)
		if err := tx.SaveProgress(ctx, p); err != nil {
			return err
		}

		result.Session = s
		result.Profile = p
		result.Events = events
		result.LeveledUp = p.Level > oldLevel
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete_session: %w", err)
	}

	busEvents := append(
		[]shared.Event{shared.NewSessionCompletedEvent(cmd.UserID, cmd.SessionID, cmd.Score, cmd.XPEarned, now)},
		progression.Wrap(cmd.UserID, result.Events, now)...,
	)
	h.env.publish(busEvents...)

	h.env.Log.Info("session completed",
		logger.UserID(cmd.UserID),
		logger.SessionID(cmd.SessionID),
		logger.XPAmount(cmd.XPEarned),
		logger.Int("score", cmd.Score),
		logger.Int("level", result.Profile.Level),
		logger.Int("streak", result.Profile.Streak),
		logger.Int("events", len(result.Events)),
	)

	return result, nil
}
