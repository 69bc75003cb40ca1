package command

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK-IN COMMAND
// Daily check: extends, keeps or resets the streak and records today as the
// last active day.
// ══════════════════════════════════════════════════════════════════════════════

// CheckInCommand contains the data for a daily check-in.
type CheckInCommand struct {
	UserID string
}

// Validate validates the command.
func (c CheckInCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	return nil
}

// CheckInResult contains the result of a check-in.
type CheckInResult struct {
	Streak  int
	Profile *profile.Profile
	Events  []progression.Event
}

// CheckInHandler handles CheckInCommand.
type CheckInHandler struct {
	store ProgressionStore
	env   Env
}

// NewCheckInHandler creates a new CheckInHandler.
func NewCheckInHandler(store ProgressionStore, env Env) *CheckInHandler {
	return &CheckInHandler{store: store, env: env.withDefaults()}
}

// Handle executes the check-in.
func (h *CheckInHandler) Handle(ctx context.Context, cmd CheckInCommand) (*CheckInResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("check_in: %w", err)
	}

	now := h.env.now()
	result := &CheckInResult{}

	err := h.store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, tx ProgressionTx) error {
		p, err := tx.Profile(ctx)
		if err != nil {
			return err
		}

		next, events := progression.CheckIn(p.Progress(), now, h.env.DayZone)
		p.ApplyProgress(next, now)
		if err := tx.SaveProgress(ctx, p); err != nil {
			return err
		}

		result.Streak = p.Streak
		result.Profile = p
		result.Events = events
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("check_in: %w", err)
	}

	h.env.publish(progression.Wrap(cmd.UserID, result.Events, now)...)

	h.env.Log.Debug("daily check-in",
		logger.UserID(cmd.UserID),
		logger.Int("streak", result.Streak),
		logger.Int("events", len(result.Events)),
	)

	return result, nil
}
