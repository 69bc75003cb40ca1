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
// RECALCULATE STATS COMMAND
// Rebuilds xp, level and totals from the completed session history.
// Silent: no progression events are emitted.
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateStatsCommand contains the data for a recalculation.
type RecalculateStatsCommand struct {
	UserID string
}

// Validate validates the command.
func (c RecalculateStatsCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	return nil
}

// RecalculateStatsResult contains the result of a recalculation.
type RecalculateStatsResult struct {
	Profile *profile.Profile

	// Drifted reports whether the stored totals differed from the history.
	Drifted bool
}

// RecalculateStatsHandler handles RecalculateStatsCommand.
type RecalculateStatsHandler struct {
	store ProgressionStore
	env   Env
}

// NewRecalculateStatsHandler creates a new RecalculateStatsHandler.
func NewRecalculateStatsHandler(store ProgressionStore, env Env) *RecalculateStatsHandler {
	return &RecalculateStatsHandler{store: store, env: env.withDefaults()}
}

// Handle executes the recalculation.
func (h *RecalculateStatsHandler) Handle(ctx context.Context, cmd RecalculateStatsCommand) (*RecalculateStatsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("recalculate_stats: %w", err)
	}

	now := h.env.now()
	result := &RecalculateStatsResult{}

	err := h.store.InUserTx(ctx, cmd.UserID, func(ctx context.Context, tx ProgressionTx) error {
		p, err := tx.Profile(ctx)
		if err != nil {
			return err
		}
		completed, err := tx.CompletedSessions(ctx)
		if err != nil {
			return err
		}

		before := p.Progress()
		after := before.WithTotals(progression.Recalculate(completed))
		result.Drifted = before != after

		p.ApplyProgress(after, now)
		if err := tx.SaveProgress(ctx, p); err != nil {
			return err
		}
		result.Profile = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recalculate_stats: %w", err)
	}

	if result.Drifted {
		h.env.Log.Info("profile stats repaired",
			logger.UserID(cmd.UserID),
			logger.Int("xp", result.Profile.XP),
			logger.Int("total_sessions", result.Profile.TotalSessions),
		)
	}

	return result, nil
}
