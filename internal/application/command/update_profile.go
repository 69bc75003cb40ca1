package command

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROFILE COMMAND
// User edits: name, avatar, bio, partial preference and notification merges.
// Progression fields are never written here.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProfileCommand contains the patch to apply.
type UpdateProfileCommand struct {
	UserID string
	Patch  profile.Patch

	// Recalculate rebuilds stats from history instead of applying Patch.
	Recalculate bool
}

// Validate validates the command.
func (c UpdateProfileCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.Recalculate {
		return nil
	}
	return c.Patch.Validate()
}

// UpdateProfileHandler handles UpdateProfileCommand.
type UpdateProfileHandler struct {
	profiles    profile.Repository
	recalculate *RecalculateStatsHandler
	env         Env
}

// NewUpdateProfileHandler creates a new UpdateProfileHandler.
func NewUpdateProfileHandler(profiles profile.Repository, recalculate *RecalculateStatsHandler, env Env) *UpdateProfileHandler {
	return &UpdateProfileHandler{profiles: profiles, recalculate: recalculate, env: env.withDefaults()}
}

// Handle applies the update and returns the fresh profile.
func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (*profile.Profile, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_profile: %w", err)
	}

	if cmd.Recalculate {
		res, err := h.recalculate.Handle(ctx, RecalculateStatsCommand{UserID: cmd.UserID})
		if err != nil {
			return nil, err
		}
		return res.Profile, nil
	}

	p, err := h.profiles.GetByUID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("update_profile: failed to get profile: %w", err)
	}
	if cmd.Patch.IsEmpty() {
		return p, nil
	}

	if err := p.Apply(cmd.Patch, h.env.now()); err != nil {
		return nil, fmt.Errorf("update_profile: %w", err)
	}
	if err := h.profiles.UpdateDetails(ctx, p); err != nil {
		return nil, fmt.Errorf("update_profile: failed to save profile: %w", err)
	}

	h.env.Log.Debug("profile updated", logger.UserID(cmd.UserID))
	return p, nil
}
