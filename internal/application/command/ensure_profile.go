package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENSURE PROFILE COMMAND
// Lazy provisioning: the first authenticated access creates the profile and
// triggers the welcome notification. Later accesses optionally run the daily
// check so the streak reflects today.
// ══════════════════════════════════════════════════════════════════════════════

// EnsureProfileCommand contains the identity known for the caller.
type EnsureProfileCommand struct {
	UserID string
	Email  string
	Name   string
	Avatar string

	// DailyCheck runs the streak check for an already existing profile.
	DailyCheck bool
}

// Validate validates the command.
func (c EnsureProfileCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	return nil
}

// EnsureProfileResult contains the profile and whether it was just created.
type EnsureProfileResult struct {
	Profile *profile.Profile
	Created bool
}

// EnsureProfileHandler handles EnsureProfileCommand.
type EnsureProfileHandler struct {
	profiles profile.Repository
	checkIn  *CheckInHandler
	env      Env
}

// NewEnsureProfileHandler creates a new EnsureProfileHandler.
func NewEnsureProfileHandler(profiles profile.Repository, checkIn *CheckInHandler, env Env) *EnsureProfileHandler {
	return &EnsureProfileHandler{profiles: profiles, checkIn: checkIn, env: env.withDefaults()}
}

// Handle returns the caller's profile, creating it on first access.
func (h *EnsureProfileHandler) Handle(ctx context.Context, cmd EnsureProfileCommand) (*EnsureProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("ensure_profile: %w", err)
	}

	existing, err := h.profiles.GetByUID(ctx, cmd.UserID)
	switch {
	case err == nil:
		return h.existing(ctx, existing, cmd)
	case !shared.IsNotFound(err):
		return nil, fmt.Errorf("ensure_profile: failed to get profile: %w", err)
	}

	now := h.env.now()
	p, err := profile.New(profile.NewProfileParams{
		UID:    cmd.UserID,
		Email:  cmd.Email,
		Name:   cmd.Name,
		Avatar: cmd.Avatar,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("ensure_profile: %w", err)
	}

	if err := h.profiles.Create(ctx, p); err != nil {
		// A concurrent request provisioned it first.
		if errors.Is(err, shared.ErrAlreadyExists) {
			raced, getErr := h.profiles.GetByUID(ctx, cmd.UserID)
			if getErr != nil {
				return nil, fmt.Errorf("ensure_profile: failed to get profile: %w", getErr)
			}
			return &EnsureProfileResult{Profile: raced}, nil
		}
		return nil, fmt.Errorf("ensure_profile: failed to create profile: %w", err)
	}

	h.env.publish(shared.NewProfileProvisionedEvent(p.UID, p.Email, p.Name, now))
	h.env.Log.Info("profile provisioned", logger.UserID(p.UID))

	return &EnsureProfileResult{Profile: p, Created: true}, nil
}

func (h *EnsureProfileHandler) existing(ctx context.Context, p *profile.Profile, cmd EnsureProfileCommand) (*EnsureProfileResult, error) {
	if !cmd.DailyCheck || h.checkIn == nil {
		return &EnsureProfileResult{Profile: p}, nil
	}

	res, err := h.checkIn.Handle(ctx, CheckInCommand{UserID: cmd.UserID})
	if err != nil {
		// The profile is still served; the streak catches up on the next check.
		h.env.Log.Warn("daily check failed",
			logger.UserID(cmd.UserID),
			logger.Err(err),
		)
		return &EnsureProfileResult{Profile: p}, nil
	}
	return &EnsureProfileResult{Profile: res.Profile}, nil
}
