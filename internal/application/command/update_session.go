package command

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PATCH SESSION COMMAND
// Whitelisted field merge on an in-progress session. Last write wins.
// ══════════════════════════════════════════════════════════════════════════════

// PatchSessionCommand contains the fields to change.
type PatchSessionCommand struct {
	UserID    string
	SessionID string
	Patch     session.Patch
}

// Validate validates the command.
func (c PatchSessionCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.SessionID == "" {
		return shared.Validation("session", "Patch", "session id is required")
	}
	return c.Patch.Validate()
}

// PatchSessionHandler handles PatchSessionCommand.
type PatchSessionHandler struct {
	sessions session.Repository
	env      Env
}

// NewPatchSessionHandler creates a new PatchSessionHandler.
func NewPatchSessionHandler(sessions session.Repository, env Env) *PatchSessionHandler {
	return &PatchSessionHandler{sessions: sessions, env: env.withDefaults()}
}

// Handle applies the patch.
func (h *PatchSessionHandler) Handle(ctx context.Context, cmd PatchSessionCommand) (*session.Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("patch_session: %w", err)
	}

	s, err := h.sessions.GetByID(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("patch_session: %w", err)
	}
	if cmd.Patch.IsEmpty() {
		return s, nil
	}

	if err := s.Apply(cmd.Patch, h.env.now()); err != nil {
		return nil, fmt.Errorf("patch_session: %w", err)
	}
	if err := h.sessions.SaveInProgress(ctx, s); err != nil {
		return nil, fmt.Errorf("patch_session: %w", err)
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// APPEND MESSAGE COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AppendMessageCommand contains one chat turn.
type AppendMessageCommand struct {
	UserID    string
	SessionID string
	Role      session.Role
	Content   string
}

// Validate validates the command.
func (c AppendMessageCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.SessionID == "" {
		return shared.Validation("session", "AppendMessage", "session id is required")
	}
	return nil
}

// AppendMessageHandler handles AppendMessageCommand.
type AppendMessageHandler struct {
	sessions session.Repository
	env      Env
}

// NewAppendMessageHandler creates a new AppendMessageHandler.
func NewAppendMessageHandler(sessions session.Repository, env Env) *AppendMessageHandler {
	return &AppendMessageHandler{sessions: sessions, env: env.withDefaults()}
}

// Handle appends the message atomically at the end of the transcript.
func (h *AppendMessageHandler) Handle(ctx context.Context, cmd AppendMessageCommand) (*session.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("append_message: %w", err)
	}

	m, err := session.NewMessage(cmd.Role, cmd.Content, h.env.now())
	if err != nil {
		return nil, fmt.Errorf("append_message: %w", err)
	}

	if err := h.sessions.AppendMessage(ctx, cmd.UserID, cmd.SessionID, m); err != nil {
		return nil, fmt.Errorf("append_message: %w", err)
	}
	return &m, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ABANDON SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AbandonSessionCommand contains the session to abandon.
type AbandonSessionCommand struct {
	UserID    string
	SessionID string
}

// AbandonSessionHandler handles AbandonSessionCommand.
type AbandonSessionHandler struct {
	sessions session.Repository
	env      Env
}

// NewAbandonSessionHandler creates a new AbandonSessionHandler.
func NewAbandonSessionHandler(sessions session.Repository, env Env) *AbandonSessionHandler {
	return &AbandonSessionHandler{sessions: sessions, env: env.withDefaults()}
}

// Handle moves the session to abandoned. No progression is applied.
func (h *AbandonSessionHandler) Handle(ctx context.Context, cmd AbandonSessionCommand) (*session.Session, error) {
	if _, err := shared.NewUserID(cmd.UserID); err != nil {
		return nil, fmt.Errorf("abandon_session: %w", err)
	}

	s, err := h.sessions.GetByID(ctx, cmd.UserID, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("abandon_session: %w", err)
	}

	now := h.env.now()
	if err := s.Abandon(now); err != nil {
		return nil, fmt.Errorf("abandon_session: %w", err)
	}
	if err := h.sessions.SaveInProgress(ctx, s); err != nil {
		return nil, fmt.Errorf("abandon_session: %w", err)
	}

	h.env.publish(shared.NewSessionAbandonedEvent(cmd.UserID, s.ID, now))
	h.env.Log.Info("session abandoned", logger.UserID(cmd.UserID), logger.SessionID(s.ID))
	return s, nil
}
