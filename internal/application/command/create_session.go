package command

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateSessionCommand contains the data to start a teaching session.
type CreateSessionCommand struct {
	UserID  string
	Topic   string
	Subject string
	Content string
}

// Validate validates the command.
func (c CreateSessionCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	return nil
}

// CreateSessionHandler handles CreateSessionCommand.
type CreateSessionHandler struct {
	sessions session.Repository
	env      Env
}

// NewCreateSessionHandler creates a new CreateSessionHandler.
func NewCreateSessionHandler(sessions session.Repository, env Env) *CreateSessionHandler {
	return &CreateSessionHandler{sessions: sessions, env: env.withDefaults()}
}

// Handle creates the session in the in-progress state.
func (h *CreateSessionHandler) Handle(ctx context.Context, cmd CreateSessionCommand) (*session.Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_session: %w", err)
	}

	s, err := session.New(session.NewSessionParams{
		UserID:  cmd.UserID,
		Topic:   cmd.Topic,
		Subject: cmd.Subject,
		Content: cmd.Content,
	}, h.env.now())
	if err != nil {
		return nil, fmt.Errorf("create_session: %w", err)
	}

	if err := h.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create_session: failed to save session: %w", err)
	}

	h.env.Log.Info("session created",
		logger.UserID(cmd.UserID),
		logger.SessionID(s.ID),
		logger.String("topic", s.Topic),
	)
	return s, nil
}
