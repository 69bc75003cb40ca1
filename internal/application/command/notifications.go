package command

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION COMMANDS
// Direct create (system and test use), read-state transitions, delete.
// ══════════════════════════════════════════════════════════════════════════════

// CreateNotificationCommand contains a notification to store.
type CreateNotificationCommand struct {
	UserID    string
	Type      notification.Type
	Title     string
	Message   string
	ActionURL string
}

// CreateNotificationHandler handles CreateNotificationCommand.
type CreateNotificationHandler struct {
	notifications notification.Repository
	env           Env
}

// NewCreateNotificationHandler creates a new CreateNotificationHandler.
func NewCreateNotificationHandler(notifications notification.Repository, env Env) *CreateNotificationHandler {
	return &CreateNotificationHandler{notifications: notifications, env: env.withDefaults()}
}

// Handle validates and stores the notification.
func (h *CreateNotificationHandler) Handle(ctx context.Context, cmd CreateNotificationCommand) (*notification.Notification, error) {
	n, err := notification.New(notification.NewNotificationParams{
		UserID:    cmd.UserID,
		Type:      cmd.Type,
		Title:     cmd.Title,
		Message:   cmd.Message,
		ActionURL: cmd.ActionURL,
	}, h.env.now())
	if err != nil {
		return nil, fmt.Errorf("create_notification: %w", err)
	}

	if err := h.notifications.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create_notification: failed to save: %w", err)
	}
	return n, nil
}

// MarkNotificationsReadCommand marks one notification, or all of them.
type MarkNotificationsReadCommand struct {
	UserID         string
	NotificationID string
	All            bool
}

// Validate validates the command.
func (c MarkNotificationsReadCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if !c.All && c.NotificationID == "" {
		return shared.Validation("notification", "MarkRead", "provide notificationId or set markAll to true")
	}
	return nil
}

// MarkNotificationsReadHandler handles MarkNotificationsReadCommand.
type MarkNotificationsReadHandler struct {
	notifications notification.Repository
	env           Env
}

// NewMarkNotificationsReadHandler creates a new MarkNotificationsReadHandler.
func NewMarkNotificationsReadHandler(notifications notification.Repository, env Env) *MarkNotificationsReadHandler {
	return &MarkNotificationsReadHandler{notifications: notifications, env: env.withDefaults()}
}

// Handle marks notifications read and returns how many were affected.
func (h *MarkNotificationsReadHandler) Handle(ctx context.Context, cmd MarkNotificationsReadCommand) (int, error) {
	if err := cmd.Validate(); err != nil {
		return 0, fmt.Errorf("mark_read: %w", err)
	}

	if cmd.All {
		n, err := h.notifications.MarkAllRead(ctx, cmd.UserID)
		if err != nil {
			return 0, fmt.Errorf("mark_read: %w", err)
		}
		h.env.Log.Debug("notifications marked read", logger.UserID(cmd.UserID), logger.Int("count", n))
		return n, nil
	}

	if err := h.notifications.MarkRead(ctx, cmd.UserID, cmd.NotificationID); err != nil {
		return 0, fmt.Errorf("mark_read: %w", err)
	}
	return 1, nil
}

// DeleteNotificationCommand deletes one notification.
type DeleteNotificationCommand struct {
	UserID         string
	NotificationID string
}

// DeleteNotificationHandler handles DeleteNotificationCommand.
type DeleteNotificationHandler struct {
	notifications notification.Repository
	env           Env
}

// NewDeleteNotificationHandler creates a new DeleteNotificationHandler.
func NewDeleteNotificationHandler(notifications notification.Repository, env Env) *DeleteNotificationHandler {
	return &DeleteNotificationHandler{notifications: notifications, env: env.withDefaults()}
}

// Handle deletes the notification.
func (h *DeleteNotificationHandler) Handle(ctx context.Context, cmd DeleteNotificationCommand) error {
	if _, err := shared.NewUserID(cmd.UserID); err != nil {
		return fmt.Errorf("delete_notification: %w", err)
	}
	if cmd.NotificationID == "" {
		return fmt.Errorf("delete_notification: %w",
			shared.Validation("notification", "Delete", "notification id is required"))
	}
	if err := h.notifications.Delete(ctx, cmd.UserID, cmd.NotificationID); err != nil {
		return fmt.Errorf("delete_notification: %w", err)
	}
	h.env.Log.Debug("notification deleted", logger.UserID(cmd.UserID), logger.NotificationID(cmd.NotificationID))
	return nil
}
