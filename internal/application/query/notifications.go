package query

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST NOTIFICATIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListNotificationsQuery содержит параметры списка уведомлений.
type ListNotificationsQuery struct {
	UserID string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// CountOnly - вернуть только число непрочитанных.
	CountOnly bool
}

// ListNotificationsResult содержит уведомления и счётчик непрочитанных.
type ListNotificationsResult struct {
	Notifications []*notification.Notification
	UnreadCount   int
}

// ListNotificationsHandler обрабатывает запрос уведомлений.
type ListNotificationsHandler struct {
	notifications notification.Repository
}

// NewListNotificationsHandler создаёт новый обработчик.
func NewListNotificationsHandler(notifications notification.Repository) *ListNotificationsHandler {
	return &ListNotificationsHandler{notifications: notifications}
}

// Handle выполняет запрос.
func (h *ListNotificationsHandler) Handle(ctx context.Context, q ListNotificationsQuery) (*ListNotificationsResult, error) {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return nil, fmt.Errorf("list_notifications: %w", err)
	}

	unread, err := h.notifications.CountUnread(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("list_notifications: failed to count unread: %w", err)
	}
	result := &ListNotificationsResult{UnreadCount: unread}
	if q.CountOnly {
		return result, nil
	}

	list, err := h.notifications.ListByUser(ctx, q.UserID, notification.ListLimit(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("list_notifications: %w", err)
	}
	result.Notifications = list
	return result, nil
}
