package postgres

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

var _ notification.Repository = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, read, action_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.Read, n.ActionURL, n.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("notification", "Create", shared.ErrAlreadyExists, "notification already exists")
		}
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns up to limit notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, uid string, limit int) ([]*notification.Notification, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, type, title, message, read, action_url, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var n notification.Notification
		var typ string
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.Read, &n.ActionURL, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = notification.Type(typ)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// CountUnread returns the number of unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, uid string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, uid,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, uid, id string) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, uid,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of uid.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, uid string) (int, error) {
	tag, err := r.conn.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, uid,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes a notification.
func (r *NotificationRepository) Delete(ctx context.Context, uid, id string) error {
	tag, err := r.conn.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, uid,
	)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotificationNotFound
	}
	return nil
}
