package memory

import (
	"context"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct {
	s *Store
}

var _ notification.Repository = (*NotificationRepository)(nil)

// Create stores a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.notifications[n.ID]; ok {
		return shared.NewDomainError("notification", "Create", shared.ErrAlreadyExists, "notification already exists")
	}
	r.s.notifications[n.ID] = cloneNotification(n)
	r.s.notificationsByUser[n.UserID] = append(r.s.notificationsByUser[n.UserID], n.ID)
	return nil
}

// ListByUser returns up to limit notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, uid string, limit int) ([]*notification.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.notificationsByUser[uid]
	out := make([]*notification.Notification, 0, min(limit, len(ids)))
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, cloneNotification(r.s.notifications[ids[i]]))
	}
	return out, nil
}

// CountUnread returns the number of unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, uid string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, id := range r.s.notificationsByUser[uid] {
		if !r.s.notifications[id].Read {
			count++
		}
	}
	return count, nil
}

// MarkRead marks one notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, uid, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok || n.UserID != uid {
		return shared.ErrNotificationNotFound
	}
	n.MarkRead()
	return nil
}

// MarkAllRead marks every unread notification of uid and returns how many changed.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, uid string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	count := 0
	for _, id := range r.s.notificationsByUser[uid] {
		n := r.s.notifications[id]
		if !n.Read {
			n.MarkRead()
			count++
		}
	}
	return count, nil
}

// Delete removes a notification.
func (r *NotificationRepository) Delete(ctx context.Context, uid, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[id]
	if !ok || n.UserID != uid {
		return shared.ErrNotificationNotFound
	}
	delete(r.s.notifications, id)

	ids := r.s.notificationsByUser[uid]
	for i, v := range ids {
		if v == id {
			r.s.notificationsByUser[uid] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}
