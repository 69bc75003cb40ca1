package notification

import "context"

// Repository определяет хранилище уведомлений. Все операции ограничены
// одним пользователем: id чужого уведомления даёт ErrNotificationNotFound.
type Repository interface {
	// Create сохраняет уведомление.
	Create(ctx context.Context, n *Notification) error

	// ListByUser возвращает последние уведомления, новые первыми.
	ListByUser(ctx context.Context, uid string, limit int) ([]*Notification, error)

	// CountUnread возвращает число непрочитанных уведомлений.
	CountUnread(ctx context.Context, uid string) (int, error)

	// MarkRead помечает одно уведомление прочитанным.
	MarkRead(ctx context.Context, uid, id string) error

	// MarkAllRead помечает прочитанными все уведомления пользователя
	// и возвращает их число.
	MarkAllRead(ctx context.Context, uid string) (int, error)

	// Delete удаляет уведомление.
	Delete(ctx context.Context, uid, id string) error
}
