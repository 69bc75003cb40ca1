package session

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с сессиями. Все методы работают в рамках
// одного пользователя: чужую сессию нельзя ни прочитать, ни изменить.
type Repository interface {
	// Create сохраняет новую сессию.
	Create(ctx context.Context, s *Session) error

	// GetByID возвращает сессию пользователя.
	// Возвращает ErrSessionNotFound, если сессии нет.
	GetByID(ctx context.Context, uid, id string) (*Session, error)

	// ListByUser возвращает последние сессии, новые первыми.
	ListByUser(ctx context.Context, uid string, limit int) ([]*Session, error)

	// SaveInProgress записывает изменённые поля сессии при условии, что в
	// хранилище она всё ещё in-progress. Иначе ErrInvalidStateTransition.
	SaveInProgress(ctx context.Context, s *Session) error

	// AppendMessage атомарно дописывает реплику в конец диалога
	// (только для in-progress).
	AppendMessage(ctx context.Context, uid, id string, m Message) error

	// ListCompleted возвращает все завершённые сессии пользователя
	// в порядке завершения.
	ListCompleted(ctx context.Context, uid string) ([]*Session, error)

	// CountCompletedSince считает завершённые сессии и набранный XP с момента since.
	CountCompletedSince(ctx context.Context, uid string, since time.Time) (count int, xp int, err error)
}
