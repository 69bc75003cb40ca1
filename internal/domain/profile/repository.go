package profile

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции с профилями вне транзакции прогрессии.
type Repository interface {
	// Create сохраняет новый профиль.
	// Возвращает ошибку вида ErrAlreadyExists, если профиль уже создан.
	Create(ctx context.Context, p *Profile) error

	// GetByUID возвращает профиль.
	// Возвращает ErrProfileNotFound, если профиля нет.
	GetByUID(ctx context.Context, uid string) (*Profile, error)

	// UpdateDetails сохраняет имя, аватар, био и настройки.
	// Поля прогрессии не записываются.
	UpdateDetails(ctx context.Context, p *Profile) error

	// ListSnapshots возвращает срезы всех профилей в порядке создания.
	ListSnapshots(ctx context.Context) ([]Snapshot, error)

	// ListAll возвращает все профили в порядке создания.
	// Используется фоновыми задачами.
	ListAll(ctx context.Context) ([]*Profile, error)
}
