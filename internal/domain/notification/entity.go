// Package notification содержит доменную модель уведомлений FeynLearn.
// Уведомления появляются из событий прогрессии, при первом входе
// и из фоновых задач (напоминания о серии, еженедельная сводка).
package notification

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тип уведомления.
type Type string

const (
	// TypeStreak - серия активных дней: milestone или потеря.
	// "🔥 1 Week Streak!"
	TypeStreak Type = "streak"

	// TypeAchievement - сессии, уровни, XP.
	// "🎮 Level 2 Reached!"
	TypeAchievement Type = "achievement"

	// TypeReminder - напоминание не потерять серию.
	TypeReminder Type = "reminder"

	// TypeSystem - приветствие, сводки, служебные сообщения.
	TypeSystem Type = "system"
)

// IsValid проверяет, что тип уведомления корректен.
func (t Type) IsValid() bool {
	switch t {
	case TypeStreak, TypeAchievement, TypeReminder, TypeSystem:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление типа.
func (t Type) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Ограничения полей.
const (
	MaxTitleLength   = 200
	MaxMessageLength = 2000
	MaxURLLength     = 500
)

// Notification представляет уведомление пользователя.
type Notification struct {
	// ID - уникальный идентификатор уведомления.
	ID string

	// UserID - владелец.
	UserID string

	// Type - тип уведомления.
	Type Type

	// Title - заголовок.
	Title string

	// Message - текст.
	Message string

	// Read - прочитано ли. Меняется только false -> true.
	Read bool

	// ActionURL - куда вести пользователя (опционально).
	ActionURL string

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// NewNotificationParams содержит параметры для создания уведомления.
type NewNotificationParams struct {
	UserID    string
	Type      Type
	Title     string
	Message   string
	ActionURL string
}

// Validate проверяет параметры.
func (p NewNotificationParams) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return shared.ErrInvalidUserID
	}
	if p.Type == "" || strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Message) == "" {
		return shared.Validation("notification", "Create", "type, title, and message are required")
	}
	if !p.Type.IsValid() {
		return shared.ErrInvalidNotification
	}
	if len(p.Title) > MaxTitleLength || len(p.Message) > MaxMessageLength || len(p.ActionURL) > MaxURLLength {
		return shared.NewDomainError("notification", "Create", shared.ErrValueOutOfRange, "notification is too long")
	}
	return nil
}

// New создаёт непрочитанное уведомление.
func New(p NewNotificationParams, now time.Time) (*Notification, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Notification{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Type:      p.Type,
		Title:     strings.TrimSpace(p.Title),
		Message:   strings.TrimSpace(p.Message),
		ActionURL: strings.TrimSpace(p.ActionURL),
		CreatedAt: now,
	}, nil
}

// MarkRead помечает уведомление прочитанным. Повторный вызов ничего не меняет.
func (n *Notification) MarkRead() {
	n.Read = true
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultListLimit - размер страницы по умолчанию.
const DefaultListLimit = 20

// ListLimit нормализует запрошенный лимит: по умолчанию 20, не больше 100.
func ListLimit(requested int) int {
	return shared.NewLimit(requested, DefaultListLimit).Int()
}
