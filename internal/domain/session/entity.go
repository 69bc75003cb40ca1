// Package session содержит доменную модель учебной сессии FeynLearn:
// пользователь объясняет тему ИИ-"студенту", а сессия хранит диалог и итог.
// Сущность и её переходы ничего не знают о хранилище.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние сессии.
type Status string

const (
	// StatusInProgress - начальное состояние, единственное изменяемое.
	StatusInProgress Status = "in-progress"
	// StatusCompleted - терминальное, XP начислен ровно один раз.
	StatusCompleted Status = "completed"
	// StatusAbandoned - терминальное, без начисления.
	StatusAbandoned Status = "abandoned"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusAbandoned:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true для завершённых и брошенных сессий.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Role - автор сообщения в диалоге.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// IsValid проверяет, что роль корректна.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAI
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Message - одна реплика диалога. Последовательность только дополняется.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MaxMessageLength ограничивает одну реплику.
const MaxMessageLength = 20000

// MaxContentLength ограничивает исходный фрагмент материала.
const MaxContentLength = 10000

// Session - учебная сессия пользователя.
type Session struct {
	ID                string
	UserID            string
	Topic             string
	Subject           string
	Content           string // фрагмент исходного материала, контекст для LLM
	Score             int    // 0-100 после завершения, 0 пока идёт
	Duration          int    // минуты, информационное поле
	QuestionsAsked    int
	QuestionsAnswered int
	XPEarned          int
	Status            Status
	Messages          []Message
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// NewSessionParams - параметры создания сессии.
type NewSessionParams struct {
	UserID  string
	Topic   string
	Subject string
	Content string
}

// New создаёт сессию в состоянии in-progress с обнулёнными счётчиками.
func New(p NewSessionParams, now time.Time) (*Session, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, shared.ErrInvalidUserID
	}
	topic := strings.TrimSpace(p.Topic)
	subject := strings.TrimSpace(p.Subject)
	if topic == "" || subject == "" {
		return nil, shared.Validation("session", "Create", "topic and subject are required")
	}

	content := shared.Truncate(p.Content, MaxContentLength)

	return &Session{
		ID:        uuid.NewString(),
		UserID:    p.UserID,
		Topic:     topic,
		Subject:   subject,
		Content:   content,
		Status:    StatusInProgress,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Session) requireInProgress() error {
	if s.Status != StatusInProgress {
		return shared.ErrInvalidStateTransition
	}
	return nil
}

// NewMessage проверяет и создаёт реплику.
func NewMessage(role Role, content string, at time.Time) (Message, error) {
	if !role.IsValid() {
		return Message{}, shared.Validation("session", "AppendMessage", "role must be user or ai")
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, shared.Validation("session", "AppendMessage", "message content is required")
	}
	if len(content) > MaxMessageLength {
		return Message{}, shared.NewDomainError("session", "AppendMessage", shared.ErrValueOutOfRange, "message is too long")
	}
	if at.IsZero() {
		return Message{}, shared.Validation("session", "AppendMessage", "message timestamp is required")
	}
	return Message{Role: role, Content: content, Timestamp: at}, nil
}

// AppendMessage добавляет реплику. Разрешено только в in-progress.
func (s *Session) AppendMessage(m Message) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	s.Messages = append(s.Messages, m)
	if m.Timestamp.After(s.UpdatedAt) {
		s.UpdatedAt = m.Timestamp
	}
	return nil
}

// Patch - белый список изменяемых полей. nil означает "не менять".
// Оценку выставляет только Complete: пока сессия идёт, score равен 0.
type Patch struct {
	Topic             *string
	Subject           *string
	Content           *string
	Duration          *int
	QuestionsAsked    *int
	QuestionsAnswered *int
}

// IsEmpty возвращает true, если патч ничего не меняет.
func (p Patch) IsEmpty() bool {
	return p.Topic == nil && p.Subject == nil && p.Content == nil &&
		p.Duration == nil && p.QuestionsAsked == nil && p.QuestionsAnswered == nil
}

// Validate проверяет значения патча.
func (p Patch) Validate() error {
	if p.Topic != nil && strings.TrimSpace(*p.Topic) == "" {
		return shared.Validation("session", "Patch", "topic cannot be empty")
	}
	if p.Subject != nil && strings.TrimSpace(*p.Subject) == "" {
		return shared.Validation("session", "Patch", "subject cannot be empty")
	}
	for _, v := range []*int{p.Duration, p.QuestionsAsked, p.QuestionsAnswered} {
		if v != nil && *v < 0 {
			return shared.NewDomainError("session", "Patch", shared.ErrNegativeValue, "counters cannot be negative")
		}
	}
	return nil
}

// Apply применяет патч (last-write-wins). Разрешено только в in-progress.
func (s *Session) Apply(p Patch, now time.Time) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if p.Topic != nil {
		s.Topic = strings.TrimSpace(*p.Topic)
	}
	if p.Subject != nil {
		s.Subject = strings.TrimSpace(*p.Subject)
	}
	if p.Content != nil {
		s.Content = shared.Truncate(*p.Content, MaxContentLength)
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.QuestionsAsked != nil {
		s.QuestionsAsked = *p.QuestionsAsked
	}
	if p.QuestionsAnswered != nil {
		s.QuestionsAnswered = *p.QuestionsAnswered
	}
	s.UpdatedAt = now
	return nil
}

// Complete переводит сессию в completed. Вызывается один раз:
// повторный вызов возвращает ErrInvalidStateTransition.
func (s *Session) Complete(score, xpEarned int, now time.Time) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	if err := progression.ValidateCompletion(score, xpEarned); err != nil {
		return err
	}
	s.Status = StatusCompleted
	s.Score = score
	s.XPEarned = xpEarned
	s.CompletedAt = &now
	s.UpdatedAt = now
	return nil
}

// Abandon переводит сессию в abandoned без начисления.
func (s *Session) Abandon(now time.Time) error {
	if err := s.requireInProgress(); err != nil {
		return err
	}
	s.Status = StatusAbandoned
	s.UpdatedAt = now
	return nil
}

// AsCompleted возвращает данные для пересчёта прогрессии.
func (s *Session) AsCompleted() progression.CompletedSession {
	return progression.CompletedSession{Score: s.Score, XPEarned: s.XPEarned}
}

// UserMessages возвращает только реплики пользователя.
func (s *Session) UserMessages() []Message {
	out := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			out = append(out, m)
		}
	}
	return out
}
