package query

import (
	"context"
	"fmt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// Размеры выборок сессий.
const (
	DefaultSessionsLimit = 50
	RecentSessionsLimit  = 5
)

// ListSessionsQuery содержит параметры списка сессий.
type ListSessionsQuery struct {
	UserID string

	// Limit - количество записей (по умолчанию 50, максимум 100).
	Limit int

	// Recent - последние 5 сессий, если Limit не задан.
	Recent bool
}

// ListSessionsHandler возвращает сессии пользователя, новые первыми.
type ListSessionsHandler struct {
	sessions session.Repository
}

// NewListSessionsHandler создаёт новый обработчик.
func NewListSessionsHandler(sessions session.Repository) *ListSessionsHandler {
	return &ListSessionsHandler{sessions: sessions}
}

// Handle выполняет запрос.
func (h *ListSessionsHandler) Handle(ctx context.Context, q ListSessionsQuery) ([]*session.Session, error) {
	if _, err := shared.NewUserID(q.UserID); err != nil {
		return nil, fmt.Errorf("list_sessions: %w", err)
	}

	def := DefaultSessionsLimit
	if q.Recent {
		def = RecentSessionsLimit
	}
	limit := shared.NewLimit(q.Limit, def).Int()

	list, err := h.sessions.ListByUser(ctx, q.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list_sessions: %w", err)
	}
	return list, nil
}

// GetSessionHandler возвращает одну сессию пользователя.
type GetSessionHandler struct {
	sessions session.Repository
}

// NewGetSessionHandler создаёт новый обработчик.
func NewGetSessionHandler(sessions session.Repository) *GetSessionHandler {
	return &GetSessionHandler{sessions: sessions}
}

// Handle выполняет запрос. Чужая сессия неотличима от отсутствующей.
func (h *GetSessionHandler) Handle(ctx context.Context, uid, id string) (*session.Session, error) {
	s, err := h.sessions.GetByID(ctx, uid, id)
	if err != nil {
		return nil, fmt.Errorf("get_session: %w", err)
	}
	return s, nil
}
