// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/leaderboard"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Строит таблицу лидеров заново на каждый запрос: кэша нет, поэтому
// результат всегда отражает последние записанные профили.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 50, максимум 100).
	Limit int

	// ViewerID - если задан, в результат попадает его позиция.
	ViewerID string
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда.
	Entries []leaderboard.Entry `json:"leaderboard"`

	// TotalCount - общее количество профилей.
	TotalCount int `json:"totalCount"`

	// ViewerRank - позиция ViewerID (0, если не запрошена или нет профиля).
	ViewerRank int `json:"viewerRank,omitempty"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generatedAt"`
}

// GetLeaderboardHandler обрабатывает запрос лидерборда.
type GetLeaderboardHandler struct {
	profiles profile.Repository
	clock    timeutil.Clock
}

// NewGetLeaderboardHandler создаёт новый обработчик.
func NewGetLeaderboardHandler(profiles profile.Repository, clock timeutil.Clock) *GetLeaderboardHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetLeaderboardHandler{profiles: profiles, clock: clock}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	snapshots, err := h.profiles.ListSnapshots(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to list profiles: %w", err)
	}

	result := &GetLeaderboardResult{
		Entries:     leaderboard.Project(snapshots, q.Limit),
		TotalCount:  len(snapshots),
		GeneratedAt: h.clock.Now(),
	}

	if q.ViewerID != "" {
		result.ViewerRank = int(leaderboard.NewRanking(snapshots).RankOf(q.ViewerID))
	}

	return result, nil
}
