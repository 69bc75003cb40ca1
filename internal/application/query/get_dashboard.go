package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD QUERY
// Сводка для главной страницы: профиль, последние сессии, непрочитанные
// уведомления и прогресс недели. Источники читаются параллельно.
// ══════════════════════════════════════════════════════════════════════════════

// Dashboard - данные главной страницы.
type Dashboard struct {
	Profile        *profile.Profile
	RecentSessions []*session.Session
	UnreadCount    int

	// XPToNextLevel - сколько XP осталось до следующего уровня.
	XPToNextLevel int

	// WeekSessions, WeekXP - завершённые сессии и XP с начала недели.
	WeekSessions int
	WeekXP       int
}

// GetDashboardHandler обрабатывает запрос сводки.
type GetDashboardHandler struct {
	profiles      profile.Repository
	sessions      session.Repository
	notifications notification.Repository
	clock         timeutil.Clock
	zone          *time.Location
}

// NewGetDashboardHandler создаёт новый обработчик.
func NewGetDashboardHandler(
	profiles profile.Repository,
	sessions session.Repository,
	notifications notification.Repository,
	clock timeutil.Clock,
	zone *time.Location,
) *GetDashboardHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if zone == nil {
		zone = timeutil.DefaultZone
	}
	return &GetDashboardHandler{
		profiles:      profiles,
		sessions:      sessions,
		notifications: notifications,
		clock:         clock,
		zone:          zone,
	}
}

// Handle выполняет запрос.
func (h *GetDashboardHandler) Handle(ctx context.Context, uid string) (*Dashboard, error) {
	if _, err := shared.NewUserID(uid); err != nil {
		return nil, fmt.Errorf("get_dashboard: %w", err)
	}

	d := &Dashboard{}
	weekStart := timeutil.StartOfWeek(h.clock.Now(), h.zone)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := h.profiles.GetByUID(gctx, uid)
		if err != nil {
			return err
		}
		d.Profile = p
		return nil
	})
	g.Go(func() error {
		list, err := h.sessions.ListByUser(gctx, uid, RecentSessionsLimit)
		if err != nil {
			return err
		}
		d.RecentSessions = list
		return nil
	})
	g.Go(func() error {
		n, err := h.notifications.CountUnread(gctx, uid)
		if err != nil {
			return err
		}
		d.UnreadCount = n
		return nil
	})
	g.Go(func() error {
		count, xp, err := h.sessions.CountCompletedSince(gctx, uid, weekStart)
		if err != nil {
			return err
		}
		d.WeekSessions, d.WeekXP = count, xp
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get_dashboard: %w", err)
	}

	d.XPToNextLevel = progression.LevelForXP(d.Profile.XP)*progression.XPPerLevel - d.Profile.XP
	return d, nil
}
