package http

import (
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/application/query"
	"github.com/feynlearn/feynlearn-hub/internal/domain/notification"
	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// Domain entities carry no JSON tags; the wire shape lives here.
// ══════════════════════════════════════════════════════════════════════════════

type profileDTO struct {
	UID            string                       `json:"uid"`
	Email          string                       `json:"email"`
	Name           string                       `json:"name"`
	Avatar         string                       `json:"avatar,omitempty"`
	Bio            string                       `json:"bio,omitempty"`
	XP             int                          `json:"xp"`
	Level          int                          `json:"level"`
	Streak         int                          `json:"streak"`
	LastActiveDate *time.Time                   `json:"lastActiveDate"`
	TotalSessions  int                          `json:"totalSessions"`
	TotalPoints    int                          `json:"totalPoints"`
	Preferences    profile.Preferences          `json:"preferences"`
	Notifications  profile.NotificationSettings `json:"notifications"`
	CreatedAt      time.Time                    `json:"createdAt"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
}

func toProfileDTO(p *profile.Profile) *profileDTO {
	if p == nil {
		return nil
	}
	dto := &profileDTO{
		UID:           p.UID,
		Email:         p.Email,
		Name:          p.Name,
		Avatar:        p.Avatar,
		Bio:           p.Bio,
		XP:            p.XP,
		Level:         p.Level,
		Streak:        p.Streak,
		TotalSessions: p.TotalSessions,
		TotalPoints:   p.TotalPoints,
		Preferences:   p.Preferences,
		Notifications: p.Notifications,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if !p.LastActiveDate.IsZero() {
		last := p.LastActiveDate
		dto.LastActiveDate = &last
	}
	return dto
}

type sessionDTO struct {
	ID                string            `json:"id"`
	UserID            string            `json:"userId"`
	Topic             string            `json:"topic"`
	Subject           string            `json:"subject"`
	Content           string            `json:"content,omitempty"`
	Score             int               `json:"score"`
	Duration          int               `json:"duration"`
	QuestionsAsked    int               `json:"questionsAsked"`
	QuestionsAnswered int               `json:"questionsAnswered"`
	XPEarned          int               `json:"xpEarned"`
	Status            session.Status    `json:"status"`
	Messages          []session.Message `json:"messages"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
}

func toSessionDTO(s *session.Session) *sessionDTO {
	if s == nil {
		return nil
	}
	messages := s.Messages
	if messages == nil {
		messages = []session.Message{}
	}
	return &sessionDTO{
		ID:                s.ID,
		UserID:            s.UserID,
		Topic:             s.Topic,
		Subject:           s.Subject,
		Content:           s.Content,
		Score:             s.Score,
		Duration:          s.Duration,
		QuestionsAsked:    s.QuestionsAsked,
		QuestionsAnswered: s.QuestionsAnswered,
		XPEarned:          s.XPEarned,
		Status:            s.Status,
		Messages:          messages,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
		CompletedAt:       s.CompletedAt,
	}
}

func toSessionDTOs(list []*session.Session) []*sessionDTO {
	out := make([]*sessionDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionDTO(s))
	}
	return out
}

type notificationDTO struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      notification.Type `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Read      bool              `json:"read"`
	ActionURL string            `json:"actionUrl,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func toNotificationDTO(n *notification.Notification) *notificationDTO {
	return &notificationDTO{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		ActionURL: n.ActionURL,
		CreatedAt: n.CreatedAt,
	}
}

func toNotificationDTOs(list []*notification.Notification) []*notificationDTO {
	out := make([]*notificationDTO, 0, len(list))
	for _, n := range list {
		out = append(out, toNotificationDTO(n))
	}
	return out
}

type eventDTO struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

func toEventDTOs(events []progression.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{Type: string(ev.Kind()), Value: ev.Value()})
	}
	return out
}

type dashboardDTO struct {
	Profile        *profileDTO   `json:"profile"`
	RecentSessions []*sessionDTO `json:"recentSessions"`
	UnreadCount    int           `json:"unreadCount"`
	XPToNextLevel  int           `json:"xpToNextLevel"`
	WeekSessions   int           `json:"weekSessions"`
	WeekXP         int           `json:"weekXp"`
}

func toDashboardDTO(d *query.Dashboard) *dashboardDTO {
	return &dashboardDTO{
		Profile:        toProfileDTO(d.Profile),
		RecentSessions: toSessionDTOs(d.RecentSessions),
		UnreadCount:    d.UnreadCount,
		XPToNextLevel:  d.XPToNextLevel,
		WeekSessions:   d.WeekSessions,
		WeekXP:         d.WeekXP,
	}
}
