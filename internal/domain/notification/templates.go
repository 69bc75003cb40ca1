package notification

import (
	"fmt"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
)

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE TABLES
// Данные, а не ветвления: порядок совпадает с таблицами progression.
// ══════════════════════════════════════════════════════════════════════════════

// Milestone - текст уведомления для конкретного порога.
type Milestone struct {
	Threshold int
	Title     string
	Message   string
}

// DashboardURL - страница, куда ведут уведомления о прогрессе.
const DashboardURL = "/dashboard"

// UploadURL - страница создания первой сессии.
const UploadURL = "/upload"

// SessionMilestones - тексты для числа завершённых сессий.
var SessionMilestones = []Milestone{
	{1, "🎉 First Session Complete!", "You've completed your first learning session. Great start!"},
	{5, "🌟 5 Sessions Done!", "You're building a great learning habit. Keep it up!"},
	{10, "📚 10 Sessions Milestone!", "Double digits! You're becoming a dedicated learner."},
	{25, "🏆 25 Sessions!", "Quarter century of sessions! You're on fire!"},
	{50, "⭐ 50 Sessions!", "Halfway to 100! Your dedication is inspiring."},
	{100, "💎 100 Sessions!", "Triple digits! You're a true learning champion!"},
}

// StreakMilestones - тексты для длины серии.
var StreakMilestones = []Milestone{
	{3, "🔥 3 Day Streak!", "You're on fire! 3 days of consistent learning."},
	{7, "🔥 1 Week Streak!", "A full week of learning! You're building an amazing habit."},
	{14, "🔥 2 Week Streak!", "Two weeks strong! Your dedication is remarkable."},
	{21, "🔥 3 Week Streak!", "21 days - they say it takes this long to form a habit!"},
	{30, "🔥 1 Month Streak!", "An entire month! You're a learning machine!"},
	{60, "🔥 2 Month Streak!", "60 days of consistency. Absolutely incredible!"},
	{90, "🔥 3 Month Streak!", "A quarter year of daily learning. You're legendary!"},
	{365, "🔥 1 Year Streak!", "365 days! You've achieved something truly special."},
}

func lookup(table []Milestone, threshold int) (Milestone, bool) {
	for _, m := range table {
		if m.Threshold == threshold {
			return m, true
		}
	}
	return Milestone{}, false
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT -> NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// ParamsFromEvent переводит событие прогрессии в параметры уведомления.
// Возвращает false, если для события нет текста.
func ParamsFromEvent(uid string, ev progression.Event) (NewNotificationParams, bool) {
	p := NewNotificationParams{UserID: uid, ActionURL: DashboardURL}

	switch e := ev.(type) {
	case progression.SessionMilestone:
		m, ok := lookup(SessionMilestones, e.Sessions)
		if !ok {
			return p, false
		}
		p.Type, p.Title, p.Message = TypeAchievement, m.Title, m.Message

	case progression.LevelUp:
		p.Type = TypeAchievement
		p.Title = fmt.Sprintf("🎮 Level %d Reached!", e.Level)
		p.Message = fmt.Sprintf("Congratulations! You've leveled up to Level %d. Keep learning to reach even higher!", e.Level)

	case progression.XPMilestone:
		p.Type = TypeAchievement
		p.Title = fmt.Sprintf("💰 %d XP Earned!", e.Threshold)
		p.Message = fmt.Sprintf("You've accumulated %d XP! Your hard work is paying off.", e.Threshold)

	case progression.StreakMilestone:
		m, ok := lookup(StreakMilestones, e.Streak)
		if !ok {
			return p, false
		}
		p.Type, p.Title, p.Message = TypeStreak, m.Title, m.Message

	case progression.StreakLost:
		p.Type = TypeStreak
		p.Title = "😢 Streak Lost"
		p.Message = fmt.Sprintf("Your %d day streak has been reset. Don't worry, start fresh today!", e.Previous)

	default:
		return p, false
	}
	return p, true
}

// FromEvent создаёт уведомление для события прогрессии.
func FromEvent(uid string, ev progression.Event, now time.Time) (*Notification, bool, error) {
	p, ok := ParamsFromEvent(uid, ev)
	if !ok {
		return nil, false, nil
	}
	n, err := New(p, now)
	if err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// Welcome создаёт приветственное уведомление нового пользователя.
func Welcome(uid string, now time.Time) (*Notification, error) {
	return New(NewNotificationParams{
		UserID:    uid,
		Type:      TypeSystem,
		Title:     "👋 Welcome to FeynLearn!",
		Message:   "Start your learning journey by creating your first study session. We're excited to have you!",
		ActionURL: UploadURL,
	}, now)
}

// StreakReminder напоминает, что серию сегодня ещё можно сохранить.
func StreakReminder(uid string, streak int, now time.Time) (*Notification, error) {
	return New(NewNotificationParams{
		UserID:    uid,
		Type:      TypeReminder,
		Title:     "⏰ Keep your streak alive!",
		Message:   fmt.Sprintf("Your %d day streak ends at midnight. Teach one topic today to keep it going.", streak),
		ActionURL: UploadURL,
	}, now)
}

// Digest - итоги недели для еженедельной сводки.
type Digest struct {
	Sessions int
	XP       int
	Level    int
	Streak   int
}

// WeeklyDigest собирает сводку за последние 7 дней.
func WeeklyDigest(uid string, d Digest, now time.Time) (*Notification, error) {
	msg := fmt.Sprintf("This week you completed %d sessions and earned %d XP. You're Level %d with a %d day streak.",
		d.Sessions, d.XP, d.Level, d.Streak)
	if d.Sessions == 0 {
		msg = fmt.Sprintf("No sessions this week. Pick a topic and teach it to keep growing from Level %d!", d.Level)
	}
	return New(NewNotificationParams{
		UserID:    uid,
		Type:      TypeSystem,
		Title:     "📊 Your Weekly Digest",
		Message:   msg,
		ActionURL: DashboardURL,
	}, now)
}
