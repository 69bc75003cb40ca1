// Package profile содержит доменную модель профиля пользователя FeynLearn.
// Профиль создаётся лениво при первом обращении и хранит прогрессию,
// настройки обучения и настройки уведомлений.
package profile

import (
	"strings"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Persona - характер ИИ-студента по умолчанию.
type Persona string

const (
	PersonaCurious     Persona = "curious"
	PersonaChallenging Persona = "challenging"
	PersonaSupportive  Persona = "supportive"
)

// IsValid проверяет, что персона известна.
func (p Persona) IsValid() bool {
	switch p {
	case PersonaCurious, PersonaChallenging, PersonaSupportive:
		return true
	default:
		return false
	}
}

// DefaultName - имя для пользователя, провайдер которого имени не сообщил.
const DefaultName = "User"

// Ограничения полей.
const (
	MaxNameLength          = 100
	MaxBioLength           = 500
	MaxAvatarLength        = 1000
	MaxQuestionsPerSession = 20
)

// Preferences - настройки обучения.
type Preferences struct {
	DefaultPersona      Persona `json:"defaultPersona"`
	QuestionsPerSession int     `json:"questionsPerSession"`
	AutoPlayNext        bool    `json:"autoPlayNext"`
	ShowHints           bool    `json:"showHints"`
	DarkMode            bool    `json:"darkMode"`
	Language            string  `json:"language"`
}

// DefaultPreferences возвращает настройки нового пользователя.
func DefaultPreferences() Preferences {
	return Preferences{
		DefaultPersona:      PersonaCurious,
		QuestionsPerSession: 7,
		AutoPlayNext:        true,
		ShowHints:           true,
		DarkMode:            true,
		Language:            "en",
	}
}

// NotificationSettings - на какие уведомления пользователь согласен.
type NotificationSettings struct {
	Email           bool `json:"email"`
	Push            bool `json:"push"`
	ReviewReminders bool `json:"reviewReminders"`
	StreakReminders bool `json:"streakReminders"`
	WeeklyDigest    bool `json:"weeklyDigest"`
}

// DefaultNotificationSettings возвращает настройки уведомлений нового пользователя.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		Email:           true,
		Push:            true,
		ReviewReminders: true,
		StreakReminders: true,
		WeeklyDigest:    false,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// Profile - профиль пользователя.
type Profile struct {
	// UID - непрозрачный идентификатор от провайдера идентификации.
	UID string

	Email  string
	Name   string
	Avatar string
	Bio    string

	// ─────────────────────────────────────────────────────────────────────────
	// Прогрессия. Меняется только внутри транзакции пользователя.
	// ─────────────────────────────────────────────────────────────────────────

	XP             int
	Level          int // всегда LevelForXP(XP)
	Streak         int
	LastActiveDate time.Time // zero - ещё ни разу не был активен
	TotalSessions  int
	TotalPoints    int

	Preferences   Preferences
	Notifications NotificationSettings

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProfileParams - данные, известные при ленивом создании профиля.
type NewProfileParams struct {
	UID    string
	Email  string
	Name   string
	Avatar string
}

// New создаёт профиль с нулевой прогрессией и настройками по умолчанию.
func New(p NewProfileParams, now time.Time) (*Profile, error) {
	uid, err := shared.NewUserID(p.UID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = DefaultName
	}
	return &Profile{
		UID:           uid.String(),
		Email:         strings.TrimSpace(p.Email),
		Name:          shared.Truncate(name, MaxNameLength),
		Avatar:        strings.TrimSpace(p.Avatar),
		Level:         progression.LevelForXP(0),
		Preferences:   DefaultPreferences(),
		Notifications: DefaultNotificationSettings(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Progress возвращает прогрессию профиля для движка.
func (p *Profile) Progress() progression.Progress {
	return progression.Progress{
		XP:             p.XP,
		Level:          p.Level,
		Streak:         p.Streak,
		TotalSessions:  p.TotalSessions,
		TotalPoints:    p.TotalPoints,
		LastActiveDate: p.LastActiveDate,
	}
}

// ApplyProgress записывает результат движка. Уровень всегда пересчитывается из XP.
func (p *Profile) ApplyProgress(pr progression.Progress, now time.Time) {
	p.XP = pr.XP
	p.Level = progression.LevelForXP(pr.XP)
	p.Streak = pr.Streak
	p.TotalSessions = pr.TotalSessions
	p.TotalPoints = pr.TotalPoints
	p.LastActiveDate = pr.LastActiveDate
	p.UpdatedAt = now
}

// IsStreakAtRisk возвращает true, если серия есть, последний активный день
// был вчера и сегодня пользователь ещё не занимался.
func (p *Profile) IsStreakAtRisk(now time.Time, loc *time.Location) bool {
	if p.Streak < 1 || p.LastActiveDate.IsZero() {
		return false
	}
	return timeutil.CalendarDaysBetween(p.LastActiveDate, now, loc) == 1
}

// Snapshot - срез профиля для таблицы лидеров.
type Snapshot struct {
	UID    string
	Name   string
	Avatar string
	XP     int
	Level  int
	Streak int
}

// Snapshot возвращает публичный срез профиля.
func (p *Profile) Snapshot() Snapshot {
	return Snapshot{
		UID:    p.UID,
		Name:   p.Name,
		Avatar: p.Avatar,
		XP:     p.XP,
		Level:  p.Level,
		Streak: p.Streak,
	}
}
