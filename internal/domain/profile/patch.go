package profile

import (
	"strings"
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PATCHES
// nil означает "не менять". Поля прогрессии через патч не меняются.
// ══════════════════════════════════════════════════════════════════════════════

// PreferencesPatch - частичное обновление настроек обучения.
type PreferencesPatch struct {
	DefaultPersona      *Persona `json:"defaultPersona,omitempty"`
	QuestionsPerSession *int     `json:"questionsPerSession,omitempty"`
	AutoPlayNext        *bool    `json:"autoPlayNext,omitempty"`
	ShowHints           *bool    `json:"showHints,omitempty"`
	DarkMode            *bool    `json:"darkMode,omitempty"`
	Language            *string  `json:"language,omitempty"`
}

// Validate проверяет значения.
func (pp PreferencesPatch) Validate() error {
	if pp.DefaultPersona != nil && !pp.DefaultPersona.IsValid() {
		return shared.Validation("profile", "Patch", "defaultPersona must be curious, challenging, or supportive")
	}
	if pp.QuestionsPerSession != nil && (*pp.QuestionsPerSession < 1 || *pp.QuestionsPerSession > MaxQuestionsPerSession) {
		return shared.NewDomainError("profile", "Patch", shared.ErrValueOutOfRange, "questionsPerSession must be between 1 and 20")
	}
	if pp.Language != nil && strings.TrimSpace(*pp.Language) == "" {
		return shared.Validation("profile", "Patch", "language cannot be empty")
	}
	return nil
}

// Merge накладывает патч на текущие настройки.
func (pp PreferencesPatch) Merge(cur Preferences) Preferences {
	if pp.DefaultPersona != nil {
		cur.DefaultPersona = *pp.DefaultPersona
	}
	if pp.QuestionsPerSession != nil {
		cur.QuestionsPerSession = *pp.QuestionsPerSession
	}
	if pp.AutoPlayNext != nil {
		cur.AutoPlayNext = *pp.AutoPlayNext
	}
	if pp.ShowHints != nil {
		cur.ShowHints = *pp.ShowHints
	}
	if pp.DarkMode != nil {
		cur.DarkMode = *pp.DarkMode
	}
	if pp.Language != nil {
		cur.Language = strings.TrimSpace(*pp.Language)
	}
	return cur
}

// NotificationsPatch - частичное обновление настроек уведомлений.
type NotificationsPatch struct {
	Email           *bool `json:"email,omitempty"`
	Push            *bool `json:"push,omitempty"`
	ReviewReminders *bool `json:"reviewReminders,omitempty"`
	StreakReminders *bool `json:"streakReminders,omitempty"`
	WeeklyDigest    *bool `json:"weeklyDigest,omitempty"`
}

// Merge накладывает патч на текущие настройки.
func (np NotificationsPatch) Merge(cur NotificationSettings) NotificationSettings {
	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cur.Email, np.Email)
	set(&cur.Push, np.Push)
	set(&cur.ReviewReminders, np.ReviewReminders)
	set(&cur.StreakReminders, np.StreakReminders)
	set(&cur.WeeklyDigest, np.WeeklyDigest)
	return cur
}

// Patch - изменения, которые пользователь может вносить сам.
type Patch struct {
	Name          *string
	Avatar        *string
	Bio           *string
	Preferences   *PreferencesPatch
	Notifications *NotificationsPatch
}

// IsEmpty возвращает true, если патч ничего не меняет.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Avatar == nil && p.Bio == nil && p.Preferences == nil && p.Notifications == nil
}

// Validate проверяет значения патча.
func (p Patch) Validate() error {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return shared.Validation("profile", "Patch", "name cannot be empty")
		}
		if len(n) > MaxNameLength {
			return shared.NewDomainError("profile", "Patch", shared.ErrValueOutOfRange, "name is too long")
		}
	}
	if p.Bio != nil && len(*p.Bio) > MaxBioLength {
		return shared.NewDomainError("profile", "Patch", shared.ErrValueOutOfRange, "bio is too long")
	}
	if p.Avatar != nil && len(*p.Avatar) > MaxAvatarLength {
		return shared.NewDomainError("profile", "Patch", shared.ErrValueOutOfRange, "avatar url is too long")
	}
	if p.Preferences != nil {
		return p.Preferences.Validate()
	}
	return nil
}

// Apply применяет патч.
func (pr *Profile) Apply(p Patch, now time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Name != nil {
		pr.Name = strings.TrimSpace(*p.Name)
	}
	if p.Avatar != nil {
		pr.Avatar = strings.TrimSpace(*p.Avatar)
	}
	if p.Bio != nil {
		pr.Bio = strings.TrimSpace(*p.Bio)
	}
	if p.Preferences != nil {
		pr.Preferences = p.Preferences.Merge(pr.Preferences)
	}
	if p.Notifications != nil {
		pr.Notifications = p.Notifications.Merge(pr.Notifications)
	}
	pr.UpdatedAt = now
	return nil
}
