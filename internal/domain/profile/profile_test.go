package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestNew_Defaults(t *testing.T) {
	p, err := New(NewProfileParams{UID: "u1", Email: "a@b.c"}, now)
	require.NoError(t, err)

	assert.Equal(t, DefaultName, p.Name)
	assert.Equal(t, 0, p.XP)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, 0, p.Streak)
	assert.True(t, p.LastActiveDate.IsZero())
	assert.Equal(t, DefaultPreferences(), p.Preferences)
	assert.Equal(t, PersonaCurious, p.Preferences.DefaultPersona)
	assert.Equal(t, 7, p.Preferences.QuestionsPerSession)
	assert.True(t, p.Notifications.StreakReminders)
	assert.False(t, p.Notifications.WeeklyDigest)

	_, err = New(NewProfileParams{UID: " "}, now)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestApplyProgress_RecomputesLevel(t *testing.T) {
	p, err := New(NewProfileParams{UID: "u1"}, now)
	require.NoError(t, err)

	p.ApplyProgress(progression.Progress{XP: 1250, Level: 1, Streak: 2, TotalSessions: 3}, now)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, 1250, p.Progress().XP)
}

func TestApply_PartialMerges(t *testing.T) {
	p, err := New(NewProfileParams{UID: "u1", Name: "Ada"}, now)
	require.NoError(t, err)

	later := now.Add(time.Hour)
	err = p.Apply(Patch{
		Bio:           ptr("  teaches physics "),
		Preferences:   &PreferencesPatch{DarkMode: ptr(false), QuestionsPerSession: ptr(10)},
		Notifications: &NotificationsPatch{WeeklyDigest: ptr(true)},
	}, later)
	require.NoError(t, err)

	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "teaches physics", p.Bio)
	assert.False(t, p.Preferences.DarkMode)
	assert.Equal(t, 10, p.Preferences.QuestionsPerSession)
	assert.True(t, p.Preferences.ShowHints)
	assert.True(t, p.Notifications.WeeklyDigest)
	assert.True(t, p.Notifications.Email)
	assert.Equal(t, later, p.UpdatedAt)
}

func TestApply_Validation(t *testing.T) {
	p, err := New(NewProfileParams{UID: "u1", Name: "Ada"}, now)
	require.NoError(t, err)

	persona := Persona("rude")
	tests := []Patch{
		{Name: ptr("   ")},
		{Preferences: &PreferencesPatch{DefaultPersona: &persona}},
		{Preferences: &PreferencesPatch{QuestionsPerSession: ptr(0)}},
	}
	for _, patch := range tests {
		assert.True(t, shared.IsValidation(p.Apply(patch, now)))
	}
	assert.Equal(t, "Ada", p.Name)
}

func TestIsStreakAtRisk(t *testing.T) {
	p := &Profile{Streak: 4, LastActiveDate: now.AddDate(0, 0, -1)}
	assert.True(t, p.IsStreakAtRisk(now, time.UTC))

	p.LastActiveDate = now
	assert.False(t, p.IsStreakAtRisk(now, time.UTC))

	p.LastActiveDate = now.AddDate(0, 0, -3)
	assert.False(t, p.IsStreakAtRisk(now, time.UTC))

	p = &Profile{Streak: 0, LastActiveDate: now.AddDate(0, 0, -1)}
	assert.False(t, p.IsStreakAtRisk(now, time.UTC))
}
