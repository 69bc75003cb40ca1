package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		params  NewNotificationParams
		wantErr error
	}{
		{"ok", NewNotificationParams{UserID: "u1", Type: TypeSystem, Title: "Hi", Message: "Hello"}, nil},
		{"missing user", NewNotificationParams{Type: TypeSystem, Title: "Hi", Message: "Hello"}, shared.ErrInvalidID},
		{"missing title", NewNotificationParams{UserID: "u1", Type: TypeSystem, Message: "Hello"}, shared.ErrValidation},
		{"missing type", NewNotificationParams{UserID: "u1", Title: "Hi", Message: "Hello"}, shared.ErrValidation},
		{"unknown type", NewNotificationParams{UserID: "u1", Type: "promo", Title: "Hi", Message: "Hello"}, shared.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := New(tt.params, now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, n)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, n.ID)
			assert.False(t, n.Read)
			assert.Equal(t, now, n.CreatedAt)
		})
	}
}

func TestFromEvent(t *testing.T) {
	tests := []struct {
		event     progression.Event
		wantType  Type
		wantTitle string
		wantMsg   string
	}{
		{progression.SessionMilestone{Sessions: 1}, TypeAchievement, "🎉 First Session Complete!", "You've completed your first learning session. Great start!"},
		{progression.SessionMilestone{Sessions: 100}, TypeAchievement, "💎 100 Sessions!", "Triple digits! You're a true learning champion!"},
		{progression.LevelUp{Level: 3}, TypeAchievement, "🎮 Level 3 Reached!", "Congratulations! You've leveled up to Level 3. Keep learning to reach even higher!"},
		{progression.XPMilestone{Threshold: 500}, TypeAchievement, "💰 500 XP Earned!", "You've accumulated 500 XP! Your hard work is paying off."},
		{progression.StreakMilestone{Streak: 7}, TypeStreak, "🔥 1 Week Streak!", "A full week of learning! You're building an amazing habit."},
		{progression.StreakLost{Previous: 12}, TypeStreak, "😢 Streak Lost", "Your 12 day streak has been reset. Don't worry, start fresh today!"},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Kind()), func(t *testing.T) {
			n, ok, err := FromEvent("u1", tt.event, now)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.wantType, n.Type)
			assert.Equal(t, tt.wantTitle, n.Title)
			assert.Equal(t, tt.wantMsg, n.Message)
			assert.Equal(t, DashboardURL, n.ActionURL)
			assert.Equal(t, "u1", n.UserID)
		})
	}
}

func TestFromEvent_UnknownThresholdIsSkipped(t *testing.T) {
	n, ok, err := FromEvent("u1", progression.SessionMilestone{Sessions: 11}, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, n)
}

func TestTablesCoverEngineMilestones(t *testing.T) {
	for _, v := range progression.SessionMilestones {
		_, ok := lookup(SessionMilestones, v)
		assert.True(t, ok, "session milestone %d", v)
	}
	for _, v := range progression.StreakMilestones {
		_, ok := lookup(StreakMilestones, v)
		assert.True(t, ok, "streak milestone %d", v)
	}
}

func TestWelcome(t *testing.T) {
	n, err := Welcome("u1", now)
	require.NoError(t, err)
	assert.Equal(t, TypeSystem, n.Type)
	assert.Equal(t, "👋 Welcome to FeynLearn!", n.Title)
	assert.Equal(t, UploadURL, n.ActionURL)
}

func TestWeeklyDigest(t *testing.T) {
	n, err := WeeklyDigest("u1", Digest{Sessions: 4, XP: 120, Level: 2, Streak: 5}, now)
	require.NoError(t, err)
	assert.Contains(t, n.Message, "4 sessions")
	assert.Contains(t, n.Message, "120 XP")

	idle, err := WeeklyDigest("u1", Digest{Level: 1}, now)
	require.NoError(t, err)
	assert.Contains(t, idle.Message, "No sessions this week")
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, 20, ListLimit(0))
	assert.Equal(t, 7, ListLimit(7))
	assert.Equal(t, 100, ListLimit(500))
}
