package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(NewSessionParams{UserID: "u1", Topic: "Photosynthesis", Subject: "Biology", Content: "Light reactions"}, now)
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestNew_StartsInProgressWithZeroCounters(t *testing.T) {
	s := newSession(t)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StatusInProgress, s.Status)
	assert.Zero(t, s.Score)
	assert.Zero(t, s.XPEarned)
	assert.Zero(t, s.QuestionsAsked)
	assert.Empty(t, s.Messages)
	assert.Nil(t, s.CompletedAt)
}

func TestNew_RequiresTopicAndSubject(t *testing.T) {
	_, err := New(NewSessionParams{UserID: "u1", Topic: "  ", Subject: "Biology"}, now)
	assert.True(t, shared.IsValidation(err))

	_, err = New(NewSessionParams{UserID: "u1", Topic: "Cells"}, now)
	assert.True(t, shared.IsValidation(err))

	_, err = New(NewSessionParams{Topic: "Cells", Subject: "Biology"}, now)
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestAppendMessage(t *testing.T) {
	s := newSession(t)
	m, err := NewMessage(RoleUser, "Plants make sugar from light", now.Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.AppendMessage(m))
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, now.Add(time.Minute), s.UpdatedAt)

	_, err = NewMessage("teacher", "hi", now)
	assert.True(t, shared.IsValidation(err))
	_, err = NewMessage(RoleAI, "   ", now)
	assert.True(t, shared.IsValidation(err))
}

func TestApplyPatch(t *testing.T) {
	s := newSession(t)

	err := s.Apply(Patch{Topic: strPtr(" Calvin cycle "), QuestionsAsked: intPtr(3), Duration: intPtr(12)}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Calvin cycle", s.Topic)
	assert.Equal(t, 3, s.QuestionsAsked)
	assert.Equal(t, 12, s.Duration)
	assert.Equal(t, StatusInProgress, s.Status)

	assert.ErrorIs(t, s.Apply(Patch{QuestionsAnswered: intPtr(-1)}, now), shared.ErrNegativeValue)
}

func TestApplyPatch_ScoreStaysZeroUntilComplete(t *testing.T) {
	s := newSession(t)

	require.NoError(t, s.Apply(Patch{
		Topic:             strPtr("Light reactions"),
		Subject:           strPtr("Biology"),
		Content:           strPtr("notes"),
		Duration:          intPtr(300),
		QuestionsAsked:    intPtr(4),
		QuestionsAnswered: intPtr(2),
	}, now.Add(time.Minute)))
	assert.Equal(t, 0, s.Score)
	assert.Equal(t, StatusInProgress, s.Status)

	require.NoError(t, s.Complete(95, 30, now.Add(time.Hour)))
	assert.Equal(t, 95, s.Score)
}

func TestComplete_OnlyOnce(t *testing.T) {
	s := newSession(t)

	require.NoError(t, s.Complete(80, 20, now))
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Equal(t, 80, s.Score)
	assert.Equal(t, 20, s.XPEarned)
	require.NotNil(t, s.CompletedAt)

	err := s.Complete(80, 20, now)
	assert.ErrorIs(t, err, shared.ErrInvalidStateTransition)
	assert.Equal(t, 20, s.XPEarned)
}

func TestComplete_ValidatesRanges(t *testing.T) {
	s := newSession(t)
	assert.True(t, shared.IsValidation(s.Complete(120, 10, now)))
	assert.True(t, shared.IsValidation(s.Complete(50, -5, now)))
	assert.Equal(t, StatusInProgress, s.Status)
}

func TestTerminalStatesRejectMutations(t *testing.T) {
	for _, finish := range []func(*Session) error{
		func(s *Session) error { return s.Complete(50, 10, now) },
		func(s *Session) error { return s.Abandon(now) },
	} {
		s := newSession(t)
		require.NoError(t, finish(s))
		assert.True(t, s.Status.IsTerminal())

		msg, _ := NewMessage(RoleUser, "late", now)
		assert.ErrorIs(t, s.AppendMessage(msg), shared.ErrInvalidStateTransition)
		assert.ErrorIs(t, s.Apply(Patch{Topic: strPtr("x")}, now), shared.ErrInvalidStateTransition)
		assert.ErrorIs(t, s.Abandon(now), shared.ErrInvalidStateTransition)
		assert.ErrorIs(t, s.Complete(10, 1, now), shared.ErrInvalidStateTransition)
	}
}

func TestUserMessages(t *testing.T) {
	s := newSession(t)
	for _, r := range []Role{RoleAI, RoleUser, RoleAI, RoleUser} {
		m, err := NewMessage(r, "text", now)
		require.NoError(t, err)
		require.NoError(t, s.AppendMessage(m))
	}
	assert.Len(t, s.UserMessages(), 2)
}
