package shared

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("db down")
	err := WrapError("session", "Complete", ErrExternalService, "store failed", cause)

	assert.ErrorIs(t, err, ErrExternalService)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsExternalService(err))
	assert.Equal(t, "session.Complete: store failed: db down", err.Error())
}

func TestDomainError_Helpers(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrInvalidStateTransition)

	assert.True(t, IsStateTransition(wrapped))
	assert.True(t, IsNotFound(ErrSessionNotFound))
	assert.True(t, IsValidation(ErrInvalidScore))
	assert.True(t, IsValidation(Validation("session", "Create", "topic is required")))
	assert.True(t, IsAlreadyExists(ErrEmailTaken))
	assert.True(t, IsUnauthorized(ErrBadCredentials))
	assert.False(t, IsNotFound(ErrInvalidScore))
}

func TestDomainErrors_EachKindHasOneClassifier(t *testing.T) {
	cases := []struct {
		err   error
		check func(error) bool
	}{
		{ErrProfileNotFound, IsNotFound},
		{ErrNotificationNotFound, IsNotFound},
		{ErrInvalidUserID, IsValidation},
		{ErrInvalidXPEarned, IsValidation},
		{ErrInvalidNotification, IsValidation},
		{ErrInvalidStateTransition, IsStateTransition},
		{ErrLLMUnavailable, IsExternalService},
	}
	classifiers := []func(error) bool{IsNotFound, IsValidation, IsStateTransition, IsAlreadyExists, IsUnauthorized, IsExternalService}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.True(t, tc.check(tc.err))
			matched := 0
			for _, c := range classifiers {
				if c(tc.err) {
					matched++
				}
			}
			assert.Equal(t, 1, matched)
		})
	}
}

func TestNewUserID(t *testing.T) {
	uid, err := NewUserID("  firebase-uid-123 ")
	assert.NoError(t, err)
	assert.Equal(t, UserID("firebase-uid-123"), uid)

	_, err = NewUserID("")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = NewUserID(strings.Repeat("x", MaxUserIDLength+1))
	assert.Error(t, err)
}

func TestNewLimit(t *testing.T) {
	assert.Equal(t, Limit(20), NewLimit(0, 20))
	assert.Equal(t, Limit(5), NewLimit(5, 20))
	assert.Equal(t, MaxLimit, NewLimit(1000, 20))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abc", 2))
	// "é" is two bytes; cutting in the middle drops the whole rune.
	assert.Equal(t, "a", Truncate("aé", 2))
}
