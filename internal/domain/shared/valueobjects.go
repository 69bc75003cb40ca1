// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
	"unicode/utf8"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID is the opaque identifier assigned by the identity provider.
type UserID string

// MaxUserIDLength bounds ids coming from external providers.
const MaxUserIDLength = 128

// IsValid checks if the user ID is non-empty and reasonably sized.
func (u UserID) IsValid() bool {
	n := utf8.RuneCountInString(string(u))
	return n > 0 && n <= MaxUserIDLength && strings.TrimSpace(string(u)) == string(u)
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ErrInvalidUserID
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Limit Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Limit is a page size for list queries.
type Limit int

// MaxLimit caps every list query.
const MaxLimit Limit = 100

// NewLimit clamps a requested limit: non-positive values take def,
// large values are capped at MaxLimit.
func NewLimit(requested, def int) Limit {
	if requested <= 0 {
		requested = def
	}
	if Limit(requested) > MaxLimit {
		return MaxLimit
	}
	return Limit(requested)
}

// Int returns the underlying int value.
func (l Limit) Int() int {
	return int(l)
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
