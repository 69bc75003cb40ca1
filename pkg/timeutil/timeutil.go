// Package timeutil provides calendar-day helpers for streak bookkeeping.
// Day boundaries are always computed in an explicit *time.Location so that
// "today" never silently depends on the server's local zone.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// DefaultZone is the zone used for day boundaries when none is configured.
var DefaultZone = time.UTC

// LoadZone resolves an IANA zone name. Empty or "UTC" yields UTC.
func LoadZone(name string) (*time.Location, error) {
	if name == "" || name == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown zone %q: %w", name, err)
	}
	return loc, nil
}

func zoneOrDefault(loc *time.Location) *time.Location {
	if loc == nil {
		return DefaultZone
	}
	return loc
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(zoneOrDefault(loc))
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, l.Location())
}

// StartOfWeek returns Monday 00:00 of the week containing t in loc.
func StartOfWeek(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// CalendarDaysBetween returns the signed number of calendar days from "from"
// to "to" in loc. Same day is 0, the next day is 1, the previous day is -1.
// DST shifts do not affect the result.
func CalendarDaysBetween(from, to time.Time, loc *time.Location) int {
	loc = zoneOrDefault(loc)
	f := from.In(loc)
	t := to.In(loc)
	// Project the civil dates onto UTC where every day is exactly 24h.
	fd := time.Date(f.Year(), f.Month(), f.Day(), 0, 0, 0, 0, time.UTC)
	td := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(td.Sub(fd).Hours() / 24)
}

// IsSameDay checks if two times fall on the same calendar day in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	return CalendarDaysBetween(t1, t2, loc) == 0
}

// IsConsecutiveDay checks if t2 falls on the day after t1 in loc.
func IsConsecutiveDay(t1, t2 time.Time, loc *time.Location) bool {
	return CalendarDaysBetween(t1, t2, loc) == 1
}

// FormatDate formats t as YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(zoneOrDefault(loc)).Format(time.DateOnly)
}

// IsSafeNotificationTime reports whether t is within 09:00-22:00 in loc.
func IsSafeNotificationTime(t time.Time, loc *time.Location) bool {
	hour := t.In(zoneOrDefault(loc)).Hour()
	return hour >= 9 && hour < 22
}

// ──────────────────────────────────────────────────────────────────────────────
// Clock
// ──────────────────────────────────────────────────────────────────────────────

// Clock abstracts time.Now so handlers can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a settable clock for tests.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements Clock.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
