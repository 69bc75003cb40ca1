package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarDaysBetween(t *testing.T) {
	base := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		to   time.Time
		want int
	}{
		{"same day later", base.Add(20 * time.Minute), 0},
		{"next day just after midnight", base.Add(45 * time.Minute), 1},
		{"49 hours later spans three midnights", base.Add(49 * time.Hour), 3},
		{"backwards", base.Add(-24 * time.Hour), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalendarDaysBetween(base, tt.to, time.UTC))
		})
	}
}

func TestCalendarDaysBetween_UsesZone(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 20:00 UTC is already the next day at UTC+5.
	a := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, CalendarDaysBetween(a, b, time.UTC))
	assert.Equal(t, 1, CalendarDaysBetween(a, b, loc))
}

func TestCalendarDaysBetween_AcrossDST(t *testing.T) {
	loc, err := LoadZone("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// DST starts 2024-03-10 in New York, the day is 23h long.
	a := time.Date(2024, 3, 9, 12, 0, 0, 0, loc)
	b := time.Date(2024, 3, 10, 12, 0, 0, 0, loc)
	assert.Equal(t, 1, CalendarDaysBetween(a, b, loc))
}

func TestStartOfWeek(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), StartOfWeek(sunday, time.UTC))
}

func TestLoadZone(t *testing.T) {
	loc, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadZone("Mars/Olympus_Mons")
	assert.Error(t, err)
}

func TestFixedClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFixedClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
}
