package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

var day = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func TestLevelForXP(t *testing.T) {
	tests := map[int]int{0: 1, 499: 1, 500: 2, 520: 2, 999: 2, 1000: 3, 10000: 21, -5: 1}
	for xp, want := range tests {
		assert.Equal(t, want, LevelForXP(xp), "xp=%d", xp)
	}
}

func TestApplySessionCompletion_LevelInvariantAndMonotonic(t *testing.T) {
	p := Progress{Level: 1}
	for i := 0; i < 200; i++ {
		next, _ := ApplySessionCompletion(p, i%101, (i*37)%260)
		require.GreaterOrEqual(t, next.XP, p.XP)
		require.Equal(t, p.TotalSessions+1, next.TotalSessions)
		require.Equal(t, next.XP/500+1, next.Level)
		p = next
	}
}

func TestApplySessionCompletion_SessionMilestonesExactMatch(t *testing.T) {
	for _, total := range []int{0, 4, 9, 24, 49, 99} {
		_, events := ApplySessionCompletion(Progress{TotalSessions: total, Level: 1}, 50, 0)
		assert.Contains(t, events, Event(SessionMilestone{Sessions: total + 1}))
	}

	for _, total := range []int{1, 2, 10, 11, 100} {
		_, events := ApplySessionCompletion(Progress{TotalSessions: total, Level: 1}, 50, 0)
		for _, ev := range events {
			_, isMilestone := ev.(SessionMilestone)
			assert.False(t, isMilestone, "unexpected milestone after %d sessions", total)
		}
	}
}

func TestApplySessionCompletion_SkippedMilestoneNeverFiresRetroactively(t *testing.T) {
	history := make([]CompletedSession, 11)
	totals := Recalculate(history)
	require.Equal(t, 11, totals.TotalSessions)

	p := Progress{Level: 1}.WithTotals(totals)
	_, events := ApplySessionCompletion(p, 10, 0)
	assert.Empty(t, events)
}

func TestApplySessionCompletion_OnlyFirstXPMilestone(t *testing.T) {
	_, events := ApplySessionCompletion(Progress{XP: 50, Level: 1, TotalSessions: 2}, 80, 500)

	var xp []Event
	for _, ev := range events {
		if ev.Kind() == shared.EventXPMilestone {
			xp = append(xp, ev)
		}
	}
	assert.Equal(t, []Event{XPMilestone{Threshold: 100}}, xp)
}

func TestApplySessionCompletion_XPThresholdBoundaries(t *testing.T) {
	// Landing exactly on a threshold counts.
	_, events := ApplySessionCompletion(Progress{XP: 90, Level: 1, TotalSessions: 2}, 0, 10)
	assert.Equal(t, []Event{XPMilestone{Threshold: 100}}, events)

	// Starting on a threshold does not re-fire it.
	_, events = ApplySessionCompletion(Progress{XP: 100, Level: 1, TotalSessions: 2}, 0, 10)
	assert.Empty(t, events)
}

func TestApplySessionCompletion_LevelUp(t *testing.T) {
	_, events := ApplySessionCompletion(Progress{XP: 490, Level: 1, TotalSessions: 2}, 0, 1000)
	assert.Contains(t, events, Event(LevelUp{Level: 3}))
}

func TestApplyDailyCheck(t *testing.T) {
	tests := []struct {
		name       string
		streak     int
		lastActive time.Time
		now        time.Time
		want       int
		events     []Event
	}{
		{"same day", 4, day, day.Add(3 * time.Hour), 4, nil},
		{"next day", 1, day, day.Add(24 * time.Hour), 2, nil},
		{"next day milestone", 2, day, day.Add(20 * time.Hour), 3, []Event{StreakMilestone{Streak: 3}}},
		{"week milestone", 6, day, day.AddDate(0, 0, 1), 7, []Event{StreakMilestone{Streak: 7}}},
		{"gap with long streak", 5, day, day.AddDate(0, 0, 2), 1, []Event{StreakLost{Previous: 5}}},
		{"gap with short streak", 2, day, day.AddDate(0, 0, 9), 1, nil},
		{"clock skew", 5, day, day.AddDate(0, 0, -2), 5, nil},
		{"never active", 0, time.Time{}, day, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, events := ApplyDailyCheck(Progress{Streak: tt.streak, LastActiveDate: tt.lastActive}, tt.now, time.UTC)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.events, events)
		})
	}
}

func TestApplyDailyCheck_RepeatedSameDayIsStable(t *testing.T) {
	p := Progress{Streak: 2, LastActiveDate: day.AddDate(0, 0, -1)}
	p, _ = CheckIn(p, day, time.UTC)
	require.Equal(t, 3, p.Streak)

	for i := 1; i <= 5; i++ {
		var events []Event
		p, events = CheckIn(p, day.Add(time.Duration(i)*time.Minute), time.UTC)
		assert.Equal(t, 3, p.Streak)
		assert.Empty(t, events)
	}
}

func TestCheckIn_NeverMovesLastActiveBackwards(t *testing.T) {
	p := Progress{Streak: 3, LastActiveDate: day}
	next, _ := CheckIn(p, day.Add(-48*time.Hour), time.UTC)
	assert.Equal(t, day, next.LastActiveDate)
}

func TestComplete_EndToEnd(t *testing.T) {
	p := Progress{XP: 480, Level: 1, TotalSessions: 9, TotalPoints: 700, Streak: 2, LastActiveDate: day}
	now := day.AddDate(0, 0, 1)

	next, events := Complete(p, 90, 40, now, time.UTC)

	assert.Equal(t, 520, next.XP)
	assert.Equal(t, 2, next.Level)
	assert.Equal(t, 10, next.TotalSessions)
	assert.Equal(t, 790, next.TotalPoints)
	assert.Equal(t, 3, next.Streak)
	assert.Equal(t, now, next.LastActiveDate)
	assert.Equal(t, []Event{
		SessionMilestone{Sessions: 10},
		LevelUp{Level: 2},
		XPMilestone{Threshold: 500},
		StreakMilestone{Streak: 3},
	}, events)
}

func TestRecalculate_MatchesReplay(t *testing.T) {
	history := []CompletedSession{{90, 40}, {70, 20}, {100, 500}, {0, 0}, {55, 130}}

	replayed := Progress{Level: 1}
	for _, s := range history {
		replayed, _ = ApplySessionCompletion(replayed, s.Score, s.XPEarned)
	}

	totals := Recalculate(history)
	assert.Equal(t, Totals{
		XP:            replayed.XP,
		Level:         replayed.Level,
		TotalSessions: replayed.TotalSessions,
		TotalPoints:   replayed.TotalPoints,
	}, totals)
}

func TestValidateCompletion(t *testing.T) {
	assert.NoError(t, ValidateCompletion(0, 0))
	assert.NoError(t, ValidateCompletion(100, 5000))
	assert.ErrorIs(t, ValidateCompletion(101, 0), shared.ErrValueOutOfRange)
	assert.ErrorIs(t, ValidateCompletion(-1, 0), shared.ErrValueOutOfRange)
	assert.ErrorIs(t, ValidateCompletion(50, -1), shared.ErrNegativeValue)
}

func TestWrap(t *testing.T) {
	wrapped := Wrap("u1", []Event{LevelUp{Level: 2}}, day)
	require.Len(t, wrapped, 1)
	assert.Equal(t, shared.EventLevelUp, wrapped[0].EventType())
	assert.Equal(t, "u1", wrapped[0].AggregateID())
	assert.Equal(t, 2, wrapped[0].Payload()["value"])
}
