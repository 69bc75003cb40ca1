package progression

import (
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTANTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// XPPerLevel - сколько XP нужно на один уровень.
	XPPerLevel = 500

	// MinScore, MaxScore - допустимый диапазон оценки сессии.
	MinScore = 0
	MaxScore = 100

	// StreakLossThreshold - с какой длины потеря серии заслуживает уведомления.
	StreakLossThreshold = 3
)

// Пороги достижений. Порядок важен: XP-пороги проверяются по возрастанию.
var (
	SessionMilestones = []int{1, 5, 10, 25, 50, 100}
	XPMilestones      = []int{100, 500, 1000, 2500, 5000, 10000}
	StreakMilestones  = []int{3, 7, 14, 21, 30, 60, 90, 365}
)

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// Progress - прогрессия пользователя, как она хранится в профиле.
type Progress struct {
	XP             int
	Level          int
	Streak         int
	TotalSessions  int
	TotalPoints    int
	LastActiveDate time.Time // zero - пользователь ещё ни разу не был активен
}

// Totals - агрегаты, восстановленные из истории сессий.
type Totals struct {
	XP            int
	Level         int
	TotalSessions int
	TotalPoints   int
}

// CompletedSession - минимальные данные завершённой сессии для пересчёта.
type CompletedSession struct {
	Score    int
	XPEarned int
}

// LevelForXP вычисляет уровень: floor(xp / 500) + 1.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// ValidateCompletion проверяет предусловия завершения сессии.
// Движок не проверяет входные данные сам: это обязанность вызывающего.
func ValidateCompletion(score, xpEarned int) error {
	if score < MinScore || score > MaxScore {
		return shared.ErrInvalidScore
	}
	if xpEarned < 0 {
		return shared.ErrInvalidXPEarned
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ApplySessionCompletion начисляет результат одной завершённой сессии.
// Серия и LastActiveDate не меняются: для этого есть ApplyDailyCheck.
func ApplySessionCompletion(p Progress, score, xpEarned int) (Progress, []Event) {
	next := p
	next.XP = p.XP + xpEarned
	next.Level = LevelForXP(next.XP)
	next.TotalSessions = p.TotalSessions + 1
	next.TotalPoints = p.TotalPoints + score

	var events []Event

	if contains(SessionMilestones, next.TotalSessions) {
		events = append(events, SessionMilestone{Sessions: next.TotalSessions})
	}

	if next.Level > p.Level {
		events = append(events, LevelUp{Level: next.Level})
	}

	// Только первый пересечённый порог.
	for _, threshold := range XPMilestones {
		if p.XP < threshold && threshold <= next.XP {
			events = append(events, XPMilestone{Threshold: threshold})
			break
		}
	}

	return next, events
}

// ApplyDailyCheck вычисляет новую длину серии по календарной разнице
// между LastActiveDate и now в зоне loc.
//
//	diff == 0  без изменений
//	diff == 1  +1, возможно StreakMilestone
//	diff  > 1  сброс до 1, StreakLost если серия была >= 3
//	diff  < 0  без изменений (рассинхрон часов)
//
// Пользователь без LastActiveDate получает серию 1 без событий.
func ApplyDailyCheck(p Progress, now time.Time, loc *time.Location) (int, []Event) {
	if p.LastActiveDate.IsZero() {
		return 1, nil
	}

	diff := timeutil.CalendarDaysBetween(p.LastActiveDate, now, loc)

	switch {
	case diff <= 0:
		return p.Streak, nil

	case diff == 1:
		streak := p.Streak + 1
		if contains(StreakMilestones, streak) {
			return streak, []Event{StreakMilestone{Streak: streak}}
		}
		return streak, nil

	default:
		if p.Streak >= StreakLossThreshold {
			return 1, []Event{StreakLost{Previous: p.Streak}}
		}
		return 1, nil
	}
}

// CheckIn применяет ApplyDailyCheck и возвращает состояние, готовое к записи.
// LastActiveDate никогда не сдвигается назад.
func CheckIn(p Progress, now time.Time, loc *time.Location) (Progress, []Event) {
	streak, events := ApplyDailyCheck(p, now, loc)
	next := p
	next.Streak = streak
	if now.After(p.LastActiveDate) {
		next.LastActiveDate = now
	}
	return next, events
}

// Complete - полный переход при завершении сессии: начисление и дневная
// проверка, каждое ровно один раз. Дневная проверка идёт по LastActiveDate
// до завершения.
func Complete(p Progress, score, xpEarned int, now time.Time, loc *time.Location) (Progress, []Event) {
	next, events := ApplySessionCompletion(p, score, xpEarned)
	checked, streakEvents := CheckIn(next, now, loc)
	return checked, append(events, streakEvents...)
}

// Recalculate восстанавливает агрегаты из полной истории завершённых сессий.
// Событий не генерирует.
func Recalculate(completed []CompletedSession) Totals {
	var t Totals
	for _, s := range completed {
		t.XP += s.XPEarned
		t.TotalPoints += s.Score
		t.TotalSessions++
	}
	t.Level = LevelForXP(t.XP)
	return t
}

// WithTotals применяет пересчитанные агрегаты, не трогая серию.
func (p Progress) WithTotals(t Totals) Progress {
	p.XP = t.XP
	p.Level = t.Level
	p.TotalSessions = t.TotalSessions
	p.TotalPoints = t.TotalPoints
	return p
}
