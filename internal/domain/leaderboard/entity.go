// Package leaderboard содержит доменную модель таблицы лидеров FeynLearn.
// Таблица не хранится: она каждый раз строится заново из профилей.
package leaderboard

import (
	"fmt"
	"sort"
	"strings"

	"github.com/feynlearn/feynlearn-hub/internal/domain/profile"
	"github.com/feynlearn/feynlearn-hub/internal/domain/progression"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию пользователя в таблице.
// Rank начинается с 1 (первое место).
type Rank int

// AnonymousName показывается вместо пустого имени.
const AnonymousName = "Anonymous"

// DefaultLimit - размер таблицы по умолчанию.
const DefaultLimit = 50

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - одна строка таблицы лидеров.
type Entry struct {
	Rank   Rank   `json:"rank"`
	UID    string `json:"uid"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	XP     int    `json:"xp"`
	Level  int    `json:"level"`
	Streak int    `json:"streak"`
}

// NewEntry строит строку из среза профиля. Уровень берётся из XP, а не из
// сохранённого значения.
func NewEntry(s profile.Snapshot) Entry {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		name = AnonymousName
	}
	xp := s.XP
	if xp < 0 {
		xp = 0
	}
	streak := s.Streak
	if streak < 0 {
		streak = 0
	}
	return Entry{
		UID:    s.UID,
		Name:   name,
		Avatar: s.Avatar,
		XP:     xp,
		Level:  progression.LevelForXP(xp),
		Streak: streak,
	}
}

// String возвращает строковое представление для логирования.
func (e Entry) String() string {
	return fmt.Sprintf("Entry{Rank: %d, Name: %s, XP: %d}", e.Rank, e.Name, e.XP)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING (Ranked List)
// ══════════════════════════════════════════════════════════════════════════════

// Ranking - полный отсортированный список.
type Ranking struct {
	entries []Entry
}

// NewRanking строит Ranking из срезов в порядке хранилища.
func NewRanking(snapshots []profile.Snapshot) *Ranking {
	entries := make([]Entry, 0, len(snapshots))
	for _, s := range snapshots {
		entries = append(entries, NewEntry(s))
	}
	r := &Ranking{entries: entries}
	r.SortByXP()
	return r
}

// SortByXP сортирует по XP по убыванию и присваивает ранги 1..N.
// При равном XP сохраняется порядок хранилища; общих рангов нет.
func (r *Ranking) SortByXP() {
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].XP > r.entries[j].XP
	})
	for i := range r.entries {
		r.entries[i].Rank = Rank(i + 1)
	}
}

// Top возвращает первые n записей.
func (r *Ranking) Top(n int) []Entry {
	if n <= 0 {
		return []Entry{}
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	result := make([]Entry, n)
	copy(result, r.entries[:n])
	return result
}

// RankOf возвращает позицию пользователя или 0, если его нет.
func (r *Ranking) RankOf(uid string) Rank {
	for _, e := range r.entries {
		if e.UID == uid {
			return e.Rank
		}
	}
	return 0
}

// Count возвращает число записей.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// Project строит таблицу лидеров: стабильная сортировка по XP,
// ранги по позиции, не больше limit строк (по умолчанию 50, максимум 100).
func Project(snapshots []profile.Snapshot, limit int) []Entry {
	n := shared.NewLimit(limit, DefaultLimit).Int()
	return NewRanking(snapshots).Top(n)
}
