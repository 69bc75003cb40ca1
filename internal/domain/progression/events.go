package progression

import (
	"time"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// Event - событие прогрессии. Закрытый вариантный тип: реализации есть
// только в этом пакете, потребители различают их через type switch или Kind().
type Event interface {
	// Kind возвращает дискриминатор варианта.
	Kind() shared.EventType

	// Value возвращает числовое значение события (порог, уровень, длину серии).
	Value() int

	sealed()
}

// SessionMilestone - достигнуто точное число завершённых сессий.
type SessionMilestone struct {
	Sessions int
}

func (e SessionMilestone) Kind() shared.EventType { return shared.EventSessionMilestone }
func (e SessionMilestone) Value() int             { return e.Sessions }
func (SessionMilestone) sealed()                  {}

// LevelUp - новый уровень выше предыдущего.
type LevelUp struct {
	Level int
}

func (e LevelUp) Kind() shared.EventType { return shared.EventLevelUp }
func (e LevelUp) Value() int             { return e.Level }
func (LevelUp) sealed()                  {}

// XPMilestone - пересечён порог накопленного XP.
type XPMilestone struct {
	Threshold int
}

func (e XPMilestone) Kind() shared.EventType { return shared.EventXPMilestone }
func (e XPMilestone) Value() int             { return e.Threshold }
func (XPMilestone) sealed()                  {}

// StreakMilestone - серия достигла одного из отмечаемых значений.
type StreakMilestone struct {
	Streak int
}

func (e StreakMilestone) Kind() shared.EventType { return shared.EventStreakMilestone }
func (e StreakMilestone) Value() int             { return e.Streak }
func (StreakMilestone) sealed()                  {}

// StreakLost - серия длиной не меньше 3 дней прервана.
type StreakLost struct {
	Previous int
}

func (e StreakLost) Kind() shared.EventType { return shared.EventStreakLost }
func (e StreakLost) Value() int             { return e.Previous }
func (StreakLost) sealed()                  {}

// ══════════════════════════════════════════════════════════════════════════════
// BUS ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// Occurred оборачивает событие прогрессии в shared.Event для шины событий.
type Occurred struct {
	shared.BaseEvent
	Event Event
}

// Payload implements shared.Event.
func (o Occurred) Payload() map[string]interface{} {
	return map[string]interface{}{
		"kind":  string(o.Event.Kind()),
		"value": o.Event.Value(),
	}
}

// Wrap превращает список событий пользователя в события шины.
func Wrap(uid string, events []Event, at time.Time) []shared.Event {
	out := make([]shared.Event, 0, len(events))
	for _, ev := range events {
		out = append(out, Occurred{
			BaseEvent: shared.NewBaseEvent(ev.Kind(), uid, at),
			Event:     ev,
		})
	}
	return out
}

// EventTypes - все типы событий прогрессии, для подписки.
func EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventSessionMilestone,
		shared.EventLevelUp,
		shared.EventXPMilestone,
		shared.EventStreakMilestone,
		shared.EventStreakLost,
	}
}
