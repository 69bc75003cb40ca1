// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Profile events
	EventProfileProvisioned EventType = "profile.provisioned"

	// Session events
	EventSessionCompleted EventType = "session.completed"
	EventSessionAbandoned EventType = "session.abandoned"

	// Progression events
	EventSessionMilestone EventType = "progression.session_milestone"
	EventLevelUp          EventType = "progression.level_up"
	EventXPMilestone      EventType = "progression.xp_milestone"
	EventStreakMilestone  EventType = "progression.streak_milestone"
	EventStreakLost       EventType = "progression.streak_lost"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	// For everything in this system it is the owning user id.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event stamped at the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Profile Events
// ═══════════════════════════════════════════════════════════════════════════

// ProfileProvisionedEvent is emitted once, when a profile is lazily created.
type ProfileProvisionedEvent struct {
	BaseEvent
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Payload implements Event interface.
func (e ProfileProvisionedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email": e.Email,
		"name":  e.Name,
	}
}

// NewProfileProvisionedEvent creates a new ProfileProvisionedEvent.
func NewProfileProvisionedEvent(uid, email, name string, at time.Time) ProfileProvisionedEvent {
	return ProfileProvisionedEvent{
		BaseEvent: NewBaseEvent(EventProfileProvisioned, uid, at),
		Email:     email,
		Name:      name,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionCompletedEvent is emitted after a completion transaction commits.
type SessionCompletedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
	Score     int    `json:"score"`
	XPEarned  int    `json:"xp_earned"`
}

// Payload implements Event interface.
func (e SessionCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"score":      e.Score,
		"xp_earned":  e.XPEarned,
	}
}

// NewSessionCompletedEvent creates a new SessionCompletedEvent.
func NewSessionCompletedEvent(uid, sessionID string, score, xpEarned int, at time.Time) SessionCompletedEvent {
	return SessionCompletedEvent{
		BaseEvent: NewBaseEvent(EventSessionCompleted, uid, at),
		SessionID: sessionID,
		Score:     score,
		XPEarned:  xpEarned,
	}
}

// SessionAbandonedEvent is emitted when a session is abandoned.
type SessionAbandonedEvent struct {
	BaseEvent
	SessionID string `json:"session_id"`
}

// Payload implements Event interface.
func (e SessionAbandonedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"session_id": e.SessionID}
}

// NewSessionAbandonedEvent creates a new SessionAbandonedEvent.
func NewSessionAbandonedEvent(uid, sessionID string, at time.Time) SessionAbandonedEvent {
	return SessionAbandonedEvent{
		BaseEvent: NewBaseEvent(EventSessionAbandoned, uid, at),
		SessionID: sessionID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler handles one event. The context carries the handler deadline.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish hands the event to subscribers. It must not block on them.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
