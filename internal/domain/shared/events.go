// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are published after the owning transaction commits.
const (
	// Nomination events
	EventNominationCreated EventType = "nomination.created"
	EventNominationEdited  EventType = "nomination.edited"
	EventNominationDeleted EventType = "nomination.deleted"

	// Recognition tier events
	EventExcellenceGranted   EventType = "recognition.excellence_granted"
	EventExcellenceRefreshed EventType = "recognition.excellence_refreshed"
	EventExcellenceRevoked   EventType = "recognition.excellence_revoked"

	// Calendar events
	EventCalendarEventsClosed EventType = "calendar.events_closed"

	// Cycle events
	EventCycleActivated EventType = "cycle.activated"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
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

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
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
// Nomination Events
// ═══════════════════════════════════════════════════════════════════════════

// NominationChangedEvent is emitted for created, edited and deleted nominations.
type NominationChangedEvent struct {
	BaseEvent
	NominationID string `json:"nomination_id"`
	CycleID      string `json:"cycle_id"`
	NominatorID  string `json:"nominator_id"`
	NomineeID    string `json:"nominee_id"`
	ValueID      string `json:"value_id"`
}

// Payload implements Event interface.
func (e NominationChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"nomination_id": e.NominationID,
		"cycle_id":      e.CycleID,
		"nominator_id":  e.NominatorID,
		"nominee_id":    e.NomineeID,
		"value_id":      e.ValueID,
	}
}

// NewNominationChangedEvent creates a nomination lifecycle event.
func NewNominationChangedEvent(t EventType, nominationID, cycleID, nominatorID, nomineeID, valueID string) NominationChangedEvent {
	return NominationChangedEvent{
		BaseEvent:    NewBaseEvent(t, nominationID),
		NominationID: nominationID,
		CycleID:      cycleID,
		NominatorID:  nominatorID,
		NomineeID:    nomineeID,
		ValueID:      valueID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Recognition Events
// ═══════════════════════════════════════════════════════════════════════════

// TierChangedEvent is emitted when the excellence record of a nominee is
// granted, refreshed or revoked.
type TierChangedEvent struct {
	BaseEvent
	NomineeID    string   `json:"nominee_id"`
	CycleID      string   `json:"cycle_id"`
	RecordID     string   `json:"record_id"`
	Count        int      `json:"count"`
	Contributors []string `json:"contributors"`
}

// Payload implements Event interface.
func (e TierChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"nominee_id":   e.NomineeID,
		"cycle_id":     e.CycleID,
		"record_id":    e.RecordID,
		"count":        e.Count,
		"contributors": e.Contributors,
	}
}

// NewTierChangedEvent creates a tier transition event.
func NewTierChangedEvent(t EventType, nomineeID, cycleID, recordID string, count int, contributors []string) TierChangedEvent {
	return TierChangedEvent{
		BaseEvent:    NewBaseEvent(t, nomineeID),
		NomineeID:    nomineeID,
		CycleID:      cycleID,
		RecordID:     recordID,
		Count:        count,
		Contributors: contributors,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Calendar and Cycle Events
// ═══════════════════════════════════════════════════════════════════════════

// EventsClosedEvent is emitted by the expiry sweep.
type EventsClosedEvent struct {
	BaseEvent
	EventIDs []string `json:"event_ids"`
}

// Payload implements Event interface.
func (e EventsClosedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"event_ids": e.EventIDs,
		"count":     len(e.EventIDs),
	}
}

// NewEventsClosedEvent creates a sweep result event.
func NewEventsClosedEvent(ids []string) EventsClosedEvent {
	return EventsClosedEvent{
		BaseEvent: NewBaseEvent(EventCalendarEventsClosed, "calendar"),
		EventIDs:  ids,
	}
}

// CycleActivatedEvent is emitted when the active cycle changes.
type CycleActivatedEvent struct {
	BaseEvent
	CycleID string `json:"cycle_id"`
	Name    string `json:"name"`
}

// Payload implements Event interface.
func (e CycleActivatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cycle_id": e.CycleID,
		"name":     e.Name,
	}
}

// NewCycleActivatedEvent creates a cycle activation event.
func NewCycleActivatedEvent(cycleID, name string) CycleActivatedEvent {
	return CycleActivatedEvent{
		BaseEvent: NewBaseEvent(EventCycleActivated, cycleID),
		CycleID:   cycleID,
		Name:      name,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
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
