package shared

import "time"

// EventType represents the type of domain event.
type EventType string

// Domain event types published on the in-process bus. Cross-service facts are
// not listed here: they live in internal/integration and travel over the
// request/reply bridge instead.
const (
	// EventPaymentAttempted - a charge was submitted to the gateway.
	EventPaymentAttempted EventType = "payment.attempted"

	// EventPaymentAccepted - the gateway accepted the charge.
	EventPaymentAccepted EventType = "payment.accepted"

	// EventPaymentRejected - the gateway declined the charge.
	EventPaymentRejected EventType = "payment.rejected"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// AggregateID returns the ID of the aggregate that produced the event.
	AggregateID() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time
}

// BaseEvent provides a reusable Event implementation for concrete events.
type BaseEvent struct {
	Type      EventType
	Aggregate string
	Timestamp time.Time
}

// NewBaseEvent creates a BaseEvent stamped with the current UTC time.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Aggregate: aggregateID,
		Timestamp: time.Now().UTC(),
	}
}

// EventType returns the type of the event.
func (e BaseEvent) EventType() EventType { return e.Type }

// AggregateID returns the ID of the aggregate that produced the event.
func (e BaseEvent) AggregateID() string { return e.Aggregate }

// OccurredAt returns when the event occurred.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventHandler processes a single event.
type EventHandler func(event Event) error
