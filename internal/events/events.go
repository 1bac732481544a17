// Package events defines the domain events exchanged between modules and
// re-exports the platform event bus.
package events

import (
	"time"

	"github.com/google/uuid"

	platformevents "caddie_backend/platform/events"
	"caddie_backend/platform/logger"
)

// Bus is a type alias to the platform event bus interface.
type Bus = platformevents.Bus

// InMemoryBus is a type alias to the platform in-memory event bus.
type InMemoryBus = platformevents.InMemoryBus

// Event is a type alias to the platform event interface.
type Event = platformevents.Event

// BaseEvent is a type alias to the platform base event.
type BaseEvent = platformevents.BaseEvent

// HandlerFunc is a type alias to the platform handler adapter.
type HandlerFunc = platformevents.HandlerFunc

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *platformevents.InMemoryBus {
	return platformevents.NewInMemoryBus(log)
}

// NewBaseEvent creates a new base event with the current timestamp.
func NewBaseEvent() BaseEvent {
	return platformevents.NewBaseEvent()
}

// Event name constants.
const (
	EventBookingCreated          = "booking.created"
	EventBookingStatusChanged    = "booking.status_changed"
	EventNotificationDue         = "notification.due"
	EventSupportHandoffRequested = "support.handoff_requested"
)

// BookingCreated is published after the booking transaction commits.
// Handlers must never run before commit: a rolled-back booking must not
// produce a staff notification.
type BookingCreated struct {
	BaseEvent
	BookingID   uuid.UUID
	Reference   string
	MemberID    uuid.UUID
	MemberName  string
	VenueName   string
	BayLabel    string
	StartTime   time.Time
	PlayerCount int
}

// EventName identifies the event type.
func (BookingCreated) EventName() string { return EventBookingCreated }

// BookingStatusChanged is published after a status transition commits.
type BookingStatusChanged struct {
	BaseEvent
	BookingID  uuid.UUID
	Reference  string
	MemberID   uuid.UUID
	Previous   string
	Next       string
	Actor      *string
	Reason     *string
}

// EventName identifies the event type.
func (BookingStatusChanged) EventName() string { return EventBookingStatusChanged }

// SupportHandoffRequested is published when a member confirms a support
// escalation, so staff are told even though the conversation already
// acknowledged it.
type SupportHandoffRequested struct {
	BaseEvent
	MemberID   uuid.UUID
	MemberName string
	Phone      string
	Topic      string
}

// EventName identifies the event type.
func (SupportHandoffRequested) EventName() string { return EventSupportHandoffRequested }

// NotificationDue is published by the scheduler worker when an outbox row
// reaches its run-at time.
type NotificationDue struct {
	BaseEvent
	OutboxID uuid.UUID
}

// EventName identifies the event type.
func (NotificationDue) EventName() string { return EventNotificationDue }
