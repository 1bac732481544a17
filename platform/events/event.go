// Package events carries domain events between modules without direct
// dependencies. A module publishes what happened; whoever cares subscribes.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName identifies the event type. Subscriptions key on it.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events. Embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// Handler consumes events it subscribed to.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function into a Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus publishes events to subscribed handlers.
type Bus interface {
	// Publish fans the event out asynchronously and returns immediately.
	Publish(ctx context.Context, event Event)

	// PublishSync runs every handler before returning. Used where the
	// caller needs the side effects to have happened, like outbox delivery.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers handler for events whose EventName matches.
	Subscribe(eventName string, handler Handler)
}
