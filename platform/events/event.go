// Package events defines the event contract shared across the engagement
// pipeline. Pipeline stages publish facts (reply received, score applied,
// step sent) and interested parties subscribe without the publisher knowing
// who listens.
package events

import (
	"context"
	"time"
)

// Event is implemented by every fact the pipeline announces.
type Event interface {
	// EventName identifies the event type; subscribers key on it.
	EventName() string
	// OccurredAt reports when the fact happened.
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all pipeline events; concrete
// events embed it and add their own payload fields.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps a fresh event with the current time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now()}
}

// Handler consumes events of one registered name.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus delivers published events to subscribed handlers.
type Bus interface {
	// Publish hands the event to every handler registered for its name.
	// Delivery is asynchronous; publishers never block on slow consumers.
	Publish(ctx context.Context, event Event)

	// PublishSync delivers the event and waits for every handler.
	PublishSync(ctx context.Context, event Event) error

	// Subscribe registers a handler for the event name, matched against
	// Event.EventName.
	Subscribe(eventName string, handler Handler)
}
