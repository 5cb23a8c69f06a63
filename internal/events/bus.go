// Package events provides the subscription mechanism the gateway uses to
// surface typed protocol events to the host application.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Source identifies where an event originated.
type Source string

const (
	SourceIRC    Source = "irc"
	SourceSystem Source = "system"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is a single notification delivered to subscribers. Data carries the
// typed payload for the event (an irc message, a state value, an error).
type Event struct {
	Type      string
	Data      any
	Timestamp time.Time
	Source    Source
}

// Handler receives events for a subscription.
type Handler func(Event)

// Subscription is the revocable handle returned by Subscribe. Subscribers
// hold no ownership of the bus; cancelling the handle is the only way to
// detach.
type Subscription struct {
	id        string
	eventType string
	bus       *Bus
}

// ID returns the unique identifier of this subscription.
func (s *Subscription) ID() string { return s.id }

// Cancel detaches the subscription from the bus. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s.bus != nil {
		s.bus.remove(s.eventType, s.id)
	}
}

type entry struct {
	id      string
	handler Handler
}

// Bus routes events to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]entry
	closed   bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]entry)}
}

// Subscribe registers a handler for the given event type and returns a
// revocable handle. Use Wildcard to receive every event.
func (b *Bus) Subscribe(eventType string, handler Handler) *Subscription {
	sub := &Subscription{id: uuid.NewString(), eventType: eventType, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return sub
	}
	b.handlers[eventType] = append(b.handlers[eventType], entry{id: sub.id, handler: handler})
	return sub
}

// Publish delivers the event synchronously, in registration order. The
// connection loop publishes inbound events through this path so arrival
// order is preserved.
func (b *Bus) Publish(event Event) {
	for _, h := range b.snapshot(event.Type) {
		h(event)
	}
}

// Emit delivers the event asynchronously, one goroutine per handler. No
// ordering guarantee.
func (b *Bus) Emit(event Event) {
	for _, h := range b.snapshot(event.Type) {
		go h(event)
	}
}

// Close drops every subscriber. Subsequent Subscribe calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]entry)
}

func (b *Bus) snapshot(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Handler, 0, len(b.handlers[eventType])+len(b.handlers[Wildcard]))
	for _, e := range b.handlers[eventType] {
		out = append(out, e.handler)
	}
	if eventType != Wildcard {
		for _, e := range b.handlers[Wildcard] {
			out = append(out, e.handler)
		}
	}
	return out
}

func (b *Bus) remove(eventType, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[eventType]
	for i, e := range subs {
		if e.id == id {
			b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}
