// Package events provides the in-process event bus that announces cache
// activity to UI collaborators.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// HistoricalUpdated is emitted after a background refresh completed
	// successfully. Collaborators re-render instead of polling.
	HistoricalUpdated EventType = "historical-updated"

	// CacheHit is emitted on every cache read, flagging whether the served
	// data was stale.
	CacheHit EventType = "alpha_cache_hit"
)

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// Handler is a subscriber callback. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(event *Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus is a synchronous publish/subscribe channel. Delivery is best-effort:
// subscribers present at publish time receive the event in registration
// order, a panicking handler is isolated from the others, and there is no
// persistence or replay.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[EventType][]subscription
	log    zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for an event type and returns a function
// that removes the subscription.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[eventType]
		for i, sub := range subs {
			if sub.id == id {
				b.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to all current subscribers of its type, in
// registration order, on the calling goroutine.
func (b *Bus) Publish(eventType EventType, module string, data EventData) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[eventType]))
	copy(subs, b.subs[eventType])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, event)
	}

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Int("subscribers", len(subs)).
		Msg("Event published")
}

// deliver invokes a single handler, recovering from panics so one bad
// subscriber cannot prevent the rest from running.
func (b *Bus) deliver(sub subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event_type", string(event.Type)).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	sub.handler(event)
}
