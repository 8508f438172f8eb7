// Package bus is the in-process notification layer for automation
// lifecycle events. Delivery is synchronous and volatile: durable state
// lives in the persistent store, never here.
package bus

import (
	"fmt"
	"sync"
	"time"
)

// EventType identifies an automation lifecycle event
type EventType string

const (
	EventActivityAdded   EventType = "activity-added"
	EventActionScheduled EventType = "action-scheduled"
	EventActionExecuting EventType = "action-executing"
	EventActionCompleted EventType = "action-completed"
	EventActionFailed    EventType = "action-failed"
	EventConfigChanged   EventType = "config-changed"
)

// Event is one notification delivered to subscribers
type Event struct {
	Type      EventType
	ChatID    string
	Data      any
	Timestamp time.Time
}

// Handler receives events. A panicking handler is recovered and logged;
// it never breaks delivery to other subscribers or the emitter.
type Handler func(Event)

type subscriber struct {
	id      int
	handler Handler
}

// Bus is an in-process publish/subscribe fan-out with per-type and
// wildcard subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	byType map[EventType][]subscriber
	any    []subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{byType: make(map[EventType][]subscriber)}
}

// On subscribes to one event type and returns an unsubscribe func.
func (b *Bus) On(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscriber{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byType[t] = removeSubscriber(b.byType[t], id)
	}
}

// OnAny subscribes to every event type and returns an unsubscribe func.
func (b *Bus) OnAny(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.any = append(b.any, subscriber{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.any = removeSubscriber(b.any, id)
	}
}

// Emit delivers the event synchronously to type subscribers then
// wildcard subscribers.
func (b *Bus) Emit(t EventType, chatID string, data any) {
	ev := Event{Type: t, ChatID: chatID, Data: data, Timestamp: time.Now()}

	b.mu.RLock()
	subs := make([]subscriber, 0, len(b.byType[t])+len(b.any))
	subs = append(subs, b.byType[t]...)
	subs = append(subs, b.any...)
	b.mu.RUnlock()

	for _, s := range subs {
		deliver(s.handler, ev)
	}
}

func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Bus] Subscriber panic on %s: %v\n", ev.Type, r)
		}
	}()
	h(ev)
}

func removeSubscriber(subs []subscriber, id int) []subscriber {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
