package events

import (
	"sort"
	"sync"
)

// Handler receives an event payload. Handlers run synchronously on the
// emitting goroutine and must return before Emit does.
type Handler func(payload interface{})

// Emitter is a publish/subscribe hub keyed by event name. Delivery is
// synchronous and in subscription order, which preserves the ordering
// guarantee between State Store mutations and their lifecycle events.
type Emitter struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]Handler
}

// New creates an empty emitter.
func New() *Emitter {
	return &Emitter{subs: make(map[string]map[int]Handler)}
}

// On subscribes a handler to an event name and returns an unsubscribe
// function. Unsubscribing twice is a no-op.
func (e *Emitter) On(event string, h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs[event] == nil {
		e.subs[event] = make(map[int]Handler)
	}
	key := e.next
	e.next++
	e.subs[event][key] = h

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs[event], key)
	}
}

// Emit delivers the payload to every handler subscribed to the event.
// Handlers registered earlier run first.
func (e *Emitter) Emit(event string, payload interface{}) {
	e.mu.RLock()
	handlers := make([]struct {
		key int
		h   Handler
	}, 0, len(e.subs[event]))
	for key, h := range e.subs[event] {
		handlers = append(handlers, struct {
			key int
			h   Handler
		}{key, h})
	}
	e.mu.RUnlock()

	// Map iteration order is random; sort by registration key.
	sort.Slice(handlers, func(i, j int) bool { return handlers[i].key < handlers[j].key })

	for _, entry := range handlers {
		entry.h(payload)
	}
}

// SubscriberCount returns the number of handlers for an event.
func (e *Emitter) SubscriberCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs[event])
}
