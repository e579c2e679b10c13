package host

import (
	"sort"
	"sync"

	"widget-lifecycle/internal/core/ports"
)

type registration struct {
	target    ports.EventTarget
	eventType string
	handler   ports.Handler
}

// EventBus is an in-memory implementation of ports.Events. Handlers are
// invoked synchronously by Dispatch in registration order.
type EventBus struct {
	mu   sync.Mutex
	next ports.ListenerID
	regs map[ports.ListenerID]registration
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{regs: make(map[ports.ListenerID]registration)}
}

// RegisterEventHandler attaches h to (target, eventType). The same pair may be
// registered any number of times; each registration gets its own ID.
func (b *EventBus) RegisterEventHandler(target ports.EventTarget, eventType string, h ports.Handler) ports.ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.regs[b.next] = registration{target: target, eventType: eventType, handler: h}
	return b.next
}

// UnregisterEventHandler removes one registration.
func (b *EventBus) UnregisterEventHandler(id ports.ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.regs[id]; !ok {
		return false
	}
	delete(b.regs, id)
	return true
}

// Dispatch calls every handler registered for (target, eventType) and returns
// how many ran. The lock is not held while handlers run.
func (b *EventBus) Dispatch(target ports.EventTarget, eventType string, payload any) int {
	b.mu.Lock()
	ids := make([]ports.ListenerID, 0)
	for id, r := range b.regs {
		if r.target == target && r.eventType == eventType {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]ports.Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.regs[id].handler)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(payload)
		}
	}
	return len(handlers)
}

// Listeners returns the number of live registrations.
func (b *EventBus) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.regs)
}
