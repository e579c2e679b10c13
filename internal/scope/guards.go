package scope

import (
	"sync"
	"time"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/host"
)

type timerEntry struct {
	repeating  bool
	done       bool
	unregister func()
}

// TimerGuard schedules timers through a Slot and makes sure each one is
// cancelled when the owning Registry is torn down.
type TimerGuard struct {
	slot     *host.Slot
	registry *Registry

	mu     sync.Mutex
	timers map[ports.TimerID]*timerEntry
}

// NewTimerGuard creates a TimerGuard whose cancellations are registered with r.
func NewTimerGuard(slot *host.Slot, r *Registry) *TimerGuard {
	return &TimerGuard{slot: slot, registry: r, timers: make(map[ports.TimerID]*timerEntry)}
}

// SetTimeout runs fn once after d. Once it fires, its pending cleanup is
// dropped.
func (g *TimerGuard) SetTimeout(d time.Duration, fn func()) ports.TimerID {
	return g.schedule(d, fn, false)
}

// SetInterval runs fn every d until cleared or torn down.
func (g *TimerGuard) SetInterval(d time.Duration, fn func()) ports.TimerID {
	return g.schedule(d, fn, true)
}

// ClearTimeout cancels a timer created by SetTimeout.
func (g *TimerGuard) ClearTimeout(id ports.TimerID) bool { return g.clear(id) }

// ClearInterval cancels a timer created by SetInterval.
func (g *TimerGuard) ClearInterval(id ports.TimerID) bool { return g.clear(id) }

// ActiveTimers returns the number of timers that have neither fired nor been
// cleared.
func (g *TimerGuard) ActiveTimers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}

func (g *TimerGuard) schedule(d time.Duration, fn func(), repeating bool) ports.TimerID {
	e := &timerEntry{repeating: repeating}
	h := g.slot.Current()

	g.mu.Lock()
	var id ports.TimerID
	if repeating {
		id = h.ScheduleRepeating(d, fn)
	} else {
		id = h.ScheduleTimer(d, func() {
			g.fired(id)
			if fn != nil {
				fn()
			}
		})
	}
	g.timers[id] = e
	g.mu.Unlock()

	unregister := g.registry.Register(func() error {
		g.cancel(id)
		return nil
	})

	g.mu.Lock()
	e.unregister = unregister
	done := e.done
	g.mu.Unlock()
	if done {
		unregister()
	}
	return id
}

func (g *TimerGuard) fired(id ports.TimerID) {
	g.mu.Lock()
	e, ok := g.timers[id]
	if ok {
		delete(g.timers, id)
		e.done = true
	}
	g.mu.Unlock()
	if ok && e.unregister != nil {
		e.unregister()
	}
}

func (g *TimerGuard) clear(id ports.TimerID) bool {
	e, ok := g.cancel(id)
	if ok && e.unregister != nil {
		e.unregister()
	}
	return ok
}

func (g *TimerGuard) cancel(id ports.TimerID) (*timerEntry, bool) {
	g.mu.Lock()
	e, ok := g.timers[id]
	if ok {
		delete(g.timers, id)
		e.done = true
	}
	g.mu.Unlock()
	if !ok {
		return nil, false
	}
	h := g.slot.Current()
	if e.repeating {
		h.CancelRepeating(id)
	} else {
		h.CancelTimer(id)
	}
	return e, true
}

type listenerEntry struct {
	target     ports.EventTarget
	eventType  string
	unregister func()
}

// EventGuard registers event handlers through a Slot and removes each one
// when the owning Registry is torn down. Registrations form a multiset: the
// same target and event type may be registered any number of times.
type EventGuard struct {
	slot     *host.Slot
	registry *Registry

	mu        sync.Mutex
	listeners map[ports.ListenerID]*listenerEntry
}

// NewEventGuard creates an EventGuard whose removals are registered with r.
func NewEventGuard(slot *host.Slot, r *Registry) *EventGuard {
	return &EventGuard{slot: slot, registry: r, listeners: make(map[ports.ListenerID]*listenerEntry)}
}

// AddEventListener attaches h to (target, eventType).
func (g *EventGuard) AddEventListener(target ports.EventTarget, eventType string, h ports.Handler) ports.ListenerID {
	e := &listenerEntry{target: target, eventType: eventType}

	g.mu.Lock()
	id := g.slot.Current().RegisterEventHandler(target, eventType, h)
	g.listeners[id] = e
	g.mu.Unlock()

	unregister := g.registry.Register(func() error {
		g.remove(id)
		return nil
	})

	g.mu.Lock()
	_, live := g.listeners[id]
	e.unregister = unregister
	g.mu.Unlock()
	if !live {
		unregister()
	}
	return id
}

// RemoveEventListener removes a single registration.
func (g *EventGuard) RemoveEventListener(id ports.ListenerID) bool {
	e, ok := g.remove(id)
	if ok && e.unregister != nil {
		e.unregister()
	}
	return ok
}

// ActiveListeners returns the number of registrations still attached.
func (g *EventGuard) ActiveListeners() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

// ListenersFor counts the registrations for one (target, eventType) pair.
func (g *EventGuard) ListenersFor(target ports.EventTarget, eventType string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, e := range g.listeners {
		if e.target == target && e.eventType == eventType {
			n++
		}
	}
	return n
}

func (g *EventGuard) remove(id ports.ListenerID) (*listenerEntry, bool) {
	g.mu.Lock()
	e, ok := g.listeners[id]
	delete(g.listeners, id)
	g.mu.Unlock()
	if !ok {
		return nil, false
	}
	g.slot.Current().UnregisterEventHandler(id)
	return e, true
}
