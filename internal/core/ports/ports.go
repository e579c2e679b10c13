package ports

import (
	"time"
)

// TimerID identifies a timer scheduled on a Host
type TimerID uint64

// ListenerID identifies one event handler registration
type ListenerID uint64

// EventTarget is anything handlers can be attached to. Targets are compared
// by identity, so pointers or small comparable values work best.
type EventTarget any

// Handler receives the payload of a dispatched event.
type Handler func(payload any)

// Clock reports the host's notion of "now".
type Clock interface {
	Now() time.Time
}

// Scheduler maps to the host timer primitives.
type Scheduler interface {
	// ScheduleTimer runs fn once after d. The returned ID can be cancelled
	// until fn has started.
	ScheduleTimer(d time.Duration, fn func()) TimerID
	// CancelTimer reports whether a pending timer was cancelled.
	CancelTimer(id TimerID) bool

	// ScheduleRepeating runs fn every d until cancelled.
	ScheduleRepeating(d time.Duration, fn func()) TimerID
	// CancelRepeating reports whether a repeating timer was cancelled.
	CancelRepeating(id TimerID) bool
}

// Events maps to the host event-registration primitives.
type Events interface {
	RegisterEventHandler(target EventTarget, eventType string, h Handler) ListenerID
	UnregisterEventHandler(id ListenerID) bool
}

// Host is the full set of primitives the lifecycle subsystem consumes.
type Host interface {
	Clock
	Scheduler
	Events
}

// HeapSampler samples the heap-usage metric in bytes. Implementations return
// ErrUnavailable when the host has no way of sampling.
type HeapSampler interface {
	SampleHeap() (uint64, error)
}

// Storage is the minimal keyed store contract shared by every store preset.
type Storage[K comparable, V any] interface {
	Get(key K) (V, bool)
	Delete(key K) bool
	Clear()
	Len() int
}

// Sweeper is implemented by stores that can drop expired entries on demand.
type Sweeper interface {
	Sweep() int
}
