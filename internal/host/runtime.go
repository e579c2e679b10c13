package host

import (
	"sync"
	"time"

	"widget-lifecycle/internal/core/ports"
)

var _ ports.Host = (*Runtime)(nil)

type runtimeTimer struct {
	t     *time.Timer
	every time.Duration
}

// Runtime is the wall-clock Host. Timer callbacks fire on their own
// goroutines but are serialised through a single scheduler lock, so at most
// one callback runs at a time.
type Runtime struct {
	*EventBus

	loop   sync.Mutex
	mu     sync.Mutex
	nextID ports.TimerID
	timers map[ports.TimerID]*runtimeTimer
}

// NewRuntime creates a wall-clock Host.
func NewRuntime() *Runtime {
	return &Runtime{
		EventBus: NewEventBus(),
		timers:   make(map[ports.TimerID]*runtimeTimer),
	}
}

func (r *Runtime) Now() time.Time { return time.Now() }

func (r *Runtime) ScheduleTimer(d time.Duration, fn func()) ports.TimerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	rt := &runtimeTimer{}
	rt.t = time.AfterFunc(d, func() {
		r.mu.Lock()
		_, live := r.timers[id]
		delete(r.timers, id)
		r.mu.Unlock()
		if live {
			r.Do(fn)
		}
	})
	r.timers[id] = rt
	return id
}

func (r *Runtime) ScheduleRepeating(d time.Duration, fn func()) ports.TimerID {
	if d <= 0 {
		panic("host: repeating interval must be positive")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	rt := &runtimeTimer{every: d}
	rt.t = time.AfterFunc(d, func() {
		r.mu.Lock()
		_, live := r.timers[id]
		r.mu.Unlock()
		if !live {
			return
		}
		r.Do(fn)
		r.mu.Lock()
		if _, still := r.timers[id]; still {
			rt.t.Reset(d)
		}
		r.mu.Unlock()
	})
	r.timers[id] = rt
	return id
}

func (r *Runtime) CancelTimer(id ports.TimerID) bool { return r.cancel(id) }

func (r *Runtime) CancelRepeating(id ports.TimerID) bool { return r.cancel(id) }

func (r *Runtime) cancel(id ports.TimerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.timers[id]
	if !ok {
		return false
	}
	delete(r.timers, id)
	rt.t.Stop()
	return true
}

// Do runs fn while holding the scheduler lock. Callers use it to keep their
// own work from interleaving with timer callbacks. It must not be called
// from inside a timer callback.
func (r *Runtime) Do(fn func()) {
	if fn == nil {
		return
	}
	r.loop.Lock()
	defer r.loop.Unlock()
	fn()
}

// Pending returns the number of scheduled timers.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}
