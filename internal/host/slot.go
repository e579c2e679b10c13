package host

import (
	"sync"

	"widget-lifecycle/internal/core/ports"
)

// Decorator is a Host layered over another Host by an instrumenting
// component.
type Decorator interface {
	ports.Host
	// Disarm turns the decorator into a plain pass-through to the host it
	// wraps. It must be safe to call more than once.
	Disarm()
}

// Slot is the instrumentable entry point through which timers and event
// handlers are registered. Components look up Current on every call, the way
// code would call a global setTimeout, so a decorator installed later is seen
// by everyone.
type Slot struct {
	mu       sync.Mutex
	base     ports.Host
	layers   []Decorator
	disarmed map[Decorator]bool
}

// NewSlot creates a Slot whose undecorated host is base.
func NewSlot(base ports.Host) *Slot {
	return &Slot{base: base, disarmed: make(map[Decorator]bool)}
}

var global = NewSlot(NewRuntime())

// Global returns the process-wide Slot backed by a Runtime host.
func Global() *Slot { return global }

// Base returns the undecorated host.
func (s *Slot) Base() ports.Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Current returns the outermost installed host.
func (s *Slot) Current() ports.Host {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.layers); n > 0 {
		return s.layers[n-1]
	}
	return s.base
}

// Depth returns the number of installed decorators.
func (s *Slot) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.layers)
}

// Install wraps the current host with the decorator built by wrap and returns
// the guard that removes it again.
func (s *Slot) Install(wrap func(inner ports.Host) Decorator) *Guard {
	s.mu.Lock()
	defer s.mu.Unlock()
	inner := s.base
	if n := len(s.layers); n > 0 {
		inner = s.layers[n-1]
	}
	d := wrap(inner)
	s.layers = append(s.layers, d)
	return &Guard{slot: s, dec: d}
}

func (s *Slot) remove(d Decorator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmed[d] = true
	// Layers below the top stay in the chain as pass-throughs until every
	// layer installed above them has been removed.
	for n := len(s.layers); n > 0 && s.disarmed[s.layers[n-1]]; n = len(s.layers) {
		delete(s.disarmed, s.layers[n-1])
		s.layers = s.layers[:n-1]
	}
}

// Guard removes one installed decorator. Restore is idempotent.
type Guard struct {
	slot *Slot
	dec  Decorator
	once sync.Once
}

// Restore disarms the decorator and unlinks it from the slot.
func (g *Guard) Restore() {
	g.once.Do(func() {
		g.dec.Disarm()
		g.slot.remove(g.dec)
	})
}
