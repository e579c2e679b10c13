package leak

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/host"
	"widget-lifecycle/internal/observability"
	"widget-lifecycle/internal/weakref"
)

// Window is the monitoring window of one scope.
type Window struct {
	d       *Detector
	scopeID string
	guard   *host.Guard
	base    ports.Host // undecorated host, never another window's instrument

	mu        sync.Mutex
	timers    map[ports.TimerID]bool
	listeners map[ports.ListenerID]bool

	heapBaseline uint64
	heapTimer    ports.TimerID
	heapSampling bool
	heapEmitted  map[Severity]bool

	activations int
	flagged     bool
	closed      bool

	refs map[reflect.Type]liveSet

	closeOnce sync.Once
}

type liveSet interface {
	Live() []string
	Clear()
}

// Watch opens a monitoring window for scopeID by installing an instrumenting
// decorator on slot. Close must be called to remove it.
func (d *Detector) Watch(slot *host.Slot, scopeID string) *Window {
	w := &Window{
		d:           d,
		scopeID:     scopeID,
		timers:      make(map[ports.TimerID]bool),
		listeners:   make(map[ports.ListenerID]bool),
		heapEmitted: make(map[Severity]bool),
		refs:        make(map[reflect.Type]liveSet),
		base:        slot.Base(),
	}
	w.guard = slot.Install(func(inner ports.Host) host.Decorator {
		return &instrument{Host: inner, w: w}
	})
	if d.Watches(HeapGrowth) {
		w.startHeapWatch()
	}
	return w
}

// ScopeID returns the scope the window belongs to.
func (w *Window) ScopeID() string { return w.scopeID }

// Outstanding returns the live registration counts made during the window.
func (w *Window) Outstanding() (timers, listeners int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.timers), len(w.listeners)
}

func (w *Window) startHeapWatch() {
	sampler := w.d.opts.Sampler
	if sampler == nil {
		w.d.disable(HeapGrowth, errors.Wrap(ports.ErrUnavailable, "no heap sampler"))
		return
	}
	baseline, err := sampler.SampleHeap()
	if err != nil {
		w.d.disable(HeapGrowth, err)
		return
	}
	w.mu.Lock()
	w.heapBaseline = baseline
	w.heapSampling = true
	w.mu.Unlock()
	w.heapTimer = w.base.ScheduleRepeating(w.d.opts.HeapSampleInterval, w.sampleHeap)
}

func (w *Window) sampleHeap() {
	cur, err := w.d.opts.Sampler.SampleHeap()
	if err != nil {
		w.d.disable(HeapGrowth, err)
		w.stopHeapWatch()
		return
	}

	w.mu.Lock()
	if !w.heapSampling {
		w.mu.Unlock()
		return
	}
	var delta uint64
	if cur > w.heapBaseline {
		delta = cur - w.heapBaseline
	}
	threshold := w.d.opts.HeapThreshold
	var sev Severity
	switch {
	case delta > 2*threshold && !w.heapEmitted[Critical]:
		sev = Critical
		w.heapEmitted[Critical] = true
		w.heapEmitted[High] = true
	case delta > threshold && !w.heapEmitted[High]:
		sev = High
		w.heapEmitted[High] = true
	}
	w.mu.Unlock()

	observability.HeapDeltaBytes.Set(float64(delta))
	if sev != "" {
		w.report(HeapGrowth, sev, int(delta),
			fmt.Sprintf("heap grew by %d bytes since monitoring started (threshold %d)", delta, threshold))
	}
}

func (w *Window) stopHeapWatch() {
	w.mu.Lock()
	sampling := w.heapSampling
	w.heapSampling = false
	w.mu.Unlock()
	if sampling {
		w.base.CancelRepeating(w.heapTimer)
	}
}

// RecordActivation counts one re-activation of the scope. Going past the
// activation ceiling is reported once. It does nothing after Close.
func (w *Window) RecordActivation() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.activations++
	n := w.activations
	flag := n > w.d.opts.ActivationCeiling && !w.flagged
	if flag {
		w.flagged = true
	}
	w.mu.Unlock()
	if flag {
		w.report(ExcessiveActivity, Medium, n,
			fmt.Sprintf("scope re-activated %d times, ceiling is %d", n, w.d.opts.ActivationCeiling))
	}
}

// Activations returns the number of recorded re-activations.
func (w *Window) Activations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.activations
}

// TrackReference watches obj under key without keeping it alive. Objects
// still alive when the window closes are reported.
func TrackReference[T any](w *Window, key string, obj *T) {
	if !w.d.Watches(ObjectReferences) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	t := reflect.TypeFor[T]()
	reg, ok := w.refs[t].(*weakref.Registry[string, T])
	if !ok {
		reg = weakref.New[string, T](weakref.WithLogger[string](w.d.opts.Logger))
		w.refs[t] = reg
	}
	reg.CreateWeakReference(key, obj)
}

// LiveReferences returns the keys of tracked objects that are still alive.
func (w *Window) LiveReferences() []string {
	w.mu.Lock()
	sets := make([]liveSet, 0, len(w.refs))
	for _, s := range w.refs {
		sets = append(sets, s)
	}
	w.mu.Unlock()

	var keys []string
	for _, s := range sets {
		keys = append(keys, s.Live()...)
	}
	return keys
}

// Close ends the window. It reports every class with outstanding
// registrations and restores the slot, even if reporting panics. Only the
// first call has an effect.
func (w *Window) Close() error {
	w.closeOnce.Do(func() {
		defer w.guard.Restore()
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		w.stopHeapWatch()

		timers, listeners := w.Outstanding()
		if w.d.Watches(EventListeners) && listeners > 0 {
			w.report(EventListeners, w.countSeverity(listeners), listeners,
				fmt.Sprintf("%d event listeners still registered at teardown", listeners))
		}
		if w.d.Watches(Timers) && timers > 0 {
			w.report(Timers, w.countSeverity(timers), timers,
				fmt.Sprintf("%d timers still scheduled at teardown", timers))
		}
		if w.d.Watches(ObjectReferences) {
			if live := w.LiveReferences(); len(live) > 0 {
				w.report(ObjectReferences, Low, len(live),
					fmt.Sprintf("%d tracked objects still reachable at teardown", len(live)))
			}
		}
	})
	return nil
}

func (w *Window) countSeverity(n int) Severity {
	if n > w.d.opts.HighSeverityCount {
		return High
	}
	return Medium
}

func (w *Window) report(c Category, sev Severity, count int, desc string) {
	w.d.emit(Report{
		ScopeID:     w.scopeID,
		Category:    c,
		Severity:    sev,
		Description: desc,
		Count:       count,
		Timestamp:   w.base.Now(),
	})
}

// instrument counts timer and listener registrations made while the window
// is open. Once disarmed it only forwards.
type instrument struct {
	ports.Host
	w   *Window
	off atomic.Bool
}

func (i *instrument) Disarm() { i.off.Store(true) }

func (i *instrument) counting(c Category) bool {
	return !i.off.Load() && i.w.d.Watches(c)
}

func (i *instrument) ScheduleTimer(d time.Duration, fn func()) ports.TimerID {
	if !i.counting(Timers) {
		return i.Host.ScheduleTimer(d, fn)
	}
	w := i.w
	w.mu.Lock()
	defer w.mu.Unlock()
	var id ports.TimerID
	id = i.Host.ScheduleTimer(d, func() {
		w.mu.Lock()
		delete(w.timers, id)
		w.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	w.timers[id] = true
	return id
}

func (i *instrument) ScheduleRepeating(d time.Duration, fn func()) ports.TimerID {
	id := i.Host.ScheduleRepeating(d, fn)
	if i.counting(Timers) {
		i.w.mu.Lock()
		i.w.timers[id] = true
		i.w.mu.Unlock()
	}
	return id
}

func (i *instrument) CancelTimer(id ports.TimerID) bool {
	i.untrackTimer(id)
	return i.Host.CancelTimer(id)
}

func (i *instrument) CancelRepeating(id ports.TimerID) bool {
	i.untrackTimer(id)
	return i.Host.CancelRepeating(id)
}

func (i *instrument) untrackTimer(id ports.TimerID) {
	if i.off.Load() {
		return
	}
	i.w.mu.Lock()
	delete(i.w.timers, id)
	i.w.mu.Unlock()
}

func (i *instrument) RegisterEventHandler(target ports.EventTarget, eventType string, h ports.Handler) ports.ListenerID {
	id := i.Host.RegisterEventHandler(target, eventType, h)
	if i.counting(EventListeners) {
		i.w.mu.Lock()
		i.w.listeners[id] = true
		i.w.mu.Unlock()
	}
	return id
}

func (i *instrument) UnregisterEventHandler(id ports.ListenerID) bool {
	if !i.off.Load() {
		i.w.mu.Lock()
		delete(i.w.listeners, id)
		i.w.mu.Unlock()
	}
	return i.Host.UnregisterEventHandler(id)
}
