package service

import (
	"math"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/host"
	"widget-lifecycle/internal/leak"
	"widget-lifecycle/internal/logging"
	"widget-lifecycle/internal/scope"
	"widget-lifecycle/internal/store"
)

// MemoryWarningPercent is the heap usage share above which Memory reports a
// warning.
const MemoryWarningPercent = 80

// Options configures a Lifecycle.
type Options struct {
	// Slot defaults to host.Global().
	Slot *host.Slot
	// Detector, when set, watches every scope created afterwards.
	Detector *leak.Detector
	// Sampler defaults to host.RuntimeHeapSampler.
	Sampler ports.HeapSampler
	Logger  logrus.FieldLogger
}

// ScopeInfo describes one live scope.
type ScopeInfo struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"createdAt"`
	PendingCleanups int       `json:"pendingCleanups"`
	ActiveTimers    int       `json:"activeTimers"`
	ActiveListeners int       `json:"activeListeners"`
	Stores          int       `json:"stores"`
	Activations     int       `json:"activations"`
}

// MemoryStats is a heap usage sample.
type MemoryStats struct {
	HeapUsed   uint64  `json:"heapUsed"`
	HeapLimit  uint64  `json:"heapLimit"`
	Percentage float64 `json:"percentage"`
	Warning    string  `json:"warning,omitempty"`
}

type scopeRecord struct {
	scope    *scope.Scope
	window   *leak.Window
	sweepers []ports.Sweeper
}

// Lifecycle is the application-facing entry point: it opens scopes and
// builds the stores and detectors owned by them.
type Lifecycle struct {
	slot     *host.Slot
	detector *leak.Detector
	sampler  ports.HeapSampler
	logger   logrus.FieldLogger

	mu     sync.Mutex
	scopes map[string]*scopeRecord
}

// New creates a Lifecycle.
func New(opts Options) *Lifecycle {
	if opts.Slot == nil {
		opts.Slot = host.Global()
	}
	if opts.Sampler == nil {
		opts.Sampler = host.RuntimeHeapSampler{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Lifecycle{
		slot:     opts.Slot,
		detector: opts.Detector,
		sampler:  opts.Sampler,
		logger:   opts.Logger,
		scopes:   make(map[string]*scopeRecord),
	}
}

// Slot returns the slot scopes register timers and listeners through.
func (l *Lifecycle) Slot() *host.Slot { return l.slot }

// Detector returns the detector watching new scopes, or nil.
func (l *Lifecycle) Detector() *leak.Detector { return l.detector }

// CreateScope opens a scope. With a detector configured, the scope is
// watched from now until its teardown, after every other cleanup has run.
func (l *Lifecycle) CreateScope(name string, opts ...scope.Option) *scope.Scope {
	opts = append([]scope.Option{
		scope.WithName(name),
		scope.WithLogger(l.logger),
		scope.OnTeardown(l.forget),
	}, opts...)
	s := scope.New(l.slot, opts...)

	rec := &scopeRecord{scope: s}
	if l.detector != nil {
		rec.window = l.detector.Watch(l.slot, s.ID())
		// first Finally action, so it runs after everything else
		s.Finally(rec.window.Close)
	}

	l.mu.Lock()
	l.scopes[s.ID()] = rec
	l.mu.Unlock()
	return s
}

func (l *Lifecycle) forget(s *scope.Scope) {
	l.mu.Lock()
	delete(l.scopes, s.ID())
	l.mu.Unlock()
}

func (l *Lifecycle) record(s *scope.Scope) *scopeRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scopes[s.ID()]
}

func (l *Lifecycle) own(s *scope.Scope, sw ports.Sweeper) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.scopes[s.ID()]; ok {
		rec.sweepers = append(rec.sweepers, sw)
	}
}

// Window returns the monitoring window of a live scope, if it has one.
func (l *Lifecycle) Window(s *scope.Scope) *leak.Window {
	if rec := l.record(s); rec != nil {
		return rec.window
	}
	return nil
}

// Activate records a re-activation of s with its monitoring window.
func (l *Lifecycle) Activate(s *scope.Scope) {
	if w := l.Window(s); w != nil {
		w.RecordActivation()
	}
}

// CreateManagedCache builds a cache owned by s. It is cleared when s is torn
// down.
func CreateManagedCache[K comparable, V any](l *Lifecycle, s *scope.Scope, capacity int, ttl time.Duration) *store.ManagedCache[K, V] {
	c := store.NewManagedCache[K, V](s.Slot().Base(), capacity, ttl, store.WithLogger(s.Logger()))
	s.Finally(scope.Func(c.Clear))
	l.own(s, c)
	return c
}

// CreateStateStore builds a state store owned by s. Its periodic sweep is
// scheduled on the undecorated host, so monitoring windows never count it,
// and stopped when s is torn down.
func CreateStateStore[K comparable, V any](l *Lifecycle, s *scope.Scope, p store.GCPolicy) *store.StateStore[K, V] {
	st := store.NewStateStore[K, V](s.Slot().Base(), p, store.WithLogger(s.Logger()))
	s.Finally(scope.Func(st.Clear))
	s.Finally(st.Close)
	l.own(s, st)
	return st
}

// CreateInteractionStore builds the interaction state preset owned by s.
func CreateInteractionStore[V any](l *Lifecycle, s *scope.Scope) *store.InteractionStore[V] {
	st := store.NewInteractionStore[V](s.Slot().Base(), store.WithLogger(s.Logger()))
	s.Finally(scope.Func(st.Clear))
	s.Finally(st.Close)
	l.own(s, st)
	return st
}

// CreateLeakDetector builds a standalone detector. Unset sampler and logger
// are taken from the Lifecycle.
func (l *Lifecycle) CreateLeakDetector(opts leak.Options) *leak.Detector {
	if opts.Sampler == nil {
		opts.Sampler = l.sampler
	}
	if opts.Logger == nil {
		opts.Logger = l.logger
	}
	return leak.New(opts)
}

// Scopes describes every live scope, oldest first.
func (l *Lifecycle) Scopes() []ScopeInfo {
	l.mu.Lock()
	recs := make([]*scopeRecord, 0, len(l.scopes))
	for _, r := range l.scopes {
		recs = append(recs, r)
	}
	l.mu.Unlock()

	out := make([]ScopeInfo, 0, len(recs))
	for _, r := range recs {
		s := r.scope
		info := ScopeInfo{
			ID:              s.ID(),
			Name:            s.Name(),
			CreatedAt:       s.CreatedAt(),
			PendingCleanups: s.Pending(),
			ActiveTimers:    s.Timers.ActiveTimers(),
			ActiveListeners: s.Events.ActiveListeners(),
			Stores:          len(r.sweepers),
		}
		if r.window != nil {
			info.Activations = r.window.Activations()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ForceSweep sweeps every store of every live scope, then runs a garbage
// collection. It returns the number of expired entries removed.
func (l *Lifecycle) ForceSweep() int {
	l.mu.Lock()
	var sweepers []ports.Sweeper
	for _, r := range l.scopes {
		sweepers = append(sweepers, r.sweepers...)
	}
	l.mu.Unlock()

	n := 0
	for _, sw := range sweepers {
		n += sw.Sweep()
	}
	runtime.GC()
	l.logger.WithField("removed", n).Info("forced sweep")
	return n
}

// Memory samples heap usage against the runtime's soft memory limit, or
// against memory obtained from the OS when no limit is set.
func (l *Lifecycle) Memory() (MemoryStats, error) {
	used, err := l.sampler.SampleHeap()
	if err != nil {
		return MemoryStats{}, err
	}
	limit := uint64(debug.SetMemoryLimit(-1))
	if limit == math.MaxInt64 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		limit = ms.Sys
	}
	st := MemoryStats{HeapUsed: used, HeapLimit: limit}
	if limit > 0 {
		st.Percentage = float64(used) / float64(limit) * 100
	}
	if st.Percentage > MemoryWarningPercent {
		st.Warning = "heap usage is high"
	}
	return st, nil
}

// Shutdown tears down every live scope.
func (l *Lifecycle) Shutdown() {
	l.mu.Lock()
	scopes := make([]*scope.Scope, 0, len(l.scopes))
	for _, r := range l.scopes {
		scopes = append(scopes, r.scope)
	}
	l.mu.Unlock()
	for _, s := range scopes {
		s.Teardown()
	}
}
