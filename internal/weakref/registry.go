// Package weakref keeps key to object associations that never keep the
// object alive.
package weakref

import (
	"runtime"
	"sync"
	"weak"

	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/logging"
)

type handle[T any] struct {
	ptr     weak.Pointer[T]
	gen     uint64
	cleanup runtime.Cleanup
}

type reclaimed[K comparable] struct {
	key K
	gen uint64
}

// Registry maps keys to weakly held objects. When an object is collected its
// entry is purged, either by the runtime's reclaim notification or on the
// next lookup. Keys must not reference the object they map to.
type Registry[K comparable, T any] struct {
	mu      sync.Mutex
	handles map[K]*handle[T]
	gen     uint64

	logger    logrus.FieldLogger
	onReclaim func(K)
}

// Option configures a Registry.
type Option[K comparable] func(*options[K])

type options[K comparable] struct {
	logger    logrus.FieldLogger
	onReclaim func(K)
}

// WithLogger sets the registry logger.
func WithLogger[K comparable](l logrus.FieldLogger) Option[K] {
	return func(o *options[K]) { o.logger = l }
}

// OnReclaim is called, from the runtime's cleanup goroutine, after the
// entry of a collected object has been purged.
func OnReclaim[K comparable](fn func(K)) Option[K] {
	return func(o *options[K]) { o.onReclaim = fn }
}

// New creates an empty Registry.
func New[K comparable, T any](opts ...Option[K]) *Registry[K, T] {
	o := options[K]{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	return &Registry[K, T]{
		handles:   make(map[K]*handle[T]),
		logger:    o.logger,
		onReclaim: o.onReclaim,
	}
}

// CreateWeakReference associates obj with key, replacing any previous
// association. A nil obj is ignored.
func (r *Registry[K, T]) CreateWeakReference(key K, obj *T) {
	if obj == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.handles[key]; ok {
		old.cleanup.Stop()
	}
	r.gen++
	h := &handle[T]{ptr: weak.Make(obj), gen: r.gen}
	h.cleanup = runtime.AddCleanup(obj, r.reclaim, reclaimed[K]{key: key, gen: h.gen})
	r.handles[key] = h
}

// Dereference returns the object for key if it is still alive. A key whose
// object has been collected is purged and reported as absent.
func (r *Registry[K, T]) Dereference(key K) (*T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[key]
	if !ok {
		return nil, false
	}
	if v := h.ptr.Value(); v != nil {
		return v, true
	}
	delete(r.handles, key)
	r.logger.WithField("key", key).Debug("purged stale weak reference")
	return nil, false
}

// Delete removes the association for key.
func (r *Registry[K, T]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	if !ok {
		return false
	}
	h.cleanup.Stop()
	delete(r.handles, key)
	return true
}

// Len returns the number of entries, including ones whose object has been
// collected but not yet purged.
func (r *Registry[K, T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Live purges every stale entry and returns the keys still alive.
func (r *Registry[K, T]) Live() []K {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]K, 0, len(r.handles))
	for k, h := range r.handles {
		if h.ptr.Value() == nil {
			delete(r.handles, k)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

// Clear drops every entry.
func (r *Registry[K, T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, h := range r.handles {
		h.cleanup.Stop()
		delete(r.handles, k)
	}
}

func (r *Registry[K, T]) reclaim(rc reclaimed[K]) {
	r.mu.Lock()
	h, ok := r.handles[rc.key]
	// a newer registration under the same key survives
	purged := ok && h.gen == rc.gen
	if purged {
		delete(r.handles, rc.key)
	}
	r.mu.Unlock()

	if purged && r.onReclaim != nil {
		r.onReclaim(rc.key)
	}
}
