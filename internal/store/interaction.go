package store

import (
	"time"

	"widget-lifecycle/internal/core/ports"
)

// InteractionPolicy is the preset used for per-widget interaction state.
var InteractionPolicy = GCPolicy{
	MaxEntries:    50,
	TTL:           5 * time.Minute,
	SweepInterval: time.Minute,
	Strategy:      PriorityEviction,
}

// InteractionKey namespaces a key by the widget that owns it.
type InteractionKey struct {
	Widget string
	Key    string
}

func (k InteractionKey) String() string { return k.Widget + "/" + k.Key }

// InteractionStore tracks short-lived interaction state of many widgets.
type InteractionStore[V any] struct {
	state *StateStore[InteractionKey, V]
}

// NewInteractionStore creates an InteractionStore with InteractionPolicy.
func NewInteractionStore[V any](h ports.Host, opts ...Option) *InteractionStore[V] {
	opts = append([]Option{WithName("interaction")}, opts...)
	return &InteractionStore[V]{state: NewStateStore[InteractionKey, V](h, InteractionPolicy, opts...)}
}

func interactionKey(widget, key string) InteractionKey {
	return InteractionKey{Widget: widget, Key: key}
}

func (s *InteractionStore[V]) Set(widget, key string, v V, p Priority) {
	s.state.Set(interactionKey(widget, key), v, p)
}

func (s *InteractionStore[V]) Get(widget, key string) (V, bool) {
	return s.state.Get(interactionKey(widget, key))
}

func (s *InteractionStore[V]) Delete(widget, key string) bool {
	return s.state.Delete(interactionKey(widget, key))
}

// ClearNamespace drops every key of one widget and returns how many were
// removed.
func (s *InteractionStore[V]) ClearNamespace(widget string) int {
	return s.state.DeleteFunc(func(k InteractionKey) bool { return k.Widget == widget })
}

func (s *InteractionStore[V]) Stats() Stats { return s.state.Stats() }

func (s *InteractionStore[V]) Clear() { s.state.Clear() }

func (s *InteractionStore[V]) Sweep() int { return s.state.Sweep() }

func (s *InteractionStore[V]) Close() error { return s.state.Close() }
