package store

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/store/policy"
)

// Strategy selects the capacity policy of a StateStore.
type Strategy int

const (
	LRU Strategy = iota
	PriorityEviction
	FIFO
)

func (s Strategy) String() string {
	switch s {
	case LRU:
		return "lru"
	case PriorityEviction:
		return "priority"
	case FIFO:
		return "fifo"
	}
	return "unknown"
}

// ParseStrategy maps a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "lru", "":
		return LRU, nil
	case "priority":
		return PriorityEviction, nil
	case "fifo":
		return FIFO, nil
	}
	return 0, errors.Errorf("unknown eviction strategy %q", s)
}

// GCPolicy bounds a StateStore. It is copied at construction.
type GCPolicy struct {
	MaxEntries    int
	TTL           time.Duration
	SweepInterval time.Duration
	Strategy      Strategy
}

func newPolicy[K comparable](s Strategy) policy.EvictionPolicy[K] {
	switch s {
	case PriorityEviction:
		return policy.NewPriority[K]()
	case FIFO:
		return policy.NewFIFO[K]()
	default:
		return policy.NewLRU[K]()
	}
}

// StateStore is the general keyed store: a TTL sweep runs before capacity
// eviction on every overflowing Set, and periodically on the host scheduler.
type StateStore[K comparable, V any] struct {
	*Store[K, V]
	gc GCPolicy
}

// NewStateStore creates a StateStore. A positive SweepInterval schedules a
// repeating sweep on h that runs until Close. It panics if MaxEntries or TTL
// is not positive.
func NewStateStore[K comparable, V any](h ports.Host, p GCPolicy, opts ...Option) *StateStore[K, V] {
	if p.TTL <= 0 {
		panic(fmt.Sprintf("store: ttl must be positive, got %s", p.TTL))
	}
	base := []Option{WithName("state")}
	if p.SweepInterval > 0 {
		base = append(base, WithSweep(h, p.SweepInterval))
	}
	return &StateStore[K, V]{
		Store: New[K, V](h, Config{
			Capacity:  p.MaxEntries,
			TTL:       p.TTL,
			Admission: InsertThenEvict,
		}, newPolicy[K](p.Strategy), append(base, opts...)...),
		gc: p,
	}
}

// Set stores value under key with the given priority tier.
func (s *StateStore[K, V]) Set(key K, value V, p Priority) {
	s.Store.SetWithPriority(key, value, p)
}

// Policy returns the limits the store was built with.
func (s *StateStore[K, V]) Policy() GCPolicy { return s.gc }
