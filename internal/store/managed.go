package store

import (
	"fmt"
	"time"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/store/policy"
)

// ManagedCache is a small bounded cache: FIFO eviction on overflow and a
// sliding TTL checked on read.
type ManagedCache[K comparable, V any] struct {
	*Store[K, V]
}

// NewManagedCache creates a cache holding at most capacity entries, each
// expiring ttl after its last access. It panics unless both are positive.
func NewManagedCache[K comparable, V any](clock ports.Clock, capacity int, ttl time.Duration, opts ...Option) *ManagedCache[K, V] {
	if ttl <= 0 {
		panic(fmt.Sprintf("store: ttl must be positive, got %s", ttl))
	}
	opts = append([]Option{WithName("managed")}, opts...)
	return &ManagedCache[K, V]{Store: New[K, V](clock, Config{
		Capacity:  capacity,
		TTL:       ttl,
		Admission: EvictBeforeInsert,
	}, policy.NewFIFO[K](), opts...)}
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *ManagedCache[K, V]) Cleanup() int { return c.Sweep() }
