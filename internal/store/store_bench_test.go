package store

import (
	"fmt"
	"testing"
	"time"

	"widget-lifecycle/internal/host"
)

func BenchmarkStateStore_Set(b *testing.B) {
	s := NewStateStore[string, string](host.NewManual(epoch), GCPolicy{MaxEntries: 1000, TTL: time.Minute, Strategy: PriorityEviction})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("key-%d", i)
		s.Set(key, "value", Priority(i%3))
	}
}

func BenchmarkManagedCache_Get(b *testing.B) {
	c := NewManagedCache[string, string](host.NewManual(epoch), 1000, time.Minute)
	// Pre-populate
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("key-%d", i), "value")
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.Get(fmt.Sprintf("key-%d", i%1000))
			i++
		}
	})
}
