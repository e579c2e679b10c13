package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func victim[K comparable](t *testing.T, p EvictionPolicy[K]) K {
	t.Helper()
	k, ok := p.SelectVictim()
	assert.True(t, ok)
	return k
}

func TestLRUPolicy(t *testing.T) {
	lru := NewLRU[string]()

	// Add A, B, C
	lru.OnAdd("A", Medium)
	lru.OnAdd("B", Medium)
	lru.OnAdd("C", Medium)

	// Order: A, C, B. Victim: B.
	lru.OnAccess("A")
	assert.Equal(t, "B", victim[string](t, lru))
	assert.Equal(t, []string{"B", "C", "A"}, lru.Keys())

	lru.OnRemove("B")
	assert.Equal(t, "C", victim[string](t, lru))
	assert.Equal(t, 2, lru.Len())
}

func TestFIFOPolicy(t *testing.T) {
	fifo := NewFIFO[string]()

	fifo.OnAdd("A", Low)
	fifo.OnAdd("B", Low)
	fifo.OnAdd("C", Low)

	// Neither reads nor overwrites let A escape eviction
	fifo.OnAccess("A")
	fifo.OnAdd("A", High)
	assert.Equal(t, "A", victim[string](t, fifo))

	fifo.OnRemove("A")
	assert.Equal(t, "B", victim[string](t, fifo))
}

func TestPriorityPolicy_TierFirst(t *testing.T) {
	p := NewPriority[string]()

	p.OnAdd("high", High)
	p.OnAdd("low", Low)
	p.OnAdd("medium", Medium)

	// Accesses do not lift an entry above a lower tier
	p.OnAccess("low")
	p.OnAccess("low")
	assert.Equal(t, "low", victim[string](t, p))

	p.OnRemove("low")
	assert.Equal(t, "medium", victim[string](t, p))
}

func TestPriorityPolicy_AccessesThenRecency(t *testing.T) {
	p := NewPriority[int]()

	p.OnAdd(1, Medium)
	p.OnAdd(2, Medium)
	p.OnAdd(3, Medium)

	p.OnAccess(1)
	p.OnAccess(2)
	// 3 has the fewest accesses
	assert.Equal(t, 3, victim[int](t, p))

	p.OnAccess(3)
	// all have one access, 1 was touched longest ago
	assert.Equal(t, 1, victim[int](t, p))
}

func TestPriorityPolicy_OverwriteResets(t *testing.T) {
	p := NewPriority[string]()
	p.OnAdd("a", High)
	p.OnAdd("b", Medium)

	p.OnAdd("a", Low)
	assert.Equal(t, "a", victim[string](t, p))
}

func TestPolicies_Empty(t *testing.T) {
	for name, p := range map[string]EvictionPolicy[string]{
		"fifo":     NewFIFO[string](),
		"lru":      NewLRU[string](),
		"priority": NewPriority[string](),
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := p.SelectVictim()
			assert.False(t, ok)
			p.OnRemove("missing")
			assert.Zero(t, p.Len())
		})
	}
}
