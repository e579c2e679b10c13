package policy

// Priority is the retention tier of an entry. Higher tiers survive longer
// under the Priority policy.
type Priority int

const (
	Low Priority = iota
	Medium
	High
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return "unknown"
}

// EvictionPolicy defines the interface for eviction algorithms.
// Implementations allow the store to decouple capacity management from storage logic.
// Policies carry no lock of their own; the owning store serialises calls.
type EvictionPolicy[K comparable] interface {
	// OnAccess is called when a key is read.
	OnAccess(key K)

	// OnAdd is called when a key is set, whether it is new or overwritten.
	OnAdd(key K, p Priority)

	// OnRemove is called when a key leaves the store for any reason.
	OnRemove(key K)

	// SelectVictim returns the key that should be evicted next.
	// ok is false when the policy tracks no keys.
	SelectVictim() (key K, ok bool)

	// Len returns the number of tracked keys.
	Len() int
}
