package store

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"widget-lifecycle/internal/core/ports"
	"widget-lifecycle/internal/logging"
	"widget-lifecycle/internal/observability"
	"widget-lifecycle/internal/store/policy"
)

// Priority is the retention tier of an entry.
type Priority = policy.Priority

const (
	Low    = policy.Low
	Medium = policy.Medium
	High   = policy.High
)

// DefaultEntrySize is the size recorded when a value cannot be estimated.
const DefaultEntrySize = 1024

// Admission decides when capacity is enforced relative to an insert.
type Admission int

const (
	// EvictBeforeInsert makes room for a new key before storing it.
	EvictBeforeInsert Admission = iota
	// InsertThenEvict stores the new key, then sweeps and evicts while over
	// capacity.
	InsertThenEvict
)

// Entry is a stored value together with its bookkeeping.
type Entry[V any] struct {
	Value       V
	CreatedAt   time.Time
	LastAccess  time.Time
	AccessCount int
	Size        int
	Priority    Priority
}

// Config holds the limits of a Store.
type Config struct {
	Capacity  int
	TTL       time.Duration // zero disables expiry
	Admission Admission
}

// SizeEstimator returns an approximate size in bytes of a stored value.
type SizeEstimator func(v any) (int, error)

// JSONSize estimates a value as twice its JSON encoding length.
func JSONSize(v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return 0, errors.Wrap(ports.ErrSerializationFailure, err.Error())
	}
	return len(b) * 2, nil
}

// Stats is a point-in-time summary of a Store.
type Stats struct {
	EntryCount         int            `json:"entryCount"`
	TotalEstimatedSize int            `json:"totalEstimatedSize"`
	PerPriority        map[string]int `json:"perPriority"`
	OldestAccess       time.Time      `json:"oldestAccess"`
	NewestAccess       time.Time      `json:"newestAccess"`
	Hits               uint64         `json:"hits"`
	Misses             uint64         `json:"misses"`
	Evictions          uint64         `json:"evictions"`
	Expirations        uint64         `json:"expirations"`
}

// Option configures a Store.
type Option func(*options)

type options struct {
	name   string
	logger logrus.FieldLogger
	sizeOf SizeEstimator
	sched  ports.Scheduler
	every  time.Duration
}

// WithName labels the store in metrics and logs.
func WithName(name string) Option { return func(o *options) { o.name = name } }

// WithLogger sets the store logger.
func WithLogger(l logrus.FieldLogger) Option { return func(o *options) { o.logger = l } }

// WithSizeEstimator replaces the JSON based size estimate.
func WithSizeEstimator(fn SizeEstimator) Option { return func(o *options) { o.sizeOf = fn } }

// WithSweep runs Sweep every interval on sched until Close.
func WithSweep(sched ports.Scheduler, interval time.Duration) Option {
	return func(o *options) {
		o.sched = sched
		o.every = interval
	}
}

var (
	_ ports.Storage[string, any] = (*Store[string, any])(nil)
	_ ports.Sweeper              = (*Store[string, any])(nil)
)

// Store is a bounded keyed store with sliding TTL and pluggable eviction.
type Store[K comparable, V any] struct {
	mu     sync.Mutex
	items  map[K]*Entry[V]
	policy policy.EvictionPolicy[K]
	clock  ports.Clock
	cfg    Config

	name   string
	logger logrus.FieldLogger
	sizeOf SizeEstimator

	sched   ports.Scheduler
	sweepID ports.TimerID
	closed  bool

	hits, misses, evictions, expirations uint64
}

// New creates a Store. It panics if cfg.Capacity is not positive or cfg.TTL
// is negative.
func New[K comparable, V any](clock ports.Clock, cfg Config, p policy.EvictionPolicy[K], opts ...Option) *Store[K, V] {
	if cfg.Capacity <= 0 {
		panic(fmt.Sprintf("store: capacity must be positive, got %d", cfg.Capacity))
	}
	if cfg.TTL < 0 {
		panic(fmt.Sprintf("store: ttl must not be negative, got %s", cfg.TTL))
	}
	o := options{name: "store", sizeOf: JSONSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Discard()
	}
	s := &Store[K, V]{
		items:  make(map[K]*Entry[V]),
		policy: p,
		clock:  clock,
		cfg:    cfg,
		name:   o.name,
		logger: o.logger.WithField("store", o.name),
		sizeOf: o.sizeOf,
	}
	if o.sched != nil && o.every > 0 {
		s.sched = o.sched
		s.sweepID = o.sched.ScheduleRepeating(o.every, func() { s.Sweep() })
	}
	return s
}

// Name returns the store label.
func (s *Store[K, V]) Name() string { return s.name }

// Config returns the limits the store was built with.
func (s *Store[K, V]) Config() Config { return s.cfg }

func (s *Store[K, V]) expired(e *Entry[V], now time.Time) bool {
	return s.cfg.TTL > 0 && now.Sub(e.LastAccess) > s.cfg.TTL
}

// Get returns the value for key if it is present and unexpired. A hit
// refreshes the entry's recency and access count; an expired entry is
// removed and reported as a miss.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	e, found := s.items[key]
	if !found {
		s.misses++
		observability.CacheOperationsTotal.WithLabelValues(s.name, "get", "miss").Inc()
		return zero, false
	}
	now := s.clock.Now()
	if s.expired(e, now) {
		s.removeLocked(key, "expired")
		s.misses++
		observability.CacheOperationsTotal.WithLabelValues(s.name, "get", "miss").Inc()
		return zero, false
	}
	e.LastAccess = now
	e.AccessCount++
	s.policy.OnAccess(key)
	s.hits++
	observability.CacheOperationsTotal.WithLabelValues(s.name, "get", "hit").Inc()
	return e.Value, true
}

// Peek returns the entry for key without refreshing it.
func (s *Store[K, V]) Peek(key K) (Entry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok || s.expired(e, s.clock.Now()) {
		return Entry[V]{}, false
	}
	return *e, true
}

// Set stores value under key at Medium priority.
func (s *Store[K, V]) Set(key K, value V) {
	s.SetWithPriority(key, value, Medium)
}

// SetWithPriority stores value under key with the given tier and enforces
// capacity according to the store's admission order. Overwriting a key keeps
// its creation time and resets its access count, whatever the strategy.
func (s *Store[K, V]) SetWithPriority(key K, value V, p Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.items[key]
	if !exists && s.cfg.Admission == EvictBeforeInsert {
		for len(s.items) >= s.cfg.Capacity {
			if !s.evictOneLocked() {
				break
			}
		}
	}

	now := s.clock.Now()
	created := now
	if exists {
		// an overwrite keeps the creation time and starts a fresh access count
		created = old.CreatedAt
	}
	s.items[key] = &Entry[V]{
		Value:      value,
		CreatedAt:  created,
		LastAccess: now,
		Size:       s.estimate(key, value),
		Priority:   p,
	}
	s.policy.OnAdd(key, p)
	observability.CacheOperationsTotal.WithLabelValues(s.name, "set", "ok").Inc()

	if s.cfg.Admission == InsertThenEvict && len(s.items) > s.cfg.Capacity {
		s.sweepLocked(now)
		for len(s.items) > s.cfg.Capacity {
			if !s.evictOneLocked() {
				break
			}
		}
	}
}

func (s *Store[K, V]) estimate(key K, value V) int {
	n, err := s.sizeOf(value)
	if err != nil {
		if !ports.IsKind(err, ports.ErrSerializationFailure) {
			err = errors.WithMessage(ports.ErrSerializationFailure, err.Error())
		}
		s.logger.WithError(err).WithField("key", key).Debug("using default entry size")
		return DefaultEntrySize
	}
	return n
}

func (s *Store[K, V]) evictOneLocked() bool {
	victim, ok := s.policy.SelectVictim()
	if !ok {
		return false
	}
	if _, present := s.items[victim]; !present {
		// keep the policy consistent with the map
		s.policy.OnRemove(victim)
		return true
	}
	s.removeLocked(victim, "capacity")
	return true
}

func (s *Store[K, V]) removeLocked(key K, reason string) {
	delete(s.items, key)
	s.policy.OnRemove(key)
	switch reason {
	case "expired":
		s.expirations++
	case "capacity":
		s.evictions++
	}
	if reason != "" {
		observability.CacheEvictionsTotal.WithLabelValues(s.name, reason).Inc()
		s.logger.WithFields(logrus.Fields{"key": key, "reason": reason}).Debug("entry removed")
	}
}

// Delete removes key and reports whether it was present.
func (s *Store[K, V]) Delete(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[key]; !ok {
		return false
	}
	s.removeLocked(key, "")
	observability.CacheOperationsTotal.WithLabelValues(s.name, "delete", "ok").Inc()
	return true
}

// DeleteFunc removes every key for which match returns true and returns the
// number removed.
func (s *Store[K, V]) DeleteFunc(match func(K) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.items {
		if match(k) {
			s.removeLocked(k, "")
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (s *Store[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.items {
		s.removeLocked(k, "")
	}
}

// Len returns the number of stored entries, expired or not.
func (s *Store[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep removes every expired entry and returns how many were removed.
func (s *Store[K, V]) Sweep() int {
	start := time.Now()
	s.mu.Lock()
	n := s.sweepLocked(s.clock.Now())
	s.mu.Unlock()
	observability.SweepsTotal.WithLabelValues(s.name).Inc()
	observability.SweepDurationSeconds.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	return n
}

func (s *Store[K, V]) sweepLocked(now time.Time) int {
	if s.cfg.TTL <= 0 {
		return 0
	}
	n := 0
	for k, e := range s.items {
		if s.expired(e, now) {
			s.removeLocked(k, "expired")
			n++
		}
	}
	return n
}

// Stats summarises the current contents.
func (s *Store[K, V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		EntryCount:  len(s.items),
		PerPriority: map[string]int{Low.String(): 0, Medium.String(): 0, High.String(): 0},
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
	for _, e := range s.items {
		st.TotalEstimatedSize += e.Size
		st.PerPriority[e.Priority.String()]++
		if st.OldestAccess.IsZero() || e.LastAccess.Before(st.OldestAccess) {
			st.OldestAccess = e.LastAccess
		}
		if e.LastAccess.After(st.NewestAccess) {
			st.NewestAccess = e.LastAccess
		}
	}
	return st
}

// EntryInfo is the metadata of one entry as written by Snapshot.
type EntryInfo struct {
	Key         string    `json:"key"`
	Priority    string    `json:"priority"`
	Size        int       `json:"size"`
	AccessCount int       `json:"accessCount"`
	CreatedAt   time.Time `json:"createdAt"`
	LastAccess  time.Time `json:"lastAccess"`
}

// Snapshot writes entry metadata, without values, to w as JSON ordered by
// last access.
func (s *Store[K, V]) Snapshot(w io.Writer) error {
	s.mu.Lock()
	infos := make([]EntryInfo, 0, len(s.items))
	for k, e := range s.items {
		infos = append(infos, EntryInfo{
			Key:         fmt.Sprint(k),
			Priority:    e.Priority.String(),
			Size:        e.Size,
			AccessCount: e.AccessCount,
			CreatedAt:   e.CreatedAt,
			LastAccess:  e.LastAccess,
		})
	}
	s.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].LastAccess.Equal(infos[j].LastAccess) {
			return infos[i].LastAccess.Before(infos[j].LastAccess)
		}
		return infos[i].Key < infos[j].Key
	})
	return json.NewEncoder(w).Encode(infos)
}

// Close stops the periodic sweep. The contents stay readable.
func (s *Store[K, V]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	if s.sched != nil {
		s.sched.CancelRepeating(s.sweepID)
	}
	return nil
}
