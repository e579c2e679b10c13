package host

import (
	"container/heap"
	"sync"
	"time"

	"widget-lifecycle/internal/core/ports"
)

var _ ports.Host = (*Manual)(nil)

type manualTimer struct {
	id    ports.TimerID
	due   time.Time
	every time.Duration // 0 for one-shot timers
	fn    func()
	seq   uint64
	index int
}

// timerQueue orders timers by due time, then by scheduling order.
type timerQueue []*manualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due.Equal(q[j].due) {
		return q[i].seq < q[j].seq
	}
	return q[i].due.Before(q[j].due)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x interface{}) {
	t := x.(*manualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

// Manual is a Host driven by a virtual clock. Nothing fires until Advance is
// called, which makes every timer-dependent behaviour reproducible.
type Manual struct {
	*EventBus

	mu     sync.Mutex
	now    time.Time
	nextID ports.TimerID
	seq    uint64
	timers map[ports.TimerID]*manualTimer
	queue  timerQueue
}

// NewManual creates a Manual host whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{
		EventBus: NewEventBus(),
		now:      start,
		timers:   make(map[ports.TimerID]*manualTimer),
	}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) ScheduleTimer(d time.Duration, fn func()) ports.TimerID {
	return m.schedule(d, 0, fn)
}

func (m *Manual) ScheduleRepeating(d time.Duration, fn func()) ports.TimerID {
	if d <= 0 {
		panic("host: repeating interval must be positive")
	}
	return m.schedule(d, d, fn)
}

func (m *Manual) CancelTimer(id ports.TimerID) bool { return m.cancel(id) }

func (m *Manual) CancelRepeating(id ports.TimerID) bool { return m.cancel(id) }

func (m *Manual) schedule(d, every time.Duration, fn func()) ports.TimerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.nextID++
	m.seq++
	t := &manualTimer{id: m.nextID, due: m.now.Add(d), every: every, fn: fn, seq: m.seq}
	m.timers[t.id] = t
	heap.Push(&m.queue, t)
	return t.id
}

func (m *Manual) cancel(id ports.TimerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[id]
	if !ok {
		return false
	}
	delete(m.timers, id)
	if t.index >= 0 {
		heap.Remove(&m.queue, t.index)
	}
	return true
}

// Advance moves the clock forward by d, firing every timer that becomes due
// in order. Callbacks run synchronously on the caller's goroutine.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for len(m.queue) > 0 && !m.queue[0].due.After(target) {
		t := heap.Pop(&m.queue).(*manualTimer)
		m.now = t.due
		if t.every > 0 {
			m.seq++
			t.seq = m.seq
			t.due = t.due.Add(t.every)
			heap.Push(&m.queue, t)
		} else {
			delete(m.timers, t.id)
		}
		fn := t.fn
		m.mu.Unlock()
		if fn != nil {
			fn()
		}
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

// Pending returns the number of scheduled timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
