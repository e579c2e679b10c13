package policy

import "container/heap"

// priorityItem represents a key in the priority queue.
type priorityItem[K comparable] struct {
	key      K
	priority Priority
	accesses int
	touched  uint64 // logical recency, larger is more recent
	index    int    // The index of the item in the heap.
}

// priorityQueue is a min-heap ordered by (priority, accesses, recency).
type priorityQueue[K comparable] []*priorityItem[K]

func (pq priorityQueue[K]) Len() int { return len(pq) }

func (pq priorityQueue[K]) Less(i, j int) bool {
	a, b := pq[i], pq[j]
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	if a.accesses != b.accesses {
		return a.accesses < b.accesses
	}
	return a.touched < b.touched
}

func (pq priorityQueue[K]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[K]) Push(x interface{}) {
	item := x.(*priorityItem[K])
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue[K]) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// PriorityPolicy evicts the lowest tier first, then the least accessed, then
// the least recently touched key.
type PriorityPolicy[K comparable] struct {
	pq    priorityQueue[K]
	items map[K]*priorityItem[K]
	clock uint64
}

// NewPriority creates a new Priority policy instance.
func NewPriority[K comparable]() *PriorityPolicy[K] {
	return &PriorityPolicy[K]{items: make(map[K]*priorityItem[K])}
}

func (p *PriorityPolicy[K]) tick() uint64 {
	p.clock++
	return p.clock
}

func (p *PriorityPolicy[K]) OnAccess(key K) {
	if item, ok := p.items[key]; ok {
		item.accesses++
		item.touched = p.tick()
		heap.Fix(&p.pq, item.index)
	}
}

// OnAdd starts a fresh record for key. An overwrite resets the access count
// and takes the new tier.
func (p *PriorityPolicy[K]) OnAdd(key K, pr Priority) {
	if item, ok := p.items[key]; ok {
		item.priority = pr
		item.accesses = 0
		item.touched = p.tick()
		heap.Fix(&p.pq, item.index)
		return
	}
	item := &priorityItem[K]{key: key, priority: pr, touched: p.tick()}
	heap.Push(&p.pq, item)
	p.items[key] = item
}

func (p *PriorityPolicy[K]) OnRemove(key K) {
	if item, ok := p.items[key]; ok {
		heap.Remove(&p.pq, item.index)
		delete(p.items, key)
	}
}

func (p *PriorityPolicy[K]) SelectVictim() (K, bool) {
	if len(p.pq) == 0 {
		var zero K
		return zero, false
	}
	return p.pq[0].key, true
}

func (p *PriorityPolicy[K]) Len() int { return len(p.items) }
