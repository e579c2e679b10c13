package policy

import "container/list"

// FIFOPolicy evicts the oldest inserted key. Reads and overwrites do not
// change the order.
type FIFOPolicy[K comparable] struct {
	order *list.List
	items map[K]*list.Element
}

// NewFIFO creates a new FIFO policy instance.
func NewFIFO[K comparable]() *FIFOPolicy[K] {
	return &FIFOPolicy[K]{
		order: list.New(),
		items: make(map[K]*list.Element),
	}
}

func (p *FIFOPolicy[K]) OnAccess(K) {}

func (p *FIFOPolicy[K]) OnAdd(key K, _ Priority) {
	if _, ok := p.items[key]; ok {
		return
	}
	p.items[key] = p.order.PushBack(key)
}

func (p *FIFOPolicy[K]) OnRemove(key K) {
	if elem, ok := p.items[key]; ok {
		p.order.Remove(elem)
		delete(p.items, key)
	}
}

func (p *FIFOPolicy[K]) SelectVictim() (K, bool) {
	if elem := p.order.Front(); elem != nil {
		return elem.Value.(K), true
	}
	var zero K
	return zero, false
}

func (p *FIFOPolicy[K]) Len() int { return len(p.items) }
