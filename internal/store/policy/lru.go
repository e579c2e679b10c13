package policy

import "container/list"

// LRUPolicy evicts the least recently read or written key.
type LRUPolicy[K comparable] struct {
	order *list.List // front is most recent
	items map[K]*list.Element
}

// NewLRU creates a new LRU policy instance.
func NewLRU[K comparable]() *LRUPolicy[K] {
	return &LRUPolicy[K]{
		order: list.New(),
		items: make(map[K]*list.Element),
	}
}

func (p *LRUPolicy[K]) OnAccess(key K) {
	if elem, ok := p.items[key]; ok {
		p.order.MoveToFront(elem)
	}
}

func (p *LRUPolicy[K]) OnAdd(key K, _ Priority) {
	if elem, ok := p.items[key]; ok {
		p.order.MoveToFront(elem)
		return
	}
	p.items[key] = p.order.PushFront(key)
}

func (p *LRUPolicy[K]) OnRemove(key K) {
	if elem, ok := p.items[key]; ok {
		p.order.Remove(elem)
		delete(p.items, key)
	}
}

func (p *LRUPolicy[K]) SelectVictim() (K, bool) {
	if elem := p.order.Back(); elem != nil {
		return elem.Value.(K), true
	}
	var zero K
	return zero, false
}

// Keys returns tracked keys from least to most recently used.
func (p *LRUPolicy[K]) Keys() []K {
	keys := make([]K, 0, len(p.items))
	for e := p.order.Back(); e != nil; e = e.Prev() {
		keys = append(keys, e.Value.(K))
	}
	return keys
}

func (p *LRUPolicy[K]) Len() int { return len(p.items) }
