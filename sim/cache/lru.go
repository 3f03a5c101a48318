// Package cache implements the byte-bounded LRU node cache of spec §3/§4.3:
// a mapping from (node-id, level) to byte size, plus a recency order,
// evicting least-recently-used entries until the cache fits its budget.
package cache

import "container/list"

// Key identifies a cached B+-tree node by id and tree level.
type Key struct {
	NodeID uint64
	Level  int
}

// LRU is a byte-bounded, recency-ordered cache. CurBytes never exceeds
// CapBytes after a Put returns (invariant 3, spec §8).
type LRU struct {
	CapBytes int64
	CurBytes int64

	order *list.List               // front = most recently used
	pos   map[Key]*list.Element    // key -> its node in order
	size  map[Key]int64            // key -> its byte size
}

// New creates an LRU cache with the given byte budget. A budget of 0
// means every Put evicts immediately and every subsequent Get misses.
func New(capBytes int64) *LRU {
	return &LRU{
		CapBytes: capBytes,
		order:    list.New(),
		pos:      make(map[Key]*list.Element),
		size:     make(map[Key]int64),
	}
}

// Get promotes k to most-recently-used and reports whether it was present.
func (c *LRU) Get(k Key) bool {
	el, ok := c.pos[k]
	if !ok {
		return false
	}
	c.order.MoveToFront(el)
	return true
}

// Put inserts or refreshes k. If k is already present, it is promoted to
// MRU without changing its recorded size (spec §4.3: "no size change").
// Otherwise it is inserted at MRU and bytes are evicted from the LRU end
// until CurBytes <= CapBytes.
func (c *LRU) Put(k Key, bytes int64) {
	if el, ok := c.pos[k]; ok {
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(k)
	c.pos[k] = el
	c.size[k] = bytes
	c.CurBytes += bytes

	for c.CurBytes > c.CapBytes && c.order.Len() > 0 {
		back := c.order.Back()
		evict := back.Value.(Key)
		c.order.Remove(back)
		c.CurBytes -= c.size[evict]
		delete(c.size, evict)
		delete(c.pos, evict)
	}
}

// Len reports the number of entries currently cached.
func (c *LRU) Len() int { return c.order.Len() }
