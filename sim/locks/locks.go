// Package locks implements the hierarchical lock tables of spec §3/§4.4:
// a fixed-size global lock table (GLT) addressed by a hashed slot, and a
// per-leaf local lock table (LLT) that enforces FIFO handoff before a
// thread is allowed to contend for its GLT slot.
package locks

// GLT is the global lock table: a fixed array of owner slots. An owner of
// -1 means the slot is free; any other value is a thread-id.
type GLT struct {
	Slots int
	owner []int
}

// NewGLT creates a GLT with n slots, all initially free.
func NewGLT(n int) *GLT {
	owner := make([]int, n)
	for i := range owner {
		owner[i] = -1
	}
	return &GLT{Slots: n, owner: owner}
}

// Free reports whether slot is currently unowned.
func (g *GLT) Free(slot int) bool {
	return g.owner[slot] == -1
}

// Acquire unconditionally assigns slot to tid (used both for a successful
// CAS and for the forced-acquire progress guarantee after cas_max_retries).
func (g *GLT) Acquire(slot, tid int) {
	g.owner[slot] = tid
}

// Release clears slot if it is currently owned by tid.
func (g *GLT) Release(slot, tid int) {
	if g.owner[slot] == tid {
		g.owner[slot] = -1
	}
}

// ReleaseAny unconditionally clears slot, regardless of current owner.
// The Sherman client's release path always uses it, whether or not the
// recorded owner still matches the releasing thread.
func (g *GLT) ReleaseAny(slot int) {
	g.owner[slot] = -1
}

// LLT is the local lock table: a per-leaf FIFO of waiting thread-ids. Only
// the head of the queue is allowed to attempt GLT acquisition.
type LLT struct {
	waiters map[uint64][]int
}

// NewLLT creates an empty local lock table.
func NewLLT() *LLT {
	return &LLT{waiters: make(map[uint64][]int)}
}

// EnqueueAndPos enqueues tid for leaf if not already present and returns
// its zero-based position in the FIFO.
func (l *LLT) EnqueueAndPos(leaf uint64, tid int) int {
	q := l.waiters[leaf]
	for i, t := range q {
		if t == tid {
			return i
		}
	}
	l.waiters[leaf] = append(q, tid)
	return len(q)
}

// AtHead reports whether tid is at the front of leaf's FIFO.
func (l *LLT) AtHead(leaf uint64, tid int) bool {
	q := l.waiters[leaf]
	return len(q) > 0 && q[0] == tid
}

// Release removes tid from leaf's FIFO — from the head if it owns the
// head position, otherwise via a best-effort scan (mirrors the original's
// defensive cleanup path, which should not be exercised in correct usage).
func (l *LLT) Release(leaf uint64, tid int) {
	q := l.waiters[leaf]
	if len(q) > 0 && q[0] == tid {
		l.waiters[leaf] = q[1:]
		return
	}
	for i, t := range q {
		if t == tid {
			l.waiters[leaf] = append(q[:i], q[i+1:]...)
			return
		}
	}
}
