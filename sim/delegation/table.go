// Package delegation implements the RDMA delegation/write-combining table
// (RDWC) of spec §3/§4.6: the first operation on a key within a window
// becomes the delegate and performs the real RDMA work, while concurrent
// operations on the same key either join as waiters (GET) or combine their
// write into the delegate's pending batch (PUT).
package delegation

import "github.com/rmemtree/rmemtree-sim/sim"

const numShards = 64

// State is the lifecycle of one delegation entry.
type State int

const (
	Active State = iota
	Completed
	Failed
)

// CollisionPolicy controls behavior when two distinct keys hash to the
// same shard-local key-hash.
type CollisionPolicy int

const (
	// Queue joins the existing delegation anyway (conservative).
	Queue CollisionPolicy = iota
	// Bypass makes the caller its own delegate rather than sharing.
	Bypass
)

// Waiter is a pending GET callback notified when its delegation completes.
type Waiter struct {
	OpID     uint64
	Callback func(success bool, result any)
}

// Entry tracks one in-flight delegation for a given key hash.
type Entry struct {
	UniqueKey     uint64
	State         State
	Waiters       []Waiter
	PendingWrites []func()
	StartTime     sim.SimTime
	Result        any
}

// Config mirrors the ablatable RDWC knobs of spec §6.
type Config struct {
	Enable          bool
	WindowUS        sim.SimTime
	CollisionPolicy CollisionPolicy
}

// Stats are delegation-table counters surfaced through metrics.
type Stats struct {
	DelegationsCreated uint64
	DelegationHits     uint64
	DelegationBypasses uint64
	WriteCombines      uint64
}

// Table is a sharded map from key-hash to in-flight delegation entry.
type Table struct {
	Config Config
	Stats  Stats
	shards [numShards]map[uint64]*Entry
}

// New creates a delegation table with the given config.
func New(cfg Config) *Table {
	t := &Table{Config: cfg}
	for i := range t.shards {
		t.shards[i] = make(map[uint64]*Entry)
	}
	return t
}

func shardFor(keyHash uint64) uint64 { return keyHash % numShards }

// HashKey applies an FNV-1a-style avalanche mix to key, standing in for
// std::hash<uint64_t> in the reference implementation. Callers that need
// to invoke CompleteDelegation must hash the key themselves with this
// function, matching what TryDelegateGet/TryDelegatePut used internally.
func HashKey(key uint64) uint64 {
	return hashKey(key)
}

func hashKey(key uint64) uint64 {
	h := uint64(14695981039346656037)
	for i := 0; i < 8; i++ {
		h ^= (key >> (uint(i) * 8)) & 0xff
		h *= 1099511628211
	}
	return h
}

// TryDelegateGet attempts to join or start a delegation for key's GET.
// If isDelegate is true, the caller must perform the RDMA read itself and
// eventually call CompleteDelegation. If false, callback will be invoked
// by the delegate (immediately, if already completed; otherwise later).
func (t *Table) TryDelegateGet(now sim.SimTime, key uint64, opID uint64, callback func(success bool, result any)) (isDelegate bool, entry *Entry) {
	if !t.Config.Enable {
		return true, nil
	}

	keyHash := hashKey(key)
	shard := t.shards[shardFor(keyHash)]

	e, ok := shard[keyHash]
	if !ok {
		e = &Entry{UniqueKey: key, StartTime: now}
		shard[keyHash] = e
		t.Stats.DelegationsCreated++
		return true, e
	}

	if e.UniqueKey != key && t.Config.CollisionPolicy == Bypass {
		t.Stats.DelegationBypasses++
		return true, nil
	}

	if now-e.StartTime > t.Config.WindowUS {
		e = &Entry{UniqueKey: key, StartTime: now}
		shard[keyHash] = e
		t.Stats.DelegationsCreated++
		return true, e
	}

	if e.State == Completed {
		callback(true, e.Result)
		t.Stats.DelegationHits++
		return false, e
	}

	e.Waiters = append(e.Waiters, Waiter{OpID: opID, Callback: callback})
	t.Stats.DelegationHits++
	return false, e
}

// TryDelegatePut attempts to join or start a write-combining delegation
// for key's PUT. If isDelegate is true, the caller must perform the RDMA
// write for the whole batch of combined writeOp closures and then call
// CompleteDelegation.
func (t *Table) TryDelegatePut(now sim.SimTime, key uint64, writeOp func()) (isDelegate bool, entry *Entry) {
	if !t.Config.Enable {
		return true, nil
	}

	keyHash := hashKey(key)
	shard := t.shards[shardFor(keyHash)]

	e, ok := shard[keyHash]
	if !ok {
		e = &Entry{UniqueKey: key, StartTime: now, PendingWrites: []func(){writeOp}}
		shard[keyHash] = e
		t.Stats.DelegationsCreated++
		return true, e
	}

	if e.UniqueKey != key && t.Config.CollisionPolicy == Bypass {
		t.Stats.DelegationBypasses++
		return true, nil
	}

	if now-e.StartTime > t.Config.WindowUS {
		e = &Entry{UniqueKey: key, StartTime: now, PendingWrites: []func(){writeOp}}
		shard[keyHash] = e
		t.Stats.DelegationsCreated++
		return true, e
	}

	e.PendingWrites = append(e.PendingWrites, writeOp)
	t.Stats.WriteCombines++
	return false, e
}

// CompleteDelegation finalizes the delegation for keyHash, notifying all
// waiters with the outcome and clearing them. A no-op if no delegation is
// active for keyHash.
func (t *Table) CompleteDelegation(keyHash uint64, success bool, result any) {
	shard := t.shards[shardFor(keyHash)]
	e, ok := shard[keyHash]
	if !ok {
		return
	}
	delete(shard, keyHash)

	if success {
		e.State = Completed
	} else {
		e.State = Failed
	}
	e.Result = result

	for _, w := range e.Waiters {
		w.Callback(success, result)
	}
	e.Waiters = nil
}

// CleanupExpired fails and removes every entry older than twice the
// configured window, as of now.
func (t *Table) CleanupExpired(now sim.SimTime) {
	for _, shard := range t.shards {
		for keyHash, e := range shard {
			if now-e.StartTime > 2*t.Config.WindowUS {
				delete(shard, keyHash)
				e.State = Failed
				for _, w := range e.Waiters {
					w.Callback(false, "expired")
				}
				e.Waiters = nil
			}
		}
	}
}
