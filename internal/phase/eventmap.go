package phase

import (
	"hash/maphash"
	"sync"
	"sync/atomic"
)

// shardCount is the number of internal shards the event map splits across,
// following the "sharded concurrent map with internal shard locks" design
// note in §9 (the re-expression of a DashMap-style container). No shard's
// lock is ever held while acquiring another, and no external lock ever
// wraps the map (§5's shared-state policy).
const shardCount = 32

type eventShard struct {
	mu      sync.Mutex
	counter map[string]*atomic.Uint64
}

// eventMap is the concurrent, cardinality-capped event-name -> counter map
// described in §3 ("map<EventName, atomic counter> with cardinality cap")
// and §4.4's "Counter increment" algorithm.
type eventMap struct {
	shards      [shardCount]eventShard
	seed        maphash.Seed
	cardinality atomic.Int64
	cap         int64
}

func newEventMap(cap int64) *eventMap {
	m := &eventMap{seed: maphash.MakeSeed(), cap: cap}
	for i := range m.shards {
		m.shards[i].counter = make(map[string]*atomic.Uint64)
	}
	return m
}

func (m *eventMap) shardFor(name string) *eventShard {
	var h maphash.Hash
	h.SetSeed(m.seed)
	h.WriteString(name)
	return &m.shards[h.Sum64()%shardCount]
}

// Increment implements §4.4's counter increment. It always takes the
// name's shard lock first: an already-tracked counter is released from the
// lock and bumped with a saturating atomic add; an untracked name gets a
// fresh counter if the cardinality cap is not yet reached. Returns the new
// count, or 0 if the event was dropped for being over the cardinality cap.
func (m *eventMap) Increment(name string) uint64 {
	shard := m.shardFor(name)

	shard.mu.Lock()
	c, ok := shard.counter[name]
	if ok {
		shard.mu.Unlock()
		return saturatingAdd(c)
	}

	if m.cardinality.Load() >= m.cap {
		shard.mu.Unlock()
		return 0
	}

	c = &atomic.Uint64{}
	c.Store(1)
	shard.counter[name] = c
	shard.mu.Unlock()
	m.cardinality.Add(1)
	return 1
}

// Get returns the current count for name without incrementing it.
func (m *eventMap) Get(name string) uint64 {
	shard := m.shardFor(name)
	shard.mu.Lock()
	c, ok := shard.counter[name]
	shard.mu.Unlock()
	if !ok {
		return 0
	}
	return c.Load()
}

func saturatingAdd(c *atomic.Uint64) uint64 {
	for {
		old := c.Load()
		if old == ^uint64(0) {
			return old
		}
		if c.CompareAndSwap(old, old+1) {
			return old + 1
		}
	}
}
