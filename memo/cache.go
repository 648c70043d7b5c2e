// Package memo implements the sharded, content-addressed memoization
// cache: 64 independent shards, each with its own lock and hash map,
// LRU-ish access metadata, and per-shard hit/miss counters.
//
// The shard-per-lock layout is grounded on catrate.Limiter's per-category
// sync.Map + mutex design (joeycumines/go-utilpkg/catrate), adapted from
// "one mutex per rate-limit category" to "one mutex per memo-key shard".
package memo

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/janus-lang/janus-sub015/depgraph"
	"github.com/janus-lang/janus-sub015/id"
)

// ShardCount is the fixed number of independent shards.
const ShardCount = 64

// Entry is a single cached memo-cache record: the cached result paired
// with the dependency set that produced it, plus access bookkeeping.
type Entry struct {
	Result       any // a codec.Result in practice; memo does not import codec and stores any value
	Dependencies depgraph.DependencySet

	accessCount  atomic.Uint64
	lastAccessNs atomic.Int64
}

// AccessCount returns the number of times this entry has been read via Get.
func (e *Entry) AccessCount() uint64 { return e.accessCount.Load() }

// LastAccess returns the nanosecond timestamp of the entry's most recent
// Get hit (or its creation time, if never hit).
func (e *Entry) LastAccess() int64 { return e.lastAccessNs.Load() }

type shard struct {
	mu      sync.RWMutex
	entries map[id.MemoKey]*Entry
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// Cache is the 64-shard memoization store.
type Cache struct {
	shards [ShardCount]shard
	nowFn  func() time.Time // overridable for tests
}

// New constructs an empty Cache.
func New() *Cache {
	c := &Cache{nowFn: time.Now}
	for i := range c.shards {
		c.shards[i].entries = make(map[id.MemoKey]*Entry)
	}
	return c
}

func (c *Cache) shardFor(k id.MemoKey) *shard {
	return &c.shards[k.Shard(ShardCount)]
}

// Get looks up k. On a hit it updates the entry's access counter and
// timestamp and returns (entry, true); on a miss it returns (nil, false).
// Lookups never block across shards; within a shard, Get serializes with
// concurrent Put/Remove on the same shard.
func (c *Cache) Get(k id.MemoKey) (*Entry, bool) {
	s := c.shardFor(k)
	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()
	if !ok {
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	e.accessCount.Add(1)
	e.lastAccessNs.Store(c.nowFn().UnixNano())
	return e, true
}

// Put stores result/deps under k, constructing a fresh Entry. A Put always
// replaces any prior entry for k outright (no merge); an entry is never
// resurrected after Remove without an explicit subsequent Put.
func (c *Cache) Put(k id.MemoKey, result any, deps depgraph.DependencySet) *Entry {
	e := &Entry{Result: result, Dependencies: deps}
	e.lastAccessNs.Store(c.nowFn().UnixNano())
	s := c.shardFor(k)
	s.mu.Lock()
	s.entries[k] = e
	s.mu.Unlock()
	return e
}

// Remove deletes the entry for k, if any, and reports whether it existed.
func (c *Cache) Remove(k id.MemoKey) bool {
	s := c.shardFor(k)
	s.mu.Lock()
	_, existed := s.entries[k]
	delete(s.entries, k)
	s.mu.Unlock()
	return existed
}

// ClearShard removes every entry from the shard that k maps to.
func (c *Cache) ClearShard(k id.MemoKey) {
	s := c.shardFor(k)
	s.mu.Lock()
	s.entries = make(map[id.MemoKey]*Entry)
	s.mu.Unlock()
}

// ClearAll removes every entry from every shard.
func (c *Cache) ClearAll() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[id.MemoKey]*Entry)
		s.mu.Unlock()
	}
}

// Len returns the total number of cached entries across all shards.
func (c *Cache) Len() int {
	total := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Stats aggregates hit/miss counters across every shard.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// Stats scans all shards and returns the aggregate hit/miss counts.
func (c *Cache) Stats() Stats {
	var s Stats
	for i := range c.shards {
		s.Hits += c.shards[i].hits.Load()
		s.Misses += c.shards[i].misses.Load()
	}
	return s
}
