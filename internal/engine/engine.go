// Package engine implements the sharded Robin-Hood cache core: store,
// load, delete, iterate, sweep, clear, and the re-entrant batch/transaction
// mechanism, all operating over internal/shard and internal/entry.
package engine

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/polypointlabs/pogocache-go/internal/entry"
	"github.com/polypointlabs/pogocache-go/internal/hash"
	"github.com/polypointlabs/pogocache-go/internal/shard"
)

// Cache is the root sharded cache engine. It is safe for concurrent use
// from multiple goroutines.
type Cache struct {
	cfg    Config
	shards []*shard.Shard
}

// session abstracts over "acquire a shard directly" (root Cache) and
// "acquire a shard as part of a batch" (Batch), so every operation below
// is written once and works under both.
type session interface {
	cache() *Cache
	forKey(key []byte) (sh *shard.Shard, idx int, h uint64)
	endKey(sh *shard.Shard)
	forScan(idx int) *shard.Shard
	endScan(sh *shard.Shard)
}

func now() int64 { return time.Now().UnixNano() }

// New builds a cache with the given configuration.
func New(cfg Config) *Cache {
	cfg.normalize()
	c := &Cache{cfg: cfg, shards: make([]*shard.Shard, cfg.NShards)}
	for i := range c.shards {
		c.shards[i] = shard.New(initialCapacity, cfg.loadFactor(), cfg.shrinkFactor(), cfg.AllowShrink)
	}
	return c
}

// NShards returns the number of shards in the cache.
func (c *Cache) NShards() int { return len(c.shards) }

func (c *Cache) entryOptions() entry.Options {
	return entry.Options{UseCAS: c.cfg.UseCAS, NoSixpack: c.cfg.NoSixpack}
}

func (c *Cache) yield() {
	if c.cfg.Yield != nil {
		c.cfg.Yield()
	} else {
		runtime.Gosched()
	}
}

// --- root Cache as a session ---

func (c *Cache) cache() *Cache { return c }

func (c *Cache) forKey(key []byte) (*shard.Shard, int, uint64) {
	h := hash.TH64(key, c.cfg.Seed)
	idx := hash.ShardIndex(h, len(c.shards))
	sh := c.shards[idx]
	sh.LockExclusive(c.yield)
	return sh, idx, h
}

func (c *Cache) endKey(sh *shard.Shard) { sh.UnlockExclusive() }

func (c *Cache) forScan(idx int) *shard.Shard {
	sh := c.shards[idx]
	sh.LockExclusive(c.yield)
	return sh
}

func (c *Cache) endScan(sh *shard.Shard) { sh.UnlockExclusive() }

// Batch groups several key operations into a re-entrant, multi-shard
// critical section. Shards are locked lazily as operations touch them, but
// always in ascending shard-index order: touched/touchedIdx are kept
// sorted by index, and acquiring a lower index than the batch currently
// holds releases the higher ones first and relocks them afterward. Every
// batch in the process acquires shards along that same total order, so the
// wait-for graph across concurrent batches can never form a cycle.
type Batch struct {
	root       *Cache
	token      uintptr
	touched    []*shard.Shard
	touchedIdx []int
}

// Begin starts a batch against c. Shards are locked lazily as operations
// touch them and released by End.
func (c *Cache) Begin() *Batch {
	b := &Batch{root: c}
	b.token = uintptr(unsafe.Pointer(b))
	return b
}

// End releases every shard the batch acquired, in ascending index order.
func (b *Batch) End() {
	for _, sh := range b.touched {
		sh.UnlockBatch()
	}
	b.touched = nil
	b.touchedIdx = nil
}

func (b *Batch) cache() *Cache { return b.root }

// acquire locks shard idx for the batch, maintaining ascending-index lock
// order across the whole touched set.
func (b *Batch) acquire(idx int) *shard.Shard {
	sh := b.root.shards[idx]
	for _, i := range b.touchedIdx {
		if i == idx {
			return sh
		}
	}

	// Release every already-held shard with a higher index so this
	// acquisition, and their re-acquisition, both happen in ascending
	// order.
	var pending []int
	for len(b.touchedIdx) > 0 && b.touchedIdx[len(b.touchedIdx)-1] > idx {
		n := len(b.touchedIdx) - 1
		b.touched[n].UnlockBatch()
		pending = append(pending, b.touchedIdx[n])
		b.touched = b.touched[:n]
		b.touchedIdx = b.touchedIdx[:n]
	}

	sh.LockBatch(b.token, b.root.yield)
	b.touched = append(b.touched, sh)
	b.touchedIdx = append(b.touchedIdx, idx)

	for i := len(pending) - 1; i >= 0; i-- {
		ri := pending[i]
		rsh := b.root.shards[ri]
		rsh.LockBatch(b.token, b.root.yield)
		b.touched = append(b.touched, rsh)
		b.touchedIdx = append(b.touchedIdx, ri)
	}
	return sh
}

func (b *Batch) forKey(key []byte) (*shard.Shard, int, uint64) {
	h := hash.TH64(key, b.root.cfg.Seed)
	idx := hash.ShardIndex(h, len(b.root.shards))
	return b.acquire(idx), idx, h
}

func (b *Batch) endKey(sh *shard.Shard) {}

func (b *Batch) forScan(idx int) *shard.Shard {
	return b.acquire(idx)
}

func (b *Batch) endScan(sh *shard.Shard) {}

// resolveTime returns t if set, else the current time.
func resolveTime(t int64) int64 {
	if t > 0 {
		return t
	}
	return now()
}

func clampAdd(a, b int64) int64 {
	if b == 0 {
		return a
	}
	s := a + b
	// overflow only possible when a and b share a sign.
	if (a >= 0) == (b >= 0) && (s >= 0) != (a >= 0) {
		if a > 0 {
			return 1<<63 - 1
		}
		return -1 << 63
	}
	return s
}

func notifyEvicted(c *Cache, shardIdx int, reason Reason, now int64, e []byte) {
	if c.cfg.Evicted == nil {
		return
	}
	key := entry.Key(e)
	val := entry.Value(e)
	c.cfg.Evicted(shardIdx, reason, now, key, val, entry.Expires(e), entry.Flags(e), entry.CAS(e))
}

func aliveReason(e []byte, now, clearTime int64) Reason {
	switch entry.Alive(e, now, clearTime) {
	case entry.ReasonCleared:
		return ReasonCleared
	case entry.ReasonExpired:
		return ReasonExpired
	default:
		return 0
	}
}
