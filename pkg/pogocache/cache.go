package pogocache

import (
	"go.uber.org/zap"

	"github.com/polypointlabs/pogocache-go/internal/engine"
)

// Re-export the engine's status/reason/action vocabulary so callers never
// need to import internal/engine directly.
type (
	Status       = engine.Status
	Reason       = engine.Reason
	IterAction   = engine.IterAction
	StoreOptions = engine.StoreOptions
	LoadOptions  = engine.LoadOptions
	DeleteOptions = engine.DeleteOptions
	IterOptions  = engine.IterOptions
	ScanOptions  = engine.ScanOptions
	SizeOptions  = engine.SizeOptions
	SweepPollOptions = engine.SweepPollOptions
	LoadResult   = engine.LoadResult
	Update       = engine.Update
)

const (
	Inserted = engine.Inserted
	Replaced = engine.Replaced
	Found    = engine.Found
	NotFound = engine.NotFound
	Deleted  = engine.Deleted
	Finished = engine.Finished
	Canceled = engine.Canceled
	NoMem    = engine.NoMem

	IterContinue = engine.IterContinue
	IterStop     = engine.IterStop
	IterDelete   = engine.IterDelete

	ReasonExpired = engine.ReasonExpired
	ReasonLowMem  = engine.ReasonLowMem
	ReasonCleared = engine.ReasonCleared
)

// Cache is a sharded, in-process key/value store with TTL, CAS, and batch
// support. The zero value is not usable; construct with New.
type Cache struct {
	eng     *engine.Cache
	log     *zap.Logger
	metrics metricsSink
	loaders *loaderGroup
}

// New builds a Cache. Without options it uses 256 shards, a 75% load
// factor, no CAS tracking, sixpack compression on, growth-only tables, and
// 2-random eviction enabled.
func New(opts ...Option) (*Cache, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Cache{
		log:     cfg.logger,
		metrics: newMetricsSink(cfg.registry),
		loaders: newLoaderGroup(),
	}
	userEvicted := cfg.evicted
	cfg.evicted = func(shardIdx int, reason engine.Reason, now int64, key, val []byte, expires int64, flags uint32, cas uint64) {
		c.metrics.incEvicted(shardIdx, reason)
		c.log.Debug("entry evicted", zap.Int("shard", shardIdx), zap.Stringer("reason", reasonString(reason)))
		if userEvicted != nil {
			userEvicted(shardIdx, reason, now, key, val, expires, flags, cas)
		}
	}
	c.eng = engine.New(cfg.toEngineConfig())
	c.log.Info("pogocache started", zap.Int("shards", c.eng.NShards()))
	return c, nil
}

type reasonString Reason

func (r reasonString) String() string {
	switch Reason(r) {
	case ReasonExpired:
		return "expired"
	case ReasonLowMem:
		return "lowmem"
	case ReasonCleared:
		return "cleared"
	default:
		return "unknown"
	}
}

func (c *Cache) recordStatus(shardHint int, st Status) {
	switch st {
	case Inserted:
		c.metrics.incInserted(shardHint)
	case Replaced:
		c.metrics.incReplaced(shardHint)
	case Found:
		c.metrics.incFound(shardHint)
	case NotFound:
		c.metrics.incNotFound(shardHint)
	case Deleted:
		c.metrics.incDeleted(shardHint)
	}
}

// Store inserts or replaces key/val, honoring TTL/CAS/NX/XX options.
func (c *Cache) Store(key, val []byte, opts StoreOptions) Status {
	st := c.eng.Store(key, val, opts)
	c.recordStatus(0, st)
	return st
}

// Load retrieves key's value.
func (c *Cache) Load(key []byte, opts LoadOptions) (Status, LoadResult) {
	st, res := c.eng.Load(key, opts)
	c.recordStatus(0, st)
	return st, res
}

// Delete removes key.
func (c *Cache) Delete(key []byte, opts DeleteOptions) Status {
	st := c.eng.Delete(key, opts)
	c.recordStatus(0, st)
	return st
}

// Iter walks live entries.
func (c *Cache) Iter(opts IterOptions) Status { return c.eng.Iter(opts) }

// Count returns the current number of live entries.
func (c *Cache) Count(opts ScanOptions) int { return c.eng.Count(opts) }

// Total returns the number of entries ever stored.
func (c *Cache) Total(opts ScanOptions) uint64 { return c.eng.Total(opts) }

// Size returns the cache's memory footprint estimate.
func (c *Cache) Size(opts SizeOptions) int64 { return c.eng.Size(opts) }

// Sweep unconditionally removes dead entries.
func (c *Cache) Sweep(opts ScanOptions) (swept, kept int) { return c.eng.Sweep(opts) }

// Clear logically empties the cache (or one shard) in O(1).
func (c *Cache) Clear(opts ScanOptions) { c.eng.Clear(opts) }

// SweepPoll estimates the fraction of dead entries in a sampled shard.
func (c *Cache) SweepPoll(opts SweepPollOptions) float64 { return c.eng.SweepPoll(opts) }

// NShards returns the number of shards.
func (c *Cache) NShards() int { return c.eng.NShards() }

// Batch groups several operations under a re-entrant multi-shard lock.
type Batch struct {
	b   *engine.Batch
	owner *Cache
}

// Begin starts a batch. Callers must call End exactly once.
func (c *Cache) Begin() *Batch { return &Batch{b: c.eng.Begin(), owner: c} }

// End releases every shard the batch touched.
func (b *Batch) End() { b.b.End() }

func (b *Batch) Store(key, val []byte, opts StoreOptions) Status {
	st := b.b.Store(key, val, opts)
	b.owner.recordStatus(0, st)
	return st
}

func (b *Batch) Load(key []byte, opts LoadOptions) (Status, LoadResult) {
	st, res := b.b.Load(key, opts)
	b.owner.recordStatus(0, st)
	return st, res
}

func (b *Batch) Delete(key []byte, opts DeleteOptions) Status {
	st := b.b.Delete(key, opts)
	b.owner.recordStatus(0, st)
	return st
}

func (b *Batch) Iter(opts IterOptions) Status               { return b.b.Iter(opts) }
func (b *Batch) Count(opts ScanOptions) int                  { return b.b.Count(opts) }
func (b *Batch) Total(opts ScanOptions) uint64               { return b.b.Total(opts) }
func (b *Batch) Size(opts SizeOptions) int64                 { return b.b.Size(opts) }
func (b *Batch) Sweep(opts ScanOptions) (swept, kept int)     { return b.b.Sweep(opts) }
func (b *Batch) Clear(opts ScanOptions)                       { b.b.Clear(opts) }
func (b *Batch) SweepPoll(opts SweepPollOptions) float64      { return b.b.SweepPoll(opts) }
