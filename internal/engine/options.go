package engine

// EvictedFunc is called whenever an entry is removed due to expiry, low
// memory eviction, or a bulk clear. reason explains why.
type EvictedFunc func(shardIdx int, reason Reason, now int64, key, val []byte, expires int64, flags uint32, cas uint64)

// Config configures a new Cache. Unset numeric fields fall back to the
// documented defaults, matching pogocache_opts.
type Config struct {
	UseCAS         bool
	NoSixpack      bool
	NoEvict        bool
	AllowShrink    bool
	UseThreadBatch bool
	NShards        int
	LoadFactor     int // percent, 55..95, default 75
	Seed           uint64
	Evicted        EvictedFunc
	Yield          func()
}

const (
	defaultShards   = 256
	defaultLoadPct  = 75
	minLoadPct      = 55
	maxLoadPct      = 95
	shrinkAtPct     = 10
	initialCapacity = 16
)

func (c *Config) normalize() {
	if c.NShards <= 0 {
		c.NShards = defaultShards
	}
	switch {
	case c.LoadFactor == 0:
		c.LoadFactor = defaultLoadPct
	case c.LoadFactor < minLoadPct:
		c.LoadFactor = minLoadPct
	case c.LoadFactor > maxLoadPct:
		c.LoadFactor = maxLoadPct
	}
}

func (c *Config) loadFactor() float64  { return float64(c.LoadFactor) / 100.0 }
func (c *Config) shrinkFactor() float64 { return float64(shrinkAtPct) / 100.0 }

// StoreOptions controls a Store call.
type StoreOptions struct {
	Time     int64 // 0 => now
	Expires  int64 // absolute expiry, nanoseconds
	TTL      int64 // relative expiry, nanoseconds (ignored if Expires set)
	CAS      uint64
	Flags    uint32
	KeepTTL  bool
	CASOp    bool
	NX       bool
	XX       bool
	LowMem   bool
	// Entry, if set, is handed the replaced entry's value before the
	// replacement takes effect. Returning false keeps the old entry and
	// cancels the store.
	Entry func(shardIdx int, now int64, key, oldVal []byte, expires int64, flags uint32, cas uint64) bool
}

// LoadOptions controls a Load call.
type LoadOptions struct {
	Time    int64
	NoTouch bool
	// Entry is handed the found value and may return a non-nil Update to
	// replace it in place.
	Entry func(shardIdx int, now int64, key, val []byte, expires int64, flags uint32, cas uint64) *Update
}

// Update is returned from a LoadOptions.Entry callback to replace the
// loaded value in place.
type Update struct {
	Value   []byte
	Flags   uint32
	Expires int64
}

// DeleteOptions controls a Delete call.
type DeleteOptions struct {
	Time int64
	// Entry, if set, previews the value before deletion. Returning false
	// cancels the delete.
	Entry func(shardIdx int, now int64, key, val []byte, expires int64, flags uint32, cas uint64) bool
}

// IterOptions controls an Iter call.
type IterOptions struct {
	Time         int64
	OneShard     bool
	OneShardIdx  int
	Entry        func(shardIdx int, now int64, key, val []byte, expires int64, flags uint32, cas uint64) IterAction
}

// ScanOptions controls Count/Total/Size/Sweep/Clear calls that can be
// isolated to a single shard.
type ScanOptions struct {
	Time        int64
	OneShard    bool
	OneShardIdx int
}

// SizeOptions extends ScanOptions with the entries-only switch.
type SizeOptions struct {
	ScanOptions
	EntriesOnly bool
}

// SweepPollOptions controls SweepPoll.
type SweepPollOptions struct {
	Time     int64
	PollSize int
}
