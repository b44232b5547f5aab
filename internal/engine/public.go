package engine

// LoadResult carries the fields recovered by a successful Load.
type LoadResult struct {
	Value   []byte
	Expires int64
	Flags   uint32
	CAS     uint64
}

// Store inserts or replaces key/val. See StoreOptions for CAS/NX/XX/TTL
// controls.
func (c *Cache) Store(key, val []byte, opts StoreOptions) Status { return store(c, key, val, opts) }

// Load retrieves key's value, optionally updating it in place via
// opts.Entry.
func (c *Cache) Load(key []byte, opts LoadOptions) (Status, LoadResult) {
	st, val, exp, fl, cas := load(c, key, opts)
	return st, LoadResult{Value: val, Expires: exp, Flags: fl, CAS: cas}
}

// Delete removes key.
func (c *Cache) Delete(key []byte, opts DeleteOptions) Status { return del(c, key, opts) }

// Iter walks live entries, in bucket-probe order within each shard.
func (c *Cache) Iter(opts IterOptions) Status { return iter(c, opts) }

// Count returns the current number of live entries.
func (c *Cache) Count(opts ScanOptions) int { return count(c, opts) }

// Total returns the number of entries ever stored.
func (c *Cache) Total(opts ScanOptions) uint64 { return total(c, opts) }

// Size returns the cache's memory footprint estimate.
func (c *Cache) Size(opts SizeOptions) int64 { return size(c, opts) }

// Sweep removes dead entries unconditionally, returning how many were
// swept versus kept.
func (c *Cache) Sweep(opts ScanOptions) (swept, kept int) { return sweep(c, opts) }

// Clear logically empties the cache (or one shard) in O(1).
func (c *Cache) Clear(opts ScanOptions) { clear(c, opts) }

// SweepPoll samples a shard for the fraction of dead entries, cheap enough
// to call periodically to decide whether a full Sweep is worthwhile.
func (c *Cache) SweepPoll(opts SweepPollOptions) float64 { return sweepPoll(c, opts) }

// Store/Load/Delete/Iter/etc. on Batch mirror Cache's, but run inside the
// batch's re-entrant multi-shard lock instead of acquiring and releasing a
// single shard per call.

func (b *Batch) Store(key, val []byte, opts StoreOptions) Status { return store(b, key, val, opts) }

func (b *Batch) Load(key []byte, opts LoadOptions) (Status, LoadResult) {
	st, val, exp, fl, cas := load(b, key, opts)
	return st, LoadResult{Value: val, Expires: exp, Flags: fl, CAS: cas}
}

func (b *Batch) Delete(key []byte, opts DeleteOptions) Status { return del(b, key, opts) }

func (b *Batch) Iter(opts IterOptions) Status { return iter(b, opts) }

func (b *Batch) Count(opts ScanOptions) int { return count(b, opts) }

func (b *Batch) Total(opts ScanOptions) uint64 { return total(b, opts) }

func (b *Batch) Size(opts SizeOptions) int64 { return size(b, opts) }

func (b *Batch) Sweep(opts ScanOptions) (swept, kept int) { return sweep(b, opts) }

func (b *Batch) Clear(opts ScanOptions) { clear(b, opts) }

func (b *Batch) SweepPoll(opts SweepPollOptions) float64 { return sweepPoll(b, opts) }
