package engine

import (
	"github.com/polypointlabs/pogocache-go/internal/entry"
	"github.com/polypointlabs/pogocache-go/internal/hash"
)

func iterShard(s session, c *Cache, idx int, t int64, opts IterOptions) Status {
	sh := s.forScan(idx)
	defer s.endScan(sh)
	status := Finished
	nb := sh.Map.NumBuckets()
	for i := 0; i < nb; i++ {
		if !sh.Map.Occupied(i) {
			continue
		}
		e := sh.Map.EntryAt(i)
		key := entry.Key(e)
		val := entry.Value(e)
		expires := entry.Expires(e)
		flags := entry.Flags(e)
		cas := entry.CAS(e)
		if reason := aliveReason(e, t, sh.ClearTime); reason != 0 {
			continue
		}
		action := IterContinue
		if opts.Entry != nil {
			action = opts.Entry(idx, t, key, val, expires, flags, cas)
		}
		if action != IterContinue {
			if action&IterDelete != 0 {
				sh.Map.DeleteAt(i)
				i--
			}
			if action&IterStop != 0 {
				status = Canceled
				break
			}
		}
	}
	sh.Map.TryShrink(true)
	return status
}

// iter implements pogocache_iter: live entries only are surfaced (dead
// ones are skipped in place, not evicted — eviction-on-iterate is an
// opt-in the original gates behind a build macro that this implementation
// does not enable, since Sweep already exists as the explicit mechanism
// for reclaiming dead entries).
func iter(s session, opts IterOptions) Status {
	c := s.cache()
	t := resolveTime(opts.Time)
	if opts.OneShard {
		if opts.OneShardIdx < 0 || opts.OneShardIdx >= c.NShards() {
			return Finished
		}
		return iterShard(s, c, opts.OneShardIdx, t, opts)
	}
	for i := 0; i < c.NShards(); i++ {
		if st := iterShard(s, c, i, t, opts); st != Finished {
			return st
		}
	}
	return Finished
}

func countShard(s session, idx int) int {
	sh := s.forScan(idx)
	defer s.endScan(sh)
	return sh.Map.Count() - sh.ClearCount
}

func count(s session, opts ScanOptions) int {
	c := s.cache()
	if opts.OneShard {
		if opts.OneShardIdx < 0 || opts.OneShardIdx >= c.NShards() {
			return 0
		}
		return countShard(s, opts.OneShardIdx)
	}
	total := 0
	for i := 0; i < c.NShards(); i++ {
		total += countShard(s, i)
	}
	return total
}

func totalShard(s session, idx int) uint64 {
	sh := s.forScan(idx)
	defer s.endScan(sh)
	return sh.Map.Total()
}

func total(s session, opts ScanOptions) uint64 {
	c := s.cache()
	if opts.OneShard {
		if opts.OneShardIdx < 0 || opts.OneShardIdx >= c.NShards() {
			return 0
		}
		return totalShard(s, opts.OneShardIdx)
	}
	var sum uint64
	for i := 0; i < c.NShards(); i++ {
		sum += totalShard(s, i)
	}
	return sum
}

func sizeShard(s session, idx int, entriesOnly bool) int64 {
	sh := s.forScan(idx)
	defer s.endScan(sh)
	var size int64
	if !entriesOnly {
		size += int64(sh.Map.NumBuckets()) * bucketOverheadBytes
	}
	size += sh.Map.EntrySize()
	return size
}

// bucketOverheadBytes approximates the per-bucket struct overhead of the
// Robin-Hood table, for parity with pogocache_size's structural accounting
// (sizeof(struct shard) + sizeof(struct bucket)*nbuckets). Go's runtime
// does not expose exact struct sizes cheaply at this layer, so this is a
// documented estimate rather than unsafe.Sizeof plumbing through an
// interface boundary.
const bucketOverheadBytes = 24

func size(s session, opts SizeOptions) int64 {
	c := s.cache()
	if opts.OneShard {
		if opts.OneShardIdx < 0 || opts.OneShardIdx >= c.NShards() {
			return 0
		}
		return sizeShard(s, opts.OneShardIdx, opts.EntriesOnly)
	}
	var sum int64
	for i := 0; i < c.NShards(); i++ {
		sum += sizeShard(s, i, opts.EntriesOnly)
	}
	return sum
}

func sweepShard(s session, c *Cache, idx int, t int64) (swept, kept int) {
	sh := s.forScan(idx)
	defer s.endScan(sh)
	nb := sh.Map.NumBuckets()
	for i := 0; i < nb; i++ {
		if !sh.Map.Occupied(i) {
			continue
		}
		e := sh.Map.EntryAt(i)
		reason := aliveReason(e, t, sh.ClearTime)
		if reason == 0 {
			kept++
			continue
		}
		if reason == ReasonCleared {
			sh.ClearCount--
		}
		notifyEvicted(c, idx, reason, t, e)
		sh.Map.DeleteAt(i)
		swept++
		i--
	}
	sh.Map.TryShrink(true)
	return swept, kept
}

// sweep implements pogocache_sweep: an unconditional pass that removes
// every dead (expired or cleared) entry, independent of Iter, with no
// user veto — only the Evicted notifier fires.
func sweep(s session, opts ScanOptions) (swept, kept int) {
	c := s.cache()
	t := resolveTime(opts.Time)
	if opts.OneShard {
		if opts.OneShardIdx >= 0 && opts.OneShardIdx < c.NShards() {
			return sweepShard(s, c, opts.OneShardIdx, t)
		}
		return 0, 0
	}
	for i := 0; i < c.NShards(); i++ {
		sw, k := sweepShard(s, c, i, t)
		swept += sw
		kept += k
	}
	return swept, kept
}

func clearShard(s session, idx int, t int64) {
	sh := s.forScan(idx)
	defer s.endScan(sh)
	sh.ClearTime = t
	sh.ClearCount += sh.Map.Count() - sh.ClearCount
}

// clear implements pogocache_clear: an O(1) bulk logical clear achieved by
// bumping the shard's clear timestamp so every entry whose access time
// predates it reads as dead on its next touch.
func clear(s session, opts ScanOptions) {
	c := s.cache()
	t := resolveTime(opts.Time)
	if opts.OneShard {
		if opts.OneShardIdx < 0 || opts.OneShardIdx >= c.NShards() {
			return
		}
		clearShard(s, opts.OneShardIdx, t)
		return
	}
	for i := 0; i < c.NShards(); i++ {
		clearShard(s, i, t)
	}
}

func sweepPollShard(s session, idx int, t int64, pollSize int) float64 {
	sh := s.forScan(idx)
	defer s.endScan(sh)
	nb := sh.Map.NumBuckets()
	start := int(hash.Mix13(uint64(t+int64(idx))) % uint64(nb))
	count, dead := 0, 0
	for i := 0; i < nb && count < pollSize; i++ {
		bidx := (start + i) % nb
		if !sh.Map.Occupied(bidx) {
			continue
		}
		e := sh.Map.EntryAt(bidx)
		count++
		if aliveReason(e, t, sh.ClearTime) != 0 {
			dead++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(dead) / float64(count)
}

// sweepPoll implements pogocache_sweep_poll: samples a pseudo-random shard
// and a pseudo-random run of buckets within it to estimate the fraction of
// dead entries, giving a caller a cheap signal for whether a full Sweep is
// worthwhile without paying for one.
func sweepPoll(s session, opts SweepPollOptions) float64 {
	c := s.cache()
	t := resolveTime(opts.Time)
	pollSize := opts.PollSize
	if pollSize == 0 {
		pollSize = 20
	}
	idx := int(hash.Mix13(uint64(t)) % uint64(c.NShards()))
	return sweepPollShard(s, idx, t, pollSize)
}
