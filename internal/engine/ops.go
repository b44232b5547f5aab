package engine

import (
	"github.com/polypointlabs/pogocache-go/internal/entry"
	"github.com/polypointlabs/pogocache-go/internal/hash"
	"github.com/polypointlabs/pogocache-go/internal/shard"
)

// store implements pogocache's storeop: build a new entry, insert it,
// and reconcile against whatever occupied the slot before — replaced,
// cas/nx rollback via a non-allocating reinsert, or a fresh insert that
// may trigger 2-random eviction under memory pressure.
func store(s session, key, val []byte, opts StoreOptions) Status {
	sh, idx, h := s.forKey(key)
	defer s.endKey(sh)
	c := s.cache()

	countBefore := sh.Map.Count()
	t := resolveTime(opts.Time)
	expires := int64(0)
	if opts.Expires > 0 {
		expires = opts.Expires
	} else if opts.TTL > 0 {
		expires = clampAdd(t, opts.TTL)
	}
	if opts.KeepTTL {
		if old := sh.Map.Get(key, hash.ClipHash(h)); old != nil {
			if aliveReason(old, t, sh.ClearTime) == 0 {
				expires = entry.Expires(old)
			}
		}
	}

	sh.CAS++
	newEnt := entry.Build(key, val, expires, opts.Flags, sh.CAS, t, c.entryOptions())

	if opts.LowMem && c.cfg.NoEvict {
		return NoMem
	}

	old := sh.Map.Insert(newEnt, hash.ClipHash(h))
	if old != nil {
		if reason := aliveReason(old, t, sh.ClearTime); reason != 0 {
			if reason == ReasonCleared {
				sh.ClearCount--
			}
			notifyEvicted(c, idx, reason, t, old)
			old = nil
		}
	}

	if old != nil {
		putBack := false
		if opts.CASOp {
			if !c.cfg.UseCAS || opts.CAS != entry.CAS(old) {
				putBack = true
			}
		} else if opts.NX {
			putBack = true
		}
		if putBack {
			sh.Map.Insert(old, hash.ClipHash(h))
			return Found
		}
	} else if opts.XX || opts.CASOp {
		sh.Map.Delete(key, hash.ClipHash(h))
		return NotFound
	}

	if old != nil && opts.Entry != nil {
		if !opts.Entry(idx, t, key, entry.Value(old), entry.Expires(old), entry.Flags(old), entry.CAS(old)) {
			sh.Map.Insert(old, hash.ClipHash(h))
			return Canceled
		}
	}

	if old != nil {
		return Replaced
	}
	if opts.LowMem && sh.Map.Count() > countBefore {
		autoEvict(c, sh, idx, hash.ClipHash(h), t)
	}
	return Inserted
}

// load implements pogocache's loadop: find the entry, evict it in place if
// it turned out to be dead, otherwise bump its access time and optionally
// let the caller replace its value.
func load(s session, key []byte, opts LoadOptions) (Status, []byte, int64, uint32, uint64) {
	sh, idx, h := s.forKey(key)
	defer s.endKey(sh)
	c := s.cache()

	t := resolveTime(opts.Time)
	bidx := sh.Map.GetBucket(key, hash.ClipHash(h))
	if bidx < 0 {
		return NotFound, nil, 0, 0, 0
	}
	e := sh.Map.EntryAt(bidx)
	val := entry.Value(e)
	expires := entry.Expires(e)
	flags := entry.Flags(e)
	cas := entry.CAS(e)

	if reason := aliveReason(e, t, sh.ClearTime); reason != 0 {
		if reason == ReasonCleared {
			sh.ClearCount--
		}
		notifyEvicted(c, idx, reason, t, e)
		sh.Map.DeleteAt(bidx)
		return NotFound, nil, 0, 0, 0
	}
	if !opts.NoTouch {
		entry.SetAccessTime(e, t)
	}
	if opts.Entry != nil {
		if upd := opts.Entry(idx, t, key, val, expires, flags, cas); upd != nil {
			sh.CAS++
			newEnt := entry.Build(key, upd.Value, upd.Expires, upd.Flags, sh.CAS, t, c.entryOptions())
			sh.Map.SetEntryAt(bidx, newEnt)
			val = upd.Value
			expires = upd.Expires
			flags = upd.Flags
			cas = sh.CAS
		}
	}
	return Found, val, expires, flags, cas
}

// del implements pogocache's deleteop, including the non-allocating
// reinsert used when the caller's Entry callback vetoes the delete.
func del(s session, key []byte, opts DeleteOptions) Status {
	sh, idx, h := s.forKey(key)
	defer s.endKey(sh)
	c := s.cache()

	t := resolveTime(opts.Time)
	e := sh.Map.Delete(key, hash.ClipHash(h))
	if e == nil {
		return NotFound
	}
	if reason := aliveReason(e, t, sh.ClearTime); reason != 0 {
		if reason == ReasonCleared {
			sh.ClearCount--
		}
		notifyEvicted(c, idx, reason, t, e)
		sh.Map.TryShrink(false)
		return NotFound
	}
	if opts.Entry != nil {
		if !opts.Entry(idx, t, key, entry.Value(e), entry.Expires(e), entry.Flags(e), entry.CAS(e)) {
			sh.Map.Insert(e, hash.ClipHash(h))
			return Canceled
		}
	}
	sh.Map.TryShrink(false)
	return Deleted
}

// autoEvict implements pogocache's 2-random eviction: scan forward from
// hash+1, evicting the first dead entry encountered immediately, else
// picking the older-access-time of up to two live candidates that don't
// share the new key's hash.
func autoEvict(c *Cache, sh *shard.Shard, idx int, clip uint32, t int64) {
	if c.cfg.NoEvict {
		return
	}
	nb := sh.Map.NumBuckets()
	var candidates [2][]byte
	var candidateHash [2]uint32
	count := 0
	for i := 1; i < nb && count < 2; i++ {
		bidx := (i + int(clip)) & (nb - 1)
		if !sh.Map.Occupied(bidx) {
			continue
		}
		e := sh.Map.EntryAt(bidx)
		if reason := aliveReason(e, t, sh.ClearTime); reason != 0 {
			if reason == ReasonCleared {
				sh.ClearCount--
			}
			notifyEvicted(c, idx, reason, t, e)
			sh.Map.DeleteAt(bidx)
			return
		}
		if sh.Map.HashAt(bidx) == clip {
			continue
		}
		candidates[count] = e
		candidateHash[count] = sh.Map.HashAt(bidx)
		count++
	}
	var chosen []byte
	var chosenHash uint32
	switch count {
	case 1:
		chosen, chosenHash = candidates[0], candidateHash[0]
	case 2:
		if entry.AccessTime(candidates[0]) < entry.AccessTime(candidates[1]) {
			chosen, chosenHash = candidates[0], candidateHash[0]
		} else {
			chosen, chosenHash = candidates[1], candidateHash[1]
		}
	default:
		return
	}
	notifyEvicted(c, idx, ReasonLowMem, t, chosen)
	sh.Map.Delete(entry.Key(chosen), chosenHash)
}
