// Package robinhood implements an open-addressing hash table with
// Robin-Hood displacement (insertion steals a slot from any resident with a
// smaller probe distance) and backward-shift deletion. It stores already-
// encoded entry.Build blobs directly; this package never parses entry
// contents beyond calling entry.Key/entry.KeyEqual/entry.Size for
// comparison and accounting, so it can remain independent of the entry
// codec's wire format details.
package robinhood

import (
	"github.com/polypointlabs/pogocache-go/internal/entry"
)

// Bucket holds one resident slot: the stored entry blob, its clipped
// 32-bit hash, and its distance from the ideal bucket (dib). dib == 0
// means the slot is empty.
type bucket struct {
	ent  []byte
	hash uint32
	dib  uint8
}

// Map is a single shard's Robin-Hood hash table.
type Map struct {
	buckets      []bucket
	cap          int // the capacity requested at construction / last explicit resize target
	mask         int
	count        int
	total        uint64
	entSize      int64
	loadFactor   float64
	shrinkFactor float64
	allowShrink  bool
}

// New creates a map with the given initial capacity (rounded by the
// caller to a power of two) and load/shrink factors controlling resize
// thresholds.
func New(cap int, loadFactor, shrinkFactor float64, allowShrink bool) *Map {
	m := &Map{loadFactor: loadFactor, shrinkFactor: shrinkFactor, allowShrink: allowShrink}
	m.init(cap)
	return m
}

func (m *Map) init(cap int) {
	if cap < 1 {
		cap = 1
	}
	m.cap = cap
	m.buckets = make([]bucket, cap)
	m.mask = cap - 1
	m.count = 0
}

// Count returns the number of live (not necessarily alive-by-TTL) entries.
func (m *Map) Count() int { return m.count }

// Total returns the monotonic count of entries ever inserted.
func (m *Map) Total() uint64 { return m.total }

// EntrySize returns the summed entry.Size of all resident entries.
func (m *Map) EntrySize() int64 { return m.entSize }

// NumBuckets returns the current bucket array length.
func (m *Map) NumBuckets() int { return len(m.buckets) }

func (m *Map) growAt() int {
	return int(float64(len(m.buckets)) * m.loadFactor)
}

func (m *Map) shrinkAt() int {
	return int(float64(len(m.buckets)) * m.shrinkFactor)
}

func (m *Map) resize(newCap int) {
	old := m.buckets
	m.buckets = make([]bucket, newCap)
	m.mask = newCap - 1
	for _, b := range old {
		if b.dib == 0 {
			continue
		}
		b.dib = 1
		j := int(b.hash) & m.mask
		for {
			if m.buckets[j].dib == 0 {
				m.buckets[j] = b
				break
			}
			if m.buckets[j].dib < b.dib {
				m.buckets[j], b = b, m.buckets[j]
			}
			j = (j + 1) & m.mask
			b.dib++
		}
	}
}

// Insert places ent (already hashed to clipHash via hash.ClipHash) into the
// map, growing first if the load factor would be exceeded. If an entry with
// the same key already occupies a slot it is replaced and returned as old;
// otherwise old is nil.
func (m *Map) Insert(ent []byte, clipHash uint32) (old []byte) {
	if m.count >= m.growAt() {
		m.resize(len(m.buckets) * 2)
	}
	m.entSize += int64(entry.Size(ent))
	cand := bucket{ent: ent, hash: clipHash, dib: 1}
	i := int(clipHash) & m.mask
	for {
		slot := &m.buckets[i]
		if slot.dib == 0 {
			*slot = cand
			m.count++
			m.total++
			return nil
		}
		if slot.hash == cand.hash && entry.KeyEqual(slot.ent, entry.Key(cand.ent)) {
			old = slot.ent
			m.entSize -= int64(entry.Size(old))
			slot.ent = cand.ent
			return old
		}
		if slot.dib < cand.dib {
			*slot, cand = cand, *slot
		}
		i = (i + 1) & m.mask
		cand.dib++
	}
}

func (m *Map) findBucket(key []byte, clipHash uint32) int {
	i := int(clipHash) & m.mask
	for {
		slot := &m.buckets[i]
		if slot.dib == 0 {
			return -1
		}
		if slot.hash == clipHash && entry.KeyEqual(slot.ent, key) {
			return i
		}
		i = (i + 1) & m.mask
	}
}

// Get returns the entry for key, or nil if absent.
func (m *Map) Get(key []byte, clipHash uint32) []byte {
	i := m.findBucket(key, clipHash)
	if i < 0 {
		return nil
	}
	return m.buckets[i].ent
}

// GetBucket returns the bucket index for key, or -1 if absent. Exposed so
// the shard/engine layer can do in-place updates (loadop-style touches)
// without a second probe.
func (m *Map) GetBucket(key []byte, clipHash uint32) int {
	return m.findBucket(key, clipHash)
}

// EntryAt returns the entry stored at bucket index i, or nil if the slot
// is unoccupied.
func (m *Map) EntryAt(i int) []byte {
	if m.buckets[i].dib == 0 {
		return nil
	}
	return m.buckets[i].ent
}

// Occupied reports whether bucket index i holds a live slot.
func (m *Map) Occupied(i int) bool { return m.buckets[i].dib != 0 }

// HashAt returns the clipped hash stored at bucket index i.
func (m *Map) HashAt(i int) uint32 { return m.buckets[i].hash }

// SetEntryAt overwrites the entry at bucket index i in place, used when a
// load callback hands back a replacement entry for the same key, which
// therefore doesn't need to walk the probe chain again.
func (m *Map) SetEntryAt(i int, ent []byte) {
	delta := int64(entry.Size(ent)) - int64(entry.Size(m.buckets[i].ent))
	m.entSize += delta
	m.buckets[i].ent = ent
}

// delbkt removes the occupant of bucket i and backward-shifts later
// probe-chain members left to preserve Robin-Hood invariants.
func (m *Map) delbkt(i int) {
	m.buckets[i].dib = 0
	for {
		h := i
		i = (i + 1) & m.mask
		if m.buckets[i].dib <= 1 {
			m.buckets[h] = bucket{}
			break
		}
		m.buckets[h] = m.buckets[i]
		m.buckets[h].dib--
	}
	m.count--
}

// DeleteAt removes the entry at bucket index i (already located via
// GetBucket) and returns it.
func (m *Map) DeleteAt(i int) []byte {
	old := m.buckets[i].ent
	m.entSize -= int64(entry.Size(old))
	m.delbkt(i)
	return old
}

// Delete removes key if present and returns the removed entry, or nil.
func (m *Map) Delete(key []byte, clipHash uint32) []byte {
	i := m.findBucket(key, clipHash)
	if i < 0 {
		return nil
	}
	return m.DeleteAt(i)
}

// NeedsShrink reports whether the map is sparse enough, and shrinking is
// enabled, to warrant a resize down.
func (m *Map) NeedsShrink() bool {
	return m.allowShrink && len(m.buckets) > m.cap && m.count <= m.shrinkAt()
}

// TryShrink resizes down if NeedsShrink. multi hints that many entries may
// have just been removed in bulk (iter/clear/sweep), in which case the new
// capacity is computed to just fit the current count instead of simply
// halving.
func (m *Map) TryShrink(multi bool) {
	if !m.NeedsShrink() {
		return
	}
	newCap := m.cap
	if multi {
		growAt := int(float64(newCap) * m.loadFactor)
		for m.count >= growAt {
			newCap *= 2
			growAt = int(float64(newCap) * m.loadFactor)
		}
	} else {
		newCap = len(m.buckets) / 2
	}
	m.resize(newCap)
}

// Range calls fn for every resident bucket index in probe order, stopping
// early if fn returns false.
func (m *Map) Range(fn func(i int, ent []byte) bool) {
	for i := range m.buckets {
		if m.buckets[i].dib == 0 {
			continue
		}
		if !fn(i, m.buckets[i].ent) {
			return
		}
	}
}
