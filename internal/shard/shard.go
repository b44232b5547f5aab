// Package shard defines the per-shard lock and the container that pairs a
// Robin-Hood map with that lock, a CAS counter, and the bookkeeping needed
// for O(1) bulk clear.
package shard

import (
	"math"
	"sync/atomic"

	"github.com/polypointlabs/pogocache-go/internal/robinhood"
)

// lockFree and lockExclusive are the two reserved states of a shard's lock
// word; any other value is the uintptr identity of the batch token
// currently holding the shard, allowing the same batch to re-enter without
// deadlocking itself.
const (
	lockFree      = 0
	lockExclusive = uintptr(math.MaxUint64)
)

// Shard owns one slice of the keyspace: its Robin-Hood table, the lock
// word, a monotonically increasing CAS counter, and the clear-time/
// clear-count pair that makes bulk Clear an O(1) operation instead of a
// full table walk.
type Shard struct {
	Map        *robinhood.Map
	lock       atomic.Uintptr
	CAS        uint64
	ClearTime  int64
	ClearCount int
}

// New creates a shard with the given initial Robin-Hood capacity and
// resize factors.
func New(initCap int, loadFactor, shrinkFactor float64, allowShrink bool) *Shard {
	return &Shard{
		Map: robinhood.New(initCap, loadFactor, shrinkFactor, allowShrink),
		CAS: 1,
	}
}

// LockExclusive spins until it acquires the shard for a single, non-batch
// operation. yield, if non-nil, is called between spin attempts (e.g. to
// call runtime.Gosched or a user-supplied backoff).
func (s *Shard) LockExclusive(yield func()) {
	for {
		if s.lock.CompareAndSwap(lockFree, lockExclusive) {
			return
		}
		if yield != nil {
			yield()
		}
	}
}

// UnlockExclusive releases a lock taken with LockExclusive.
func (s *Shard) UnlockExclusive() {
	s.lock.Store(lockFree)
}

// LockBatch acquires the shard on behalf of a batch identified by token
// (the batch's own pointer identity, so re-entrant calls from the same
// batch never block). It reports whether this call was the one that
// actually acquired the shard (false means the batch already held it).
func (s *Shard) LockBatch(token uintptr, yield func()) (acquired bool) {
	for {
		if s.lock.CompareAndSwap(lockFree, token) {
			return true
		}
		if s.lock.Load() == token {
			return false
		}
		if yield != nil {
			yield()
		}
	}
}

// UnlockBatch releases a shard held by a batch. Called once per shard when
// the batch ends, regardless of how many times LockBatch re-entered it.
func (s *Shard) UnlockBatch() {
	s.lock.Store(lockFree)
}
