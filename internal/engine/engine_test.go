package engine

import (
	"fmt"
	"sort"
	"testing"

	"github.com/polypointlabs/pogocache-go/internal/hash"
)

// keyForShard brute-forces a key that hashes to the given shard index under
// cfg's seed and shard count, for tests that need to drive a batch's lock
// acquisition order deliberately.
func keyForShard(cfg Config, want int) []byte {
	for i := 0; ; i++ {
		k := []byte(fmt.Sprintf("k%d", i))
		h := hash.TH64(k, cfg.Seed)
		if hash.ShardIndex(h, cfg.NShards) == want {
			return k
		}
	}
}

func newTestCache() *Cache {
	return New(Config{NShards: 4, AllowShrink: true})
}

func TestStoreLoadDelete(t *testing.T) {
	c := newTestCache()
	if st := c.Store([]byte("k1"), []byte("v1"), StoreOptions{}); st != Inserted {
		t.Fatalf("store status = %v, want Inserted", st)
	}
	st, res := c.Load([]byte("k1"), LoadOptions{})
	if st != Found {
		t.Fatalf("load status = %v, want Found", st)
	}
	if string(res.Value) != "v1" {
		t.Fatalf("value = %q, want v1", res.Value)
	}
	if st := c.Store([]byte("k1"), []byte("v2"), StoreOptions{}); st != Replaced {
		t.Fatalf("second store status = %v, want Replaced", st)
	}
	if st := c.Delete([]byte("k1"), DeleteOptions{}); st != Deleted {
		t.Fatalf("delete status = %v, want Deleted", st)
	}
	if st := c.Delete([]byte("k1"), DeleteOptions{}); st != NotFound {
		t.Fatalf("second delete status = %v, want NotFound", st)
	}
	if st, _ := c.Load([]byte("k1"), LoadOptions{}); st != NotFound {
		t.Fatalf("load after delete = %v, want NotFound", st)
	}
}

func TestStoreNX(t *testing.T) {
	c := newTestCache()
	c.Store([]byte("k"), []byte("v1"), StoreOptions{})
	st := c.Store([]byte("k"), []byte("v2"), StoreOptions{NX: true})
	if st != Found {
		t.Fatalf("nx over existing key = %v, want Found", st)
	}
	_, res := c.Load([]byte("k"), LoadOptions{})
	if string(res.Value) != "v1" {
		t.Fatalf("nx should not have replaced value, got %q", res.Value)
	}
	if st := c.Store([]byte("k2"), []byte("v"), StoreOptions{NX: true}); st != Inserted {
		t.Fatalf("nx on fresh key = %v, want Inserted", st)
	}
}

func TestStoreXX(t *testing.T) {
	c := newTestCache()
	if st := c.Store([]byte("missing"), []byte("v"), StoreOptions{XX: true}); st != NotFound {
		t.Fatalf("xx on missing key = %v, want NotFound", st)
	}
	if st, _ := c.Load([]byte("missing"), LoadOptions{}); st != NotFound {
		t.Fatalf("xx should not have inserted the key")
	}
	c.Store([]byte("present"), []byte("v1"), StoreOptions{})
	if st := c.Store([]byte("present"), []byte("v2"), StoreOptions{XX: true}); st != Replaced {
		t.Fatalf("xx on existing key = %v, want Replaced", st)
	}
}

func TestStoreCAS(t *testing.T) {
	c := New(Config{NShards: 4, UseCAS: true})
	c.Store([]byte("k"), []byte("v1"), StoreOptions{})
	_, res := c.Load([]byte("k"), LoadOptions{})
	goodCAS := res.CAS
	if st := c.Store([]byte("k"), []byte("v2"), StoreOptions{CASOp: true, CAS: goodCAS + 1}); st != Found {
		t.Fatalf("wrong cas store = %v, want Found", st)
	}
	if st := c.Store([]byte("k"), []byte("v2"), StoreOptions{CASOp: true, CAS: goodCAS}); st != Replaced {
		t.Fatalf("correct cas store = %v, want Replaced", st)
	}

	// The stored cas must be the post-increment shard counter, not the
	// client-supplied precondition token, or a second request presenting
	// the now-stale goodCAS would spuriously succeed again.
	_, res2 := c.Load([]byte("k"), LoadOptions{})
	if res2.CAS == goodCAS {
		t.Fatalf("stored cas did not advance past the stale precondition token")
	}
	if st := c.Store([]byte("k"), []byte("v3"), StoreOptions{CASOp: true, CAS: goodCAS}); st != Found {
		t.Fatalf("replaying stale cas = %v, want Found", st)
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	c := newTestCache()
	c.Store([]byte("k"), []byte("v"), StoreOptions{Time: 1000, TTL: 10})
	if st, _ := c.Load([]byte("k"), LoadOptions{Time: 1005}); st != Found {
		t.Fatalf("expected still alive before expiry")
	}
	if st, _ := c.Load([]byte("k"), LoadOptions{Time: 1011}); st != NotFound {
		t.Fatalf("expected expired entry to read as NotFound")
	}
}

func TestClearIsLogicalAndImmediate(t *testing.T) {
	c := newTestCache()
	for i := 0; i < 10; i++ {
		c.Store([]byte{byte(i)}, []byte("v"), StoreOptions{Time: 100})
	}
	if got := c.Count(ScanOptions{}); got != 10 {
		t.Fatalf("count before clear = %d, want 10", got)
	}
	c.Clear(ScanOptions{Time: 200})
	if got := c.Count(ScanOptions{}); got != 0 {
		t.Fatalf("count after clear = %d, want 0", got)
	}
	if st, _ := c.Load([]byte{0}, LoadOptions{Time: 200}); st != NotFound {
		t.Fatalf("expected cleared entry to read as NotFound")
	}
}

func TestIterDelete(t *testing.T) {
	c := newTestCache()
	for i := 0; i < 20; i++ {
		c.Store([]byte{byte(i)}, []byte("v"), StoreOptions{})
	}
	seen := 0
	c.Iter(IterOptions{Entry: func(shardIdx int, now int64, key, val []byte, expires int64, flags uint32, cas uint64) IterAction {
		seen++
		if key[0]%2 == 0 {
			return IterDelete
		}
		return IterContinue
	}})
	if seen != 20 {
		t.Fatalf("iter visited %d entries, want 20", seen)
	}
	if got := c.Count(ScanOptions{}); got != 10 {
		t.Fatalf("count after deleting evens = %d, want 10", got)
	}
}

func TestBatchReentrant(t *testing.T) {
	c := newTestCache()
	b := c.Begin()
	defer b.End()
	b.Store([]byte("a"), []byte("1"), StoreOptions{})
	b.Store([]byte("b"), []byte("2"), StoreOptions{})
	// Re-entering the same key within the batch must not deadlock.
	if st, res := b.Load([]byte("a"), LoadOptions{}); st != Found || string(res.Value) != "1" {
		t.Fatalf("batch load a = %v %q", st, res.Value)
	}
	if st, res := b.Load([]byte("b"), LoadOptions{}); st != Found || string(res.Value) != "2" {
		t.Fatalf("batch load b = %v %q", st, res.Value)
	}
}

func TestBatchLocksShardsInAscendingIndexOrder(t *testing.T) {
	cfg := Config{NShards: 8, AllowShrink: true}
	c := New(cfg)
	b := c.Begin()
	defer b.End()

	// Touch shards out of order: 5, then 2, then 7, then 0.
	for _, want := range []int{5, 2, 7, 0} {
		key := keyForShard(cfg, want)
		b.Store(key, []byte("v"), StoreOptions{})
	}

	if !sort.IntsAreSorted(b.touchedIdx) {
		t.Fatalf("touched shard indices not ascending: %v", b.touchedIdx)
	}
	if len(b.touchedIdx) != 4 {
		t.Fatalf("touched = %v, want 4 distinct shards", b.touchedIdx)
	}

	// Re-touching an already-held shard must not duplicate or reorder it.
	b.Store(keyForShard(cfg, 2), []byte("v2"), StoreOptions{})
	if !sort.IntsAreSorted(b.touchedIdx) || len(b.touchedIdx) != 4 {
		t.Fatalf("re-touch broke invariant: %v", b.touchedIdx)
	}
}

func TestTotalSurvivesDelete(t *testing.T) {
	c := newTestCache()
	c.Store([]byte("k"), []byte("v"), StoreOptions{})
	c.Delete([]byte("k"), DeleteOptions{})
	c.Store([]byte("k2"), []byte("v"), StoreOptions{})
	if got := c.Total(ScanOptions{}); got != 2 {
		t.Fatalf("total = %d, want 2", got)
	}
	if got := c.Count(ScanOptions{}); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}
