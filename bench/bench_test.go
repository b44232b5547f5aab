// Package bench provides reproducible micro-benchmarks for pogocache.
// Run via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks intentionally use a single key/value shape so results are
// comparable across versions:
//   • Key   - 8-byte big-endian encoding of a uint64 (cheap hashing)
//   • Value - 64-byte blob (large enough to matter, small enough for cache)
//
// We measure:
//   1. Store       - write-only workload
//   2. Load        - read-only workload (after warm-up)
//   3. LoadParallel - highly concurrent reads (b.RunParallel)
//   4. GetOrLoad   - 90% hits, 10% misses with loader cost
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: Unit tests live elsewhere; this file is only for performance.

package bench

import (
	"context"
	"encoding/binary"
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/polypointlabs/pogocache-go/pkg/pogocache"
)

const (
	shards = 16
	keys   = 1 << 20 // 1M keys for dataset
)

var val64 = make([]byte, 64)

func newTestCache() *pogocache.Cache {
	c, err := pogocache.New(pogocache.WithShards(shards))
	if err != nil {
		panic(err)
	}
	return c
}

// global dataset reused across benches to avoid reallocating large slices.
var ds = func() [][]byte {
	r := rand.New(rand.NewSource(42))
	arr := make([][]byte, keys)
	for i := range arr {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, r.Uint64())
		arr[i] = b
	}
	return arr
}()

func BenchmarkStore(b *testing.B) {
	c := newTestCache()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(keys-1)]
		c.Store(key, val64, pogocache.StoreOptions{})
	}
}

func BenchmarkLoad(b *testing.B) {
	c := newTestCache()
	for _, k := range ds {
		c.Store(k, val64, pogocache.StoreOptions{})
	}
	loader := func(ctx context.Context, key []byte) ([]byte, error) { return val64, nil }
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		_, _ = c.GetOrLoad(context.Background(), k, pogocache.StoreOptions{}, loader)
	}
}

func BenchmarkLoadParallel(b *testing.B) {
	c := newTestCache()
	for _, k := range ds {
		c.Store(k, val64, pogocache.StoreOptions{})
	}
	loader := func(ctx context.Context, key []byte) ([]byte, error) { return val64, nil }
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			c.GetOrLoad(context.Background(), ds[idx], pogocache.StoreOptions{}, loader)
		}
	})
}

func BenchmarkGetOrLoad(b *testing.B) {
	c := newTestCache()
	// Preload 90% of keys to simulate mixed hit/miss.
	for i, k := range ds {
		if i%10 != 0 {
			c.Store(k, val64, pogocache.StoreOptions{})
		}
	}
	var loaderCnt atomic.Uint64
	loader := func(ctx context.Context, key []byte) ([]byte, error) {
		loaderCnt.Add(1)
		return val64, nil
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		c.GetOrLoad(context.Background(), k, pogocache.StoreOptions{}, loader)
	}
	b.ReportMetric(float64(loaderCnt.Load())/float64(b.N)*100, "miss-%")
}

func init() {
	rand.Seed(42)
	runtime.GOMAXPROCS(runtime.NumCPU())
}
