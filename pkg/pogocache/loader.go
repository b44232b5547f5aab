package pogocache

// loader.go adds singleflight-based de-duplication in front of Store/Load so
// that a cache miss against a slow backing store only triggers one fetch no
// matter how many goroutines ask for the same key at once; the rest wait and
// share its result.

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Fetcher produces the value for a key that was missing from the cache.
type Fetcher func(ctx context.Context, key []byte) ([]byte, error)

// FetchOutcome reports how GetOrLoad resolved a key.
type FetchOutcome struct {
	Value  []byte
	Shared bool // true if another goroutine's fetch produced Value
}

type loaderGroup struct {
	g singleflight.Group
}

func newLoaderGroup() *loaderGroup { return &loaderGroup{} }

// GetOrLoad returns key's cached value, or calls fetch to populate it on a
// miss. Concurrent misses for the same key collapse into a single fetch
// call; every caller waiting on that key receives its result. A successful
// fetch is stored with opts before being returned.
func (c *Cache) GetOrLoad(ctx context.Context, key []byte, opts StoreOptions, fetch Fetcher) (FetchOutcome, error) {
	if st, res := c.Load(key, LoadOptions{Time: opts.Time}); st == Found {
		return FetchOutcome{Value: res.Value}, nil
	}

	// Copy key into the singleflight map key: the caller may reuse key's
	// backing array (e.g. a wire-protocol read buffer) while the fetch is
	// still in flight.
	v, err, shared := c.loaders.g.Do(string(key), func() (any, error) {
		val, err := fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		c.Store(key, val, opts)
		return val, nil
	})
	if err != nil {
		return FetchOutcome{}, err
	}
	return FetchOutcome{Value: v.([]byte), Shared: shared}, nil
}
