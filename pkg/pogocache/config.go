// Package pogocache is the public API: a sharded, in-process key/value
// cache with TTL, CAS, and batch support, wrapping internal/engine with
// functional options, structured logging, and Prometheus metrics in the
// idiom this repository's teacher codebase established.
package pogocache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/polypointlabs/pogocache-go/internal/engine"
)

// Option configures a Cache at construction time.
type Option func(*config)

type config struct {
	nshards        int
	loadFactor     int
	seed           uint64
	useCAS         bool
	noSixpack      bool
	noEvict        bool
	allowShrink    bool
	useThreadBatch bool
	registry       *prometheus.Registry
	logger         *zap.Logger
	evicted        engine.EvictedFunc
}

func defaultConfig() *config {
	return &config{
		nshards: 256,
		logger:  zap.NewNop(),
	}
}

// WithShards sets the number of shards (default 256). Higher shard counts
// reduce lock contention at the cost of per-shard overhead; pick a power
// of two close to 2-4x the expected concurrent writer count.
func WithShards(n int) Option {
	return func(c *config) { c.nshards = n }
}

// WithLoadFactor sets the Robin-Hood table's grow threshold as a percent
// of capacity (default 75). Values outside [55, 95] make New return an
// error.
func WithLoadFactor(pct int) Option {
	return func(c *config) { c.loadFactor = pct }
}

// WithSeed sets a custom hash seed, useful for deterministic tests or to
// defend against hash-flooding from untrusted keys.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// WithCAS enables compare-and-store tracking. Every entry then carries an
// 8-byte CAS counter.
func WithCAS() Option {
	return func(c *config) { c.useCAS = true }
}

// WithoutSixpack disables the 6-bit key compression codec, storing every
// key verbatim. Useful when keys are mostly outside the sixpack alphabet,
// since a failed pack attempt is pure overhead.
func WithoutSixpack() Option {
	return func(c *config) { c.noSixpack = true }
}

// WithoutEviction disables 2-random eviction under memory pressure; Store
// calls made with LowMem set will fail with NoMem instead of evicting.
func WithoutEviction() Option {
	return func(c *config) { c.noEvict = true }
}

// WithShrink allows the Robin-Hood table to shrink back down once it goes
// sparse (default: tables only grow).
func WithShrink() Option {
	return func(c *config) { c.allowShrink = true }
}

// WithMetrics enables Prometheus instrumentation, registering counters
// against reg. Passing nil disables metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger. The cache logs one info line
// when it is constructed and a debug line for each eviction; it logs
// nothing else.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEvictedCallback registers a function invoked whenever an entry is
// removed due to expiry, low memory, or a Clear. It runs on the calling
// goroutine while the owning shard's lock is held — it must not block or
// call back into the same Cache.
func WithEvictedCallback(fn engine.EvictedFunc) Option {
	return func(c *config) { c.evicted = fn }
}

func (c *config) validate() error {
	if c.loadFactor != 0 && (c.loadFactor < 55 || c.loadFactor > 95) {
		return errInvalidLoadFactor
	}
	if c.nshards < 0 {
		return errInvalidShards
	}
	return nil
}

func (c *config) toEngineConfig() engine.Config {
	return engine.Config{
		UseCAS:         c.useCAS,
		NoSixpack:      c.noSixpack,
		NoEvict:        c.noEvict,
		AllowShrink:    c.allowShrink,
		UseThreadBatch: c.useThreadBatch,
		NShards:        c.nshards,
		LoadFactor:     c.loadFactor,
		Seed:           c.seed,
		Evicted:        c.evicted,
	}
}

var (
	errInvalidLoadFactor = errors.New("pogocache: load factor must be between 55 and 95")
	errInvalidShards      = errors.New("pogocache: shards must be >= 0")
)
