// Package hash provides the 64-bit key mixer used to place entries into
// shards and buckets.
package hash

const prime = 0x14020a57acced8b7

// TH64 is a 64-bit non-cryptographic hash (https://github.com/tidwall/th64)
// used for both shard selection and in-shard bucket probing. It processes
// data in 8-byte words, folding a rotate into the accumulator, then
// finalizes with three rounds of xor-shift/multiply to spread bits across
// the whole word.
func TH64(data []byte, seed uint64) uint64 {
	h := seed
	p := data
	for len(p) >= 8 {
		x := leUint64(p)
		x *= prime
		x = x<<31 | x>>33
		h = h*prime ^ x
		h = h<<31 | h>>33
		p = p[8:]
	}
	for _, b := range p {
		h = h*prime ^ uint64(b)
	}
	h = h*prime + uint64(len(data))
	h ^= h >> 31
	h *= prime
	h ^= h >> 31
	h *= prime
	h ^= h >> 31
	h *= prime
	return h
}

func leUint64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// Mix13 is a smaller avalanche mixer (https://zimbry.blogspot.com, splitmix
// finalizer) used for the pseudo-random sampling in SweepPoll, where the
// cost of a full TH64 pass is not justified.
func Mix13(key uint64) uint64 {
	key ^= key >> 30
	key *= 0xbf58476d1ce4e5b9
	key ^= key >> 27
	key *= 0x94d049bb133111eb
	key ^= key >> 31
	return key
}

// ShardIndex picks a shard using the high 32 bits of the hash, leaving the
// low 32 bits (ClipHash) free for in-shard bucket probing so the two
// derivations don't correlate.
func ShardIndex(h uint64, nshards int) int {
	return int((h >> 32) % uint64(nshards))
}

// ClipHash returns the low 32 bits of h, used as the stored/compared hash
// inside a shard's Robin-Hood table.
func ClipHash(h uint64) uint32 {
	return uint32(h)
}
