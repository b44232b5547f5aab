// Package entry implements the flat, contiguous binary encoding used to
// store a single cache record: a one byte header, an access timestamp, and
// an optional expiry/flags/cas block, followed by a varint-prefixed key and
// value. There is no struct overlay on top of the byte slice — Go gives no
// safe way to reinterpret a variable-width blob as a struct, so every
// accessor below walks the slice directly, mirroring the pointer-walking
// accessors of the C original.
package entry

import (
	"bytes"
	"encoding/binary"

	"github.com/polypointlabs/pogocache-go/internal/sixpack"
)

// Header bit flags.
const (
	flagExpires  = 1 << 0
	flagFlags    = 1 << 1
	flagCAS      = 1 << 2
	flagSixpack  = 1 << 3
	headerLength = 1
	timeLength   = 8 // nanosecond-resolution wall clock snapshot
)

// Options controls how new entries are built and how existing ones are
// interpreted. It is threaded through every codec call instead of being a
// package global so a single process can run multiple caches with
// different settings.
type Options struct {
	UseCAS   bool
	NoSixpack bool
}

// Build encodes key/val/expires/flags/cas into a freshly allocated entry
// according to opts. accessTime is a monotonic-ish nanosecond timestamp
// used for two-random eviction comparisons; cas, when zero, is assigned by
// the caller (the map/shard owns the CAS counter) before calling Build.
func Build(key, val []byte, expires int64, flags uint32, cas uint64, accessTime int64, opts Options) []byte {
	var hdr uint8
	if expires != 0 {
		hdr |= flagExpires
	}
	if flags != 0 {
		hdr |= flagFlags
	}
	if opts.UseCAS {
		hdr |= flagCAS
	}

	packedKey := key
	if !opts.NoSixpack && len(key) > 0 && len(key) <= 128 {
		if packed, ok := sixpack.Pack(key); ok {
			packedKey = packed
			hdr |= flagSixpack
		}
	}

	keyLenBuf := make([]byte, binary.MaxVarintLen64)
	nKeyLen := binary.PutUvarint(keyLenBuf, uint64(len(packedKey)))
	valLenBuf := make([]byte, binary.MaxVarintLen64)
	nValLen := binary.PutUvarint(valLenBuf, uint64(len(val)))

	size := headerLength + timeLength
	if hdr&flagExpires != 0 {
		size += 8
	}
	if hdr&flagFlags != 0 {
		size += 4
	}
	if hdr&flagCAS != 0 {
		size += 8
	}
	size += nKeyLen + len(packedKey) + nValLen + len(val)

	buf := make([]byte, size)
	p := buf
	p[0] = hdr
	p = p[1:]
	binary.LittleEndian.PutUint64(p, uint64(accessTime))
	p = p[timeLength:]
	if hdr&flagExpires != 0 {
		binary.LittleEndian.PutUint64(p, uint64(expires))
		p = p[8:]
	}
	if hdr&flagFlags != 0 {
		binary.LittleEndian.PutUint32(p, flags)
		p = p[4:]
	}
	if hdr&flagCAS != 0 {
		binary.LittleEndian.PutUint64(p, cas)
		p = p[8:]
	}
	copy(p, keyLenBuf[:nKeyLen])
	p = p[nKeyLen:]
	copy(p, packedKey)
	p = p[len(packedKey):]
	copy(p, valLenBuf[:nValLen])
	p = p[nValLen:]
	copy(p, val)

	return buf
}

// Sixpacked reports whether the stored key is sixpack-compressed.
func Sixpacked(e []byte) bool {
	return e[0]&flagSixpack != 0
}

// AccessTime returns the last-access timestamp recorded in the entry.
func AccessTime(e []byte) int64 {
	return int64(binary.LittleEndian.Uint64(e[headerLength : headerLength+timeLength]))
}

// SetAccessTime overwrites the entry's access timestamp in place. This is
// the one field that is mutated in place after an entry is built, used to
// record touches on load without rebuilding the whole record.
func SetAccessTime(e []byte, t int64) {
	binary.LittleEndian.PutUint64(e[headerLength:headerLength+timeLength], uint64(t))
}

// Expires returns the absolute expiry time in nanoseconds, or 0 if the
// entry never expires.
func Expires(e []byte) int64 {
	hdr := e[0]
	if hdr&flagExpires == 0 {
		return 0
	}
	p := e[headerLength+timeLength:]
	return int64(binary.LittleEndian.Uint64(p))
}

func casOffset(e []byte) int {
	off := headerLength + timeLength
	hdr := e[0]
	if hdr&flagExpires != 0 {
		off += 8
	}
	if hdr&flagFlags != 0 {
		off += 4
	}
	return off
}

// CAS returns the stored CAS counter value, or 0 if CAS tracking is off for
// this entry.
func CAS(e []byte) uint64 {
	hdr := e[0]
	if hdr&flagCAS == 0 {
		return 0
	}
	off := casOffset(e)
	return binary.LittleEndian.Uint64(e[off : off+8])
}

// Flags returns the user flags word, or 0 if none were stored.
func Flags(e []byte) uint32 {
	hdr := e[0]
	if hdr&flagFlags == 0 {
		return 0
	}
	off := headerLength + timeLength
	if hdr&flagExpires != 0 {
		off += 8
	}
	return binary.LittleEndian.Uint32(e[off : off+4])
}

func bodyOffset(e []byte) int {
	off := headerLength + timeLength
	hdr := e[0]
	if hdr&flagExpires != 0 {
		off += 8
	}
	if hdr&flagFlags != 0 {
		off += 4
	}
	if hdr&flagCAS != 0 {
		off += 8
	}
	return off
}

// Key returns the logical (unpacked) key. If the entry is sixpacked the
// result is freshly allocated by unpacking; callers that only need to
// compare against a known raw key should use RawKey instead to avoid the
// allocation.
func Key(e []byte) []byte {
	off := bodyOffset(e)
	klen, n := binary.Uvarint(e[off:])
	off += n
	packed := e[off : off+int(klen)]
	if Sixpacked(e) {
		return sixpack.Unpack(packed)
	}
	return packed
}

// RawKey returns the key exactly as stored, sixpacked or not.
func RawKey(e []byte) []byte {
	off := bodyOffset(e)
	klen, n := binary.Uvarint(e[off:])
	off += n
	return e[off : off+int(klen)]
}

// Value returns the stored value bytes (never sixpacked).
func Value(e []byte) []byte {
	off := bodyOffset(e)
	klen, n := binary.Uvarint(e[off:])
	off += n + int(klen)
	vlen, n := binary.Uvarint(e[off:])
	off += n
	return e[off : off+int(vlen)]
}

// Size returns the number of bytes the entry occupies, for accounting
// against a shard's memory budget.
func Size(e []byte) int {
	return len(e)
}

// Reason is what Alive returns, mirroring pogocache's entry_alive_exp: it
// says whether an entry is logically dead due to a bulk clear or TTL
// expiry, as one of ReasonNone, ReasonCleared, or ReasonExpired.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonCleared
	ReasonExpired
)

// Alive reports why e should be treated as dead given now and the shard's
// clear timestamp, or ReasonNone if it is live.
func Alive(e []byte, now, clearTime int64) Reason {
	accessTime := AccessTime(e)
	if accessTime < clearTime {
		return ReasonCleared
	}
	expires := Expires(e)
	if expires > 0 && expires <= now {
		return ReasonExpired
	}
	return ReasonNone
}

// KeyEqual reports whether e's logical key equals key, comparing in
// sixpacked form when possible to avoid the unpack allocation (sixpack is
// memcmp-order-preserving and injective, so comparing packed bytes against
// a packed version of key is equivalent to comparing unpacked keys).
func KeyEqual(e []byte, key []byte) bool {
	raw := RawKey(e)
	if Sixpacked(e) {
		packed, ok := sixpack.Pack(key)
		if !ok {
			return false
		}
		return bytes.Equal(raw, packed)
	}
	return bytes.Equal(raw, key)
}
