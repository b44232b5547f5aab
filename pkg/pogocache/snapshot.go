package pogocache

// snapshot.go is the minimal on-disk persistence adapter SPEC_FULL.md's
// component O calls for: pogocache itself treats persistence as an
// external collaborator, so this is a thin gob-encoded dump/load pair, not
// a new storage format authority.

import (
	"encoding/gob"
	"io"
	"os"
)

type snapshotEntry struct {
	Key     []byte
	Value   []byte
	Expires int64
	Flags   uint32
	CAS     uint64
}

// Dump writes every live entry to w as a gob stream, for offline backup or
// migration between process restarts. It takes no cache-wide lock beyond
// what Iter already holds per shard, so writers may continue touching
// other shards concurrently.
func (c *Cache) Dump(w io.Writer) error {
	enc := gob.NewEncoder(w)
	var encErr error
	c.Iter(IterOptions{
		Entry: func(_ int, _ int64, key, val []byte, expires int64, flags uint32, cas uint64) IterAction {
			if encErr != nil {
				return IterStop
			}
			encErr = enc.Encode(snapshotEntry{
				Key:     append([]byte(nil), key...),
				Value:   append([]byte(nil), val...),
				Expires: expires,
				Flags:   flags,
				CAS:     cas,
			})
			if encErr != nil {
				return IterStop
			}
			return IterContinue
		},
	})
	return encErr
}

// Restore reads a gob stream previously written by Dump and stores every
// entry, preserving each entry's recorded expiry and flags. Keys already
// present are overwritten.
func (c *Cache) Restore(r io.Reader) error {
	dec := gob.NewDecoder(r)
	for {
		var e snapshotEntry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		c.Store(e.Key, e.Value, StoreOptions{Expires: e.Expires, Flags: e.Flags, CAS: e.CAS})
	}
}

// DumpFile writes a snapshot to path, creating or truncating it.
func (c *Cache) DumpFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Dump(f)
}

// LoadFile restores a snapshot previously written by DumpFile.
func (c *Cache) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Restore(f)
}
