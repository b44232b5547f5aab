package main

import (
	"encoding/json"
	"net/http"

	"github.com/polypointlabs/pogocache-go/pkg/pogocache"
)

// snapshotStats is the JSON shape served at /debug/pogocache/snapshot, a
// point-in-time summary rather than a full entry dump (use --save-path and
// the file it writes for that).
type snapshotStats struct {
	Shards  int     `json:"shards"`
	Count   int     `json:"count"`
	Total   uint64  `json:"total"`
	SizeB   int64   `json:"size_bytes"`
	DeadPct float64 `json:"dead_pct_sample"`
}

func writeSnapshotJSON(w http.ResponseWriter, cache *pogocache.Cache) {
	stats := snapshotStats{
		Shards:  cache.NShards(),
		Count:   cache.Count(pogocache.ScanOptions{}),
		Total:   cache.Total(pogocache.ScanOptions{}),
		SizeB:   cache.Size(pogocache.SizeOptions{}),
		DeadPct: cache.SweepPoll(pogocache.SweepPollOptions{}),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
