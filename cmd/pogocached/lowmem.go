package main

import (
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/polypointlabs/pogocache-go/internal/dispatch"
)

// runLowMemSampler samples process RSS (approximated via runtime.MemStats'
// HeapAlloc+StackInuse, since the portable stdlib doesn't expose cgroup
// limits) once a second and flips the handler's lowmem flag whenever usage
// crosses limitBytes, matching the memory-pressure protocol: store()
// threads the flag through as StoreOptions.LowMem, triggering 2-random
// eviction on growth instead of letting the table run the host out of
// memory. limitBytes <= 0 disables the sampler entirely.
func runLowMemSampler(limitBytes int64, h *dispatch.Handler, logger *zap.Logger) {
	if limitBytes <= 0 {
		return
	}
	var m runtime.MemStats
	wasLow := false
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		runtime.ReadMemStats(&m)
		used := int64(m.HeapAlloc + m.StackInuse)
		low := used >= limitBytes
		h.SetLowMem(low)
		if low != wasLow {
			logger.Info("lowmem sampler", zap.Bool("lowmem", low),
				zap.Int64("used_bytes", used), zap.Int64("limit_bytes", limitBytes))
			wasLow = low
		}
	}
}
