package main

import (
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/polypointlabs/pogocache-go/internal/dispatch"
)

// serveUnixSocket runs a blocking accept loop over a unix domain socket at
// path, reusing the same per-connection read/parse/dispatch/write cycle the
// TLS listener uses rather than folding a second listener type into the
// epoll Pool. Local tooling (redis-cli -s, memcached clients with a unix
// transport) is the expected client here, not the high-fanout network path
// the epoll core is tuned for.
func serveUnixSocket(path string, h *dispatch.Handler, logger *zap.Logger) {
	os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		logger.Error("unix socket listen failed", zap.String("path", path), zap.Error(err))
		return
	}
	defer ln.Close()
	defer os.Remove(path)
	logger.Info("pogocached unix socket listening", zap.String("path", path))

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Warn("unix socket accept failed", zap.Error(err))
			continue
		}
		go serveBlockingConn(conn, h)
	}
}
