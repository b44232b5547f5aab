package main

import (
	"crypto/tls"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/polypointlabs/pogocache-go/internal/dispatch"
	"github.com/polypointlabs/pogocache-go/internal/netloop"
	"github.com/polypointlabs/pogocache-go/internal/protocol"
)

// serveTLS runs a plain goroutine-per-connection listener for --tlsport. We
// wire crypto/tls here rather than fuse TLS into the epoll core: pogocache's
// own thread-per-queue loop never terminated TLS itself either, and
// duplicating that machinery for a secondary, lower-traffic port isn't worth
// the complexity.
func serveTLS(opts *options, h *dispatch.Handler, logger *zap.Logger) {
	cert, err := tls.LoadX509KeyPair(opts.TLSCert, opts.TLSKey)
	if err != nil {
		logger.Error("tls cert load failed", zap.Error(err))
		return
	}
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	ln, err := tls.Listen("tcp", net.JoinHostPort(opts.Host, fmt.Sprint(opts.TLSPort)), cfg)
	if err != nil {
		logger.Error("tls listen failed", zap.Error(err))
		return
	}
	defer ln.Close()
	logger.Info("pogocached TLS listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			logger.Warn("tls accept failed", zap.Error(err))
			continue
		}
		go serveBlockingConn(conn, h)
	}
}

const tlsReadChunk = 16384

func serveBlockingConn(nc net.Conn, h *dispatch.Handler) {
	defer nc.Close()
	c := netloop.NewTestConn()
	buf := make([]byte, tlsReadChunk)

	for {
		n, err := nc.Read(buf)
		if n > 0 {
			c.Feed(buf[:n])
			for {
				consumed, cmd, perr := c.ParseNext()
				if perr != nil {
					if perr == protocol.ErrNeedMore {
						break
					}
					c.Writer().WriteError(perr.Error())
					c.Advance(consumed)
					break
				}
				if consumed == 0 {
					break
				}
				c.Advance(consumed)
				h.Handle(c, cmd.Args)
				if c.Closed() {
					break
				}
			}
			c.CompactBuf()
			c.Writer().Flush()
			if c.OutBuffer().Len() > 0 {
				nc.Write(c.OutBuffer().Bytes())
				c.OutBuffer().Reset()
			}
			if c.Closed() {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
