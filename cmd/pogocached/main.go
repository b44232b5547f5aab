// Command pogocached boots the multi-protocol cache server: an epoll event
// loop speaking RESP, Memcache text, HTTP/1.1, and Postgres wire v3 over
// one listening port, plus an optional TLS-wrapped listener and a debug
// HTTP server exposing Prometheus metrics and a JSON cache snapshot.
package main

import (
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/polypointlabs/pogocache-go/internal/dispatch"
	"github.com/polypointlabs/pogocache-go/internal/netloop"
	"github.com/polypointlabs/pogocache-go/pkg/pogocache"
)

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "pogocached:", err)
		os.Exit(2)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pogocached: logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	cacheOpts := []pogocache.Option{
		pogocache.WithShards(opts.NShards),
		pogocache.WithLoadFactor(opts.LoadFactor),
		pogocache.WithSeed(opts.Seed),
		pogocache.WithLogger(logger),
		pogocache.WithMetrics(registry),
	}
	if opts.UseCAS {
		cacheOpts = append(cacheOpts, pogocache.WithCAS())
	}
	if opts.NoSixpack {
		cacheOpts = append(cacheOpts, pogocache.WithoutSixpack())
	}
	if opts.NoEvict {
		cacheOpts = append(cacheOpts, pogocache.WithoutEviction())
	}
	if opts.AllowShrink {
		cacheOpts = append(cacheOpts, pogocache.WithShrink())
	}

	cache, err := pogocache.New(cacheOpts...)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}

	if opts.SavePath != "" {
		if err := cache.LoadFile(opts.SavePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("snapshot load failed", zap.String("path", opts.SavePath), zap.Error(err))
		} else if err == nil {
			logger.Info("snapshot loaded", zap.String("path", opts.SavePath))
		}
	}

	handler := dispatch.New(cache)

	pool, err := netloop.NewPool(netloop.Options{
		Addr:       net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		NThreads:   opts.Threads,
		MaxConns:   opts.MaxConns,
		TCPNoDelay: true,
		Keepalive:  true,
		Logger:     logger,
		Handler:    handler.AsNetloopHandler(),
	})
	if err != nil {
		logger.Fatal("listener init failed", zap.Error(err))
	}

	go serveDebug(opts.DebugAddr, registry, cache, logger)
	go runLowMemSampler(opts.MaxMemory, handler, logger)
	if opts.TLSPort != 0 {
		go serveTLS(opts, handler, logger)
	}
	if opts.UnixSocket != "" {
		go serveUnixSocket(opts.UnixSocket, handler, logger)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info("shutting down")
		if opts.SavePath != "" {
			if err := cache.DumpFile(opts.SavePath); err != nil {
				logger.Warn("snapshot save failed", zap.Error(err))
			}
		}
		pool.Close()
		os.Exit(0)
	}()

	logger.Info("pogocached listening",
		zap.String("addr", pool.Addr().String()),
		zap.Int("threads", opts.Threads))
	if err := pool.Run(); err != nil {
		logger.Fatal("event loop exited", zap.Error(err))
	}
}

func serveDebug(addr string, reg *prometheus.Registry, cache *pogocache.Cache, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pogocache/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeSnapshotJSON(w, cache)
	})
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("debug server exited", zap.Error(err))
	}
}
