package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/obsidianstack/emitter/server/internal/api"
	"github.com/obsidianstack/emitter/server/internal/config"
	"github.com/obsidianstack/emitter/server/internal/receiver"
	"github.com/obsidianstack/emitter/server/internal/store"
	"github.com/obsidianstack/emitter/server/internal/ws"
)

func main() {
	configPath := flag.StringP("config", "c", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug | info | warn | error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("emitter-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sc := cfg.Server
	slog.Info("config loaded",
		"listen", sc.Listen,
		"unix_socket", sc.UnixSocket,
		"http_port", sc.HTTPPort,
		"ttl", sc.TTL,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Metric store with background TTL eviction.
	st := store.New(sc.TTL)
	go st.Run(ctx)

	rcv := receiver.New(st, sc.ReadBuffer)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(rcv.Collectors()...)

	var conns []net.PacketConn
	if sc.Listen != "" {
		conn, err := receiver.ListenUDP(sc.Listen)
		if err != nil {
			slog.Error("failed to open udp listener", "err", err)
			os.Exit(1)
		}
		conns = append(conns, conn)
	}
	if sc.UnixSocket != "" {
		conn, err := receiver.ListenUnixgram(sc.UnixSocket)
		if err != nil {
			slog.Error("failed to open unix socket", "err", err)
			os.Exit(1)
		}
		defer os.Remove(sc.UnixSocket)
		conns = append(conns, conn)
	}

	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn net.PacketConn) {
			defer wg.Done()
			slog.Info("statsd receiver listening", "addr", conn.LocalAddr().String())
			if err := rcv.Serve(ctx, conn); err != nil {
				slog.Error("statsd receiver stopped", "err", err)
			}
		}(conn)
	}

	// WebSocket hub streams the live metric set to clients.
	hub := ws.New(st, sc.StreamInterval)
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, rcv))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("emitter-server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	wg.Wait()

	s := rcv.Stats()
	slog.Info("emitter-server stopped", "lines", s.Lines, "malformed", s.Malformed)
}
