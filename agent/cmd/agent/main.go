package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/obsidianstack/emitter/agent/internal/config"
	"github.com/obsidianstack/emitter/pkg/shipper"
	"github.com/obsidianstack/emitter/pkg/statsd"
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

	slog.Info("emitter-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sd := cfg.Agent.StatsD
	slog.Info("config loaded",
		"transport", sd.Transport.Kind,
		"address", sd.Transport.Address,
		"sources", len(cfg.Agent.Sources),
		"scrape_interval", cfg.Agent.ScrapeInterval,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, err := statsd.New(
		statsd.WithTransportConfig(sd.Transport),
		statsd.WithPrefix(sd.Prefix),
		statsd.WithConstantTags(sd.ConstantTags...),
		statsd.WithQueueSize(sd.QueueSize),
		statsd.WithStopGrace(sd.StopGrace),
		statsd.WithPollTimeout(sd.PollTimeout),
		statsd.WithErrorHandler(shipper.LogErrorHandler(logger)),
		statsd.WithRegisterer(reg, "agent"),
		statsd.WithLogger(logger),
	)
	if err != nil {
		slog.Error("failed to build statsd client", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newAgent(client)
	a.apply(cfg)
	if a.size() == 0 {
		slog.Warn("no sources configured, agent will idle")
	}

	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if !sameStatsD(cfg.Agent.StatsD, updated.Agent.StatsD) {
				slog.Warn("statsd settings changed, restart the agent to apply them")
			}
			a.apply(updated)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	var srv *http.Server
	if addr := cfg.Agent.MetricsListen; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("self-metrics listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("self-metrics server stopped", "err", err)
			}
		}()
	}

	go a.loop(ctx, cfg.Agent.ScrapeInterval)

	<-ctx.Done()
	slog.Info("emitter-agent shutting down", "pending", client.Pending())

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		done()
	}
	client.Stop()

	st := client.Stats()
	slog.Info("emitter-agent stopped", "submitted", st.Submitted, "dropped", st.Dropped)
}

func sameStatsD(a, b config.StatsDConfig) bool {
	if a.Transport != b.Transport || a.Prefix != b.Prefix || a.QueueSize != b.QueueSize ||
		a.StopGrace != b.StopGrace || a.PollTimeout != b.PollTimeout ||
		len(a.ConstantTags) != len(b.ConstantTags) {
		return false
	}
	for i := range a.ConstantTags {
		if a.ConstantTags[i] != b.ConstantTags[i] {
			return false
		}
	}
	return true
}
