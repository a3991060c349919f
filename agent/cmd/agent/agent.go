package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/obsidianstack/emitter/agent/internal/compute"
	"github.com/obsidianstack/emitter/agent/internal/config"
	"github.com/obsidianstack/emitter/agent/internal/scraper"
	"github.com/obsidianstack/emitter/agent/internal/security"
)

// emitter is what the agent needs from the statsd client.
type emitter interface {
	compute.Emitter
	security.Gauger
}

// agent scrapes every configured source and forwards the samples.
// Sources can be swapped at runtime by apply.
type agent struct {
	out    emitter
	engine *compute.Engine

	mu       sync.Mutex
	scrapers []*scraper.Scraper
}

func newAgent(out emitter) *agent {
	return &agent{out: out, engine: compute.NewEngine()}
}

// apply replaces the scraper set with the sources in cfg. Sources whose
// scraper cannot be built are skipped. Baselines of removed sources are
// forgotten.
func (a *agent) apply(cfg *config.Config) {
	next := make([]*scraper.Scraper, 0, len(cfg.Agent.Sources))
	keep := make(map[string]bool, len(cfg.Agent.Sources))
	for _, src := range cfg.Agent.Sources {
		s, err := scraper.New(src)
		if err != nil {
			slog.Error("skipping source, could not build scraper", "source", src.ID, "err", err)
			continue
		}
		next = append(next, s)
		keep[src.ID] = true
		slog.Info("registered source", "id", src.ID, "endpoint", src.Endpoint)
	}

	a.mu.Lock()
	prev := a.scrapers
	a.scrapers = next
	a.mu.Unlock()

	for _, s := range prev {
		if id := s.Source().ID; !keep[id] {
			a.engine.Forget(id)
			slog.Info("removed source", "id", id)
		}
	}
}

func (a *agent) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.scrapers)
}

func (a *agent) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// tick runs one scrape of every source.
func (a *agent) tick(ctx context.Context) {
	a.mu.Lock()
	scrapers := append([]*scraper.Scraper(nil), a.scrapers...)
	a.mu.Unlock()

	for _, s := range scrapers {
		src := s.Source()
		security.Emit(a.out, security.Check(ctx, src))

		res, err := s.Scrape(ctx)
		if err != nil {
			a.out.Gauge("agent.source_up", 0, "source:"+src.ID)
			continue
		}
		a.out.Gauge("agent.source_up", 1, "source:"+src.ID)

		sum := a.engine.Process(res, a.out)
		slog.Debug("forwarded scrape",
			"source", src.ID,
			"families", len(res.Families),
			"gauges", sum.Gauges,
			"counts", sum.Counts,
			"resets", sum.Resets,
		)
	}
}
