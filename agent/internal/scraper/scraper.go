package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/obsidianstack/emitter/agent/internal/config"
)

// Result is the output of one scrape of one source.
type Result struct {
	SourceID  string
	ScrapedAt time.Time

	// Families holds the forwarded metric families, sorted by name.
	Families []*dto.MetricFamily
}

// Scraper polls one Prometheus text endpoint.
type Scraper struct {
	src    config.Source
	client *http.Client
}

// New returns a Scraper for src. The HTTP client is built once and reused
// across scrapes.
func New(src config.Source) (*Scraper, error) {
	client, err := buildHTTPClient(src)
	if err != nil {
		return nil, fmt.Errorf("scraper %q: build http client: %w", src.ID, err)
	}
	return &Scraper{src: src, client: client}, nil
}

// Source returns the configuration the scraper was built from.
func (s *Scraper) Source() config.Source { return s.src }

// Scrape fetches the endpoint and returns the families matching the
// source's include prefixes.
func (s *Scraper) Scrape(ctx context.Context) (*Result, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.src.Endpoint)
	if err != nil {
		slog.Warn("scraper: fetch failed", "source", s.src.ID, "err", err)
		return nil, fmt.Errorf("scrape %q: %w", s.src.ID, err)
	}

	res := &Result{
		SourceID:  s.src.ID,
		ScrapedAt: time.Now().UTC(),
		Families:  make([]*dto.MetricFamily, 0, len(mfs)),
	}
	for name, mf := range mfs {
		if included(name, s.src.Include) {
			res.Families = append(res.Families, mf)
		}
	}
	sort.Slice(res.Families, func(i, j int) bool {
		return res.Families[i].GetName() < res.Families[j].GetName()
	})
	return res, nil
}

func included(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
