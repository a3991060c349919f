package compute

import (
	"math"
	"sort"
	"strings"
	"sync"

	dto "github.com/prometheus/client_model/go"

	"github.com/obsidianstack/emitter/agent/internal/scraper"
)

// Emitter is the part of the statsd client the engine drives.
type Emitter interface {
	Count(name string, delta int64, tags ...string)
	Gauge(name string, value float64, tags ...string)
}

// Summary counts what one Process call did.
type Summary struct {
	Gauges    int // gauge lines emitted
	Counts    int // counter deltas emitted
	Baselined int // counter series seen for the first time
	Resets    int // counter series that went backwards and were re-baselined
	Skipped   int // NaN/Inf samples and unsupported family types
}

// Engine converts scraped Prometheus families into statsd calls.
//
// Prometheus counters are cumulative while statsd counts are deltas, so the
// engine keeps the last emitted total per series and sends only the
// difference. Fractional remainders stay in the baseline and are carried
// into the next scrape.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	baselines map[string]float64
}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{baselines: make(map[string]float64)}
}

// Process emits every sample in res through out.
//
// The first scrape of a counter series only records its baseline. A counter
// that went backwards (process restart) is re-baselined without emitting.
func (e *Engine) Process(res *scraper.Result, out Emitter) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sum Summary
	for _, mf := range res.Families {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			tags := tagsFor(res.SourceID, m.GetLabel())

			switch mf.GetType() {
			case dto.MetricType_GAUGE:
				e.gauge(&sum, out, name, m.GetGauge().GetValue(), tags)
			case dto.MetricType_UNTYPED:
				e.gauge(&sum, out, name, m.GetUntyped().GetValue(), tags)
			case dto.MetricType_COUNTER:
				e.counter(&sum, out, res.SourceID, name, m.GetCounter().GetValue(), tags)
			case dto.MetricType_SUMMARY:
				s := m.GetSummary()
				e.counter(&sum, out, res.SourceID, name+"_count", float64(s.GetSampleCount()), tags)
				e.counter(&sum, out, res.SourceID, name+"_sum", s.GetSampleSum(), tags)
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				e.counter(&sum, out, res.SourceID, name+"_count", float64(h.GetSampleCount()), tags)
				e.counter(&sum, out, res.SourceID, name+"_sum", h.GetSampleSum(), tags)
			default:
				sum.Skipped++
			}
		}
	}
	return sum
}

// Forget drops all counter baselines of a source, e.g. after it was removed
// from the config.
func (e *Engine) Forget(sourceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prefix := sourceID + "\x00"
	for k := range e.baselines {
		if strings.HasPrefix(k, prefix) {
			delete(e.baselines, k)
		}
	}
}

func (e *Engine) gauge(sum *Summary, out Emitter, name string, v float64, tags []string) {
	if !finite(v) {
		sum.Skipped++
		return
	}
	out.Gauge(name, v, tags...)
	sum.Gauges++
}

func (e *Engine) counter(sum *Summary, out Emitter, sourceID, name string, v float64, tags []string) {
	if !finite(v) {
		sum.Skipped++
		return
	}
	key := sourceID + "\x00" + name + "\x00" + strings.Join(tags, ",")
	base, ok := e.baselines[key]
	switch {
	case !ok:
		e.baselines[key] = v
		sum.Baselined++
	case v < base:
		e.baselines[key] = v
		sum.Resets++
	default:
		delta := clampDelta(math.Floor(v - base))
		if delta > 0 {
			out.Count(name, delta, tags...)
			e.baselines[key] = base + float64(delta)
			sum.Counts++
		}
	}
}

// tagsFor renders the source and label pairs as statsd tags, ordered by
// label name.
func tagsFor(sourceID string, labels []*dto.LabelPair) []string {
	sorted := make([]*dto.LabelPair, len(labels))
	copy(sorted, labels)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GetName() < sorted[j].GetName() })

	tags := make([]string, 0, len(labels)+1)
	tags = append(tags, "source:"+sourceID)
	for _, l := range sorted {
		tags = append(tags, l.GetName()+":"+l.GetValue())
	}
	return tags
}

// clampDelta converts d to int64, saturating at MaxInt64. The remainder of a
// larger jump stays in the baseline gap and is emitted on later scrapes.
func clampDelta(d float64) int64 {
	if d >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(d)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
