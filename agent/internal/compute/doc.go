// Package compute turns scraped Prometheus metric families into statsd calls.
//
// Gauges and untyped samples are forwarded as statsd gauges. Counters,
// and the _count/_sum series of summaries and histograms, are forwarded as
// statsd counts of the increase since the previous scrape: Engine keeps a
// baseline per series (source, name, labels), skips the first scrape and
// re-baselines on counter resets.
//
// Label pairs become key:value tags, preceded by source:<id>.
package compute
