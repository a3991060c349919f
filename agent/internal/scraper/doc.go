// Package scraper polls Prometheus text exposition endpoints.
//
// A Scraper fetches one source's /metrics URL, parses it with
// prometheus/common/expfmt and returns the metric families whose names match
// the source's include prefixes. The compute package turns those families
// into statsd calls.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the
// authRoundTripper in base.go; each Scraper owns a pre-configured
// *http.Client built by New().
package scraper
