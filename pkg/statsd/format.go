package statsd

import (
	"strconv"
	"strings"
)

// Metric type suffixes of the statsd line protocol.
const (
	typeCount        = "c"
	typeGauge        = "g"
	typeTiming       = "ms"
	typeHistogram    = "h"
	typeDistribution = "d"
	typeSet          = "s"
)

// sampling carries the optional |@rate section of a line.
type sampling struct {
	rate float64
	set  bool
}

// unsampled omits the rate section.
var unsampled = sampling{}

// sampledAt always writes the rate section, a rate of 1 included.
func sampledAt(rate float64) sampling { return sampling{rate: rate, set: true} }

func (c *Client) submitInt(name string, value int64, typ string, s sampling, tags []string) {
	c.Submit(formatLine(c.prefix, name, strconv.FormatInt(value, 10), typ, s, c.constantTags, tags))
}

func (c *Client) submitFloat(name string, value float64, typ string, s sampling, tags []string) {
	c.Submit(formatLine(c.prefix, name, strconv.FormatFloat(value, 'f', -1, 64), typ, s, c.constantTags, tags))
}

// formatLine builds prefix.name:value|type[|@rate][|#tag,...]. Constant tags
// come before call tags.
func formatLine(prefix, name, value, typ string, s sampling, constant, tags []string) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(name) + len(value) + 16)

	writePrefixed(&b, prefix, name)
	b.WriteByte(':')
	b.WriteString(value)
	b.WriteByte('|')
	b.WriteString(typ)

	if s.set {
		b.WriteString("|@")
		b.WriteString(strconv.FormatFloat(s.rate, 'f', 6, 64))
	}
	writeTags(&b, constant, tags)
	return b.String()
}

func writePrefixed(b *strings.Builder, prefix, name string) {
	if prefix != "" {
		b.WriteString(prefix)
		if !strings.HasSuffix(prefix, ".") {
			b.WriteByte('.')
		}
	}
	b.WriteString(name)
}

// writeTags appends |#tag,... unless every tag is empty.
func writeTags(b *strings.Builder, constant, tags []string) {
	first := true
	for _, set := range [][]string{constant, tags} {
		for _, tag := range set {
			if tag == "" {
				continue
			}
			if first {
				b.WriteString("|#")
				first = false
			} else {
				b.WriteByte(',')
			}
			b.WriteString(tag)
		}
	}
}
