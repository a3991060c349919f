package statsd

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		metric   string
		value    string
		typ      string
		rate     sampling
		constant []string
		tags     []string
		want     string
	}{
		{"bare counter", "", "hits", "1", typeCount, unsampled, nil, nil, "hits:1|c"},
		{"prefixed", "my.prefix", "mycount", "24", typeCount, unsampled, nil, nil, "my.prefix.mycount:24|c"},
		{"prefix with trailing dot", "app.", "g", "3", typeGauge, unsampled, nil, nil, "app.g:3|g"},
		{"sample rate", "", "c", "1", typeCount, sampledAt(0.5), nil, nil, "c:1|c|@0.500000"},
		{"explicit rate of one kept", "my.prefix", "mycount", "24", typeCount, sampledAt(1), nil, nil, "my.prefix.mycount:24|c|@1.000000"},
		{"call tags", "", "c", "1", typeCount, unsampled, nil, []string{"foo:bar", "baz"}, "c:1|c|#foo:bar,baz"},
		{"constant before call tags", "", "t", "5", typeTiming, unsampled, []string{"env:prod"}, []string{"route:/"}, "t:5|ms|#env:prod,route:/"},
		{"rate and tags", "p", "h", "1.5", typeHistogram, sampledAt(0.25), nil, []string{"a"}, "p.h:1.5|h|@0.250000|#a"},
		{"timer rate of one with tags", "my.prefix", "mytime", "123", typeTiming, sampledAt(1), nil, []string{"baz", "foo:bar"}, "my.prefix.mytime:123|ms|@1.000000|#baz,foo:bar"},
		{"empty tags skipped", "", "s", "u1", typeSet, unsampled, []string{""}, []string{"", "x"}, "s:u1|s|#x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := formatLine(tc.prefix, tc.metric, tc.value, tc.typ, tc.rate, tc.constant, tc.tags)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatEvent(t *testing.T) {
	full := Event{
		Title:          "title1",
		Text:           "text1",
		Timestamp:      time.UnixMilli(1234567000),
		Hostname:       "host1",
		AggregationKey: "key1",
		Priority:       PriorityLow,
		AlertType:      AlertError,
	}
	multiline := full
	multiline.Text = "text1\nline2"
	partial := Event{Title: "title1", Text: "text1", Timestamp: time.UnixMilli(1234567000)}

	tests := []struct {
		name     string
		prefix   string
		event    Event
		constant []string
		tags     []string
		want     string
	}{
		{"all fields, newline escaped", "my.prefix", multiline, nil, nil,
			`_e{16,12}:my.prefix.title1|text1\nline2|d:1234567|h:host1|k:key1|p:low|t:error`},
		{"partial", "my.prefix", partial, nil, nil,
			"_e{16,5}:my.prefix.title1|text1|d:1234567"},
		{"with tags", "my.prefix", full, nil, []string{"baz", "foo:bar"},
			"_e{16,5}:my.prefix.title1|text1|d:1234567|h:host1|k:key1|p:low|t:error|#baz,foo:bar"},
		{"partial with tags", "my.prefix", partial, nil, []string{"baz", "foo:bar"},
			"_e{16,5}:my.prefix.title1|text1|d:1234567|#baz,foo:bar"},
		{"no prefix", "", full, nil, []string{"baz", "foo:bar"},
			"_e{6,5}:title1|text1|d:1234567|h:host1|k:key1|p:low|t:error|#baz,foo:bar"},
		{"constant tags first", "", Event{Title: "t", Text: "x"}, []string{"env:prod"}, []string{"a"},
			"_e{1,1}:t|x|#env:prod,a"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := formatEvent(tc.prefix, tc.event, tc.constant, tc.tags)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatServiceCheck(t *testing.T) {
	const (
		message = "♬ †øU \n†øU ¥ºu|m: T0µ ♪"
		escaped = `♬ †øU \n†øU ¥ºu|m\: T0µ ♪`
	)
	assert.Equal(t, escaped, escapeCheckMessage(message))

	tests := []struct {
		name     string
		check    ServiceCheck
		constant []string
		want     string
	}{
		{"all fields", ServiceCheck{
			Name:      "my_check.name",
			Status:    StatusWarning,
			Message:   message,
			Hostname:  "i-abcd1234",
			Timestamp: time.Unix(1420740000, 0),
			Tags:      []string{"key2:val2", "key1:val1"},
		}, nil, "_sc|my_check.name|1|d:1420740000|h:i-abcd1234|#key2:val2,key1:val1|m:" + escaped},
		{"status only", ServiceCheck{Name: "db", Status: StatusCritical}, nil, "_sc|db|2"},
		{"constant tags", ServiceCheck{Name: "db", Tags: []string{"role:primary"}}, []string{"env:prod"},
			"_sc|db|0|#env:prod,role:primary"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := formatServiceCheck(tc.check, tc.constant)
			assert.Equal(t, tc.want, got)
		})
	}
}
