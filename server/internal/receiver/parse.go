package receiver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/obsidianstack/emitter/server/internal/store"
)

// ErrMalformed is wrapped by every Parse failure.
var ErrMalformed = errors.New("malformed statsd line")

var knownTypes = map[string]bool{
	"c": true, "g": true, "ms": true, "h": true, "d": true, "s": true,
}

// Parse decodes one line of the form name:value|type[|@rate][|#tags].
// Unknown trailing sections are ignored.
func Parse(line string) (store.Sample, error) {
	name, rest, ok := strings.Cut(line, ":")
	if !ok || name == "" {
		return store.Sample{}, fmt.Errorf("%w: missing name in %q", ErrMalformed, line)
	}

	sections := strings.Split(rest, "|")
	if len(sections) < 2 || sections[0] == "" {
		return store.Sample{}, fmt.Errorf("%w: missing value or type in %q", ErrMalformed, line)
	}

	smp := store.Sample{Name: name, Value: sections[0], Type: sections[1], Rate: 1}
	if !knownTypes[smp.Type] {
		return store.Sample{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, smp.Type)
	}
	if smp.Type != "s" {
		if _, err := strconv.ParseFloat(smp.Value, 64); err != nil {
			return store.Sample{}, fmt.Errorf("%w: value %q is not numeric", ErrMalformed, smp.Value)
		}
	}

	for _, sec := range sections[2:] {
		switch {
		case strings.HasPrefix(sec, "@"):
			rate, err := strconv.ParseFloat(sec[1:], 64)
			if err != nil || rate <= 0 || rate > 1 {
				return store.Sample{}, fmt.Errorf("%w: bad sample rate %q", ErrMalformed, sec)
			}
			smp.Rate = rate
		case strings.HasPrefix(sec, "#"):
			for _, tag := range strings.Split(sec[1:], ",") {
				if tag != "" {
					smp.Tags = append(smp.Tags, tag)
				}
			}
		}
	}
	return smp, nil
}
