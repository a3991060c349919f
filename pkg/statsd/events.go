package statsd

import (
	"strconv"
	"strings"
	"time"
)

// EventPriority is the p: field of an event.
type EventPriority string

const (
	PriorityNormal EventPriority = "normal"
	PriorityLow    EventPriority = "low"
)

// EventAlertType is the t: field of an event.
type EventAlertType string

const (
	AlertError   EventAlertType = "error"
	AlertWarning EventAlertType = "warning"
	AlertInfo    EventAlertType = "info"
	AlertSuccess EventAlertType = "success"
)

// Event is a DogStatsD event. Zero-valued optional fields are left out of
// the line.
type Event struct {
	Title          string
	Text           string
	Timestamp      time.Time
	Hostname       string
	AggregationKey string
	Priority       EventPriority
	AlertType      EventAlertType
}

// ServiceCheckStatus is the numeric status of a service check.
type ServiceCheckStatus int

const (
	StatusOK ServiceCheckStatus = iota
	StatusWarning
	StatusCritical
	StatusUnknown
)

// ServiceCheck is a DogStatsD service check. The name is sent without the
// client prefix.
type ServiceCheck struct {
	Name      string
	Status    ServiceCheckStatus
	Message   string
	Hostname  string
	Timestamp time.Time
	Tags      []string
}

// Event records e. The title is prefixed like a metric name.
func (c *Client) Event(e Event, tags ...string) {
	c.Submit(formatEvent(c.prefix, e, c.constantTags, tags))
}

// ServiceCheck records sc. Constant tags precede sc.Tags.
func (c *Client) ServiceCheck(sc ServiceCheck) {
	c.Submit(formatServiceCheck(sc, c.constantTags))
}

// formatEvent builds _e{title_len,text_len}:title|text|d:|h:|k:|p:|t:|#tags.
// Lengths are byte lengths of the prefixed title and the escaped text.
func formatEvent(prefix string, e Event, constant, tags []string) string {
	var title strings.Builder
	writePrefixed(&title, prefix, e.Title)
	text := escapeNewlines(e.Text)

	var b strings.Builder
	b.WriteString("_e{")
	b.WriteString(strconv.Itoa(title.Len()))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(len(text)))
	b.WriteString("}:")
	b.WriteString(title.String())
	b.WriteByte('|')
	b.WriteString(text)

	if !e.Timestamp.IsZero() {
		b.WriteString("|d:")
		b.WriteString(strconv.FormatInt(e.Timestamp.Unix(), 10))
	}
	writeField(&b, "|h:", e.Hostname)
	writeField(&b, "|k:", e.AggregationKey)
	writeField(&b, "|p:", string(e.Priority))
	writeField(&b, "|t:", string(e.AlertType))
	writeTags(&b, constant, tags)
	return b.String()
}

// formatServiceCheck builds _sc|name|status|d:|h:|#tags|m:message.
func formatServiceCheck(sc ServiceCheck, constant []string) string {
	var b strings.Builder
	b.WriteString("_sc|")
	b.WriteString(sc.Name)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(sc.Status)))

	if !sc.Timestamp.IsZero() {
		b.WriteString("|d:")
		b.WriteString(strconv.FormatInt(sc.Timestamp.Unix(), 10))
	}
	writeField(&b, "|h:", sc.Hostname)
	writeTags(&b, constant, sc.Tags)
	writeField(&b, "|m:", escapeCheckMessage(sc.Message))
	return b.String()
}

func writeField(b *strings.Builder, key, value string) {
	if value != "" {
		b.WriteString(key)
		b.WriteString(value)
	}
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

// escapeCheckMessage also escapes "m:" so the message cannot be mistaken
// for the start of another field.
func escapeCheckMessage(s string) string {
	return strings.ReplaceAll(escapeNewlines(s), "m:", `m\:`)
}
