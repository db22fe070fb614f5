package filter

import (
	"strings"
	"time"
)

// deadlineLayouts are tried in order. Layouts without a zone are read as UTC.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"01/02/2006 15:04",
	"1/2/2006",
	"1/2/2006 15:04",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDeadline parses a response deadline in any of the formats the
// webhooks emit. ok is false for anything it cannot read.
func ParseDeadline(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
