package events

import (
	"strings"
	"time"
)

// MetadataLayout renders commit timestamps with an explicit numeric offset.
const MetadataLayout = "2006-01-02T15:04:05-07:00"

// dateLayouts are tried in order. Layouts without a zone yield UTC.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05.999999999",
	"Mon Jan _2 15:04:05 2006 -0700",
	time.RubyDate,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	"2006-01-02",
}

// ParseDate parses the date formats found in commit payloads. It reports
// false instead of an error when none of the known layouts match.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}

// FormatDate renders t with MetadataLayout.
func FormatDate(t time.Time) string {
	return t.Format(MetadataLayout)
}
