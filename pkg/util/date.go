package util

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire form of a trading day.
const DateLayout = "2006-01-02"

// dateLayouts are the day formats seen in exported price files.
// US month-first is tried last among the slash forms.
var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"01/02/2006",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

// ParseDate reads a trading day in any of dateLayouts or as unix seconds.
// Results are in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}
