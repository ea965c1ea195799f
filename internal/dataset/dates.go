package dataset

import (
	"strings"
	"time"
)

// dateLayouts covers the formats observed across real exports. Tried in
// order; first successful parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02.01.2006",
	"2006.01.02",
	"02 01 2006",
	"2006 01 02",
}

// ParseDate parses a date cell, trying each accepted layout. Returns nil for
// blank or unparseable values.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// Timestamps like "2006-01-02 15:04:05" or "2006-01-02T15:04:05" carry
	// the date up front. Layouts with internal spaces still parse: the prefix
	// attempt fails and the full string is tried below.
	if i := strings.IndexAny(s, " T"); i > 0 {
		if t := parseDateOnly(s[:i]); t != nil {
			return t
		}
	}
	return parseDateOnly(s)
}

func parseDateOnly(s string) *time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// DaysUntil returns the whole-day civil difference from now to the deadline.
// Negative once the deadline has passed.
func DaysUntil(deadline, now time.Time) int {
	d := truncateToDay(deadline)
	n := truncateToDay(now)
	return int(d.Sub(n).Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
