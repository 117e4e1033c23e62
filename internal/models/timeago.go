package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeAgo renders a timestamp as a short relative string for display.
// Internally everything operates on time.Time; this runs only at the
// presentation boundary.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < 24*time.Hour:
		return strconv.Itoa(int(d.Hours())) + "h"
	case d < 30*24*time.Hour:
		return strconv.Itoa(int(d.Hours()/24)) + "d"
	default:
		return t.Format("2006-01-02")
	}
}

var relativePattern = regexp.MustCompile(`(\d+)\s*(m|h|d|minute|hour|day|week)`)

// ParseRelative converts a scraped relative-time string back into an
// approximate absolute timestamp. Sources that discard absolute times
// upstream only give us strings like "32m", "3 hours ago" or "2d"; the
// result is good enough for recency sorting and 24h windows.
func ParseRelative(s string, now time.Time) time.Time {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Time{}
	}
	if strings.Contains(s, "just now") || strings.Contains(s, "刚刚") {
		return now
	}
	m := relativePattern.FindStringSubmatch(s)
	if m == nil {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
		return time.Time{}
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "m", "minute":
		return now.Add(-time.Duration(n) * time.Minute)
	case "h", "hour":
		return now.Add(-time.Duration(n) * time.Hour)
	case "d", "day":
		return now.Add(-time.Duration(n) * 24 * time.Hour)
	case "week":
		return now.Add(-time.Duration(n) * 7 * 24 * time.Hour)
	}
	return time.Time{}
}

// WithinLast reports whether t falls inside the trailing window ending at now.
func WithinLast(t, now time.Time, window time.Duration) bool {
	if t.IsZero() {
		return false
	}
	return now.Sub(t) < window
}
