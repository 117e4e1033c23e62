package models

import (
	"testing"
	"time"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-48 * time.Hour), "2d"},
		{now.Add(-60 * 24 * time.Hour), "2026-07-02"},
		{time.Time{}, ""},
	}
	for _, c := range cases {
		if got := TimeAgo(c.at, now); got != c.want {
			t.Errorf("TimeAgo(%v) = %q, want %q", c.at, got, c.want)
		}
	}
}

func TestParseRelative(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"just now", now},
		{"5m", now.Add(-5 * time.Minute)},
		{"3 hours ago", now.Add(-3 * time.Hour)},
		{"2d", now.Add(-48 * time.Hour)},
		{"1 week ago", now.Add(-7 * 24 * time.Hour)},
		{"", time.Time{}},
		{"nonsense", time.Time{}},
	}
	for _, c := range cases {
		if got := ParseRelative(c.in, now); !got.Equal(c.want) {
			t.Errorf("ParseRelative(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestWithinLast(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if !WithinLast(now.Add(-23*time.Hour), now, 24*time.Hour) {
		t.Error("23h old item should be within 24h window")
	}
	if WithinLast(now.Add(-25*time.Hour), now, 24*time.Hour) {
		t.Error("25h old item should be outside 24h window")
	}
	if WithinLast(time.Time{}, now, 24*time.Hour) {
		t.Error("zero time is never within a window")
	}
}

func TestSameListing(t *testing.T) {
	a := []Thread{{ID: "1", Title: "x"}, {ID: "2", Title: "y"}}
	b := []Thread{{ID: "1", Title: "x"}, {ID: "2", Title: "y"}}
	if !SameListing(a, b) {
		t.Error("identical listings should compare equal")
	}
	b[1].Title = "z"
	if SameListing(a, b) {
		t.Error("title change should be detected")
	}
	if SameListing(a, a[:1]) {
		t.Error("length change should be detected")
	}
}
