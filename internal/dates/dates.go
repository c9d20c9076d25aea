// Package dates turns spreadsheet cells into calendar days.
//
// Comparisons in this module are made on "YYYY-MM-DD" keys computed in the
// club's time zone, never on raw instants, so a registration made at 23:30
// local time and one stored as a UTC timestamp still land on the same day.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layout is the calendar day key format.
const Layout = "2006-01-02"

const finnishLayout = "2.1.2006"

// Parse reads a cell as an instant. Values without a zone are read in loc.
// Empty, numeric-only short values and anything dateparse rejects report false.
func Parse(v interface{}, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x, true
	case string:
		return parseString(x, loc)
	default:
		return parseString(fmt.Sprint(x), loc)
	}
}

func parseString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	// shortest meaningful form is d.m.yyyy
	if len(s) < 8 {
		return time.Time{}, false
	}
	if t, err := time.ParseInLocation(Layout, s, loc); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(finnishLayout, s, loc); err == nil {
		return t, true
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Day formats t as a calendar day key in loc.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(Layout)
}

// ParseDay parses a cell and returns its calendar day key in loc.
func ParseDay(v interface{}, loc *time.Location) (string, bool) {
	t, ok := Parse(v, loc)
	if !ok {
		return "", false
	}
	return Day(t, loc), true
}

// SameDay reports whether a and b fall on the same calendar day in loc.
// A zero time never matches.
func SameDay(a, b time.Time, loc *time.Location) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return Day(a, loc) == Day(b, loc)
}

// Within reports whether day lies in [start, end]. All three are day keys,
// which order correctly as strings.
func Within(day, start, end string) bool {
	return start <= day && day <= end
}

// AddDays shifts a day key. Invalid keys are returned unchanged.
func AddDays(day string, n int) string {
	t, err := time.Parse(Layout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(Layout)
}
