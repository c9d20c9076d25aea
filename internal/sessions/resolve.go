// Package sessions derives the session labels a user may register into today.
package sessions

import (
	"fmt"
	"time"

	"club-registration/internal/dates"
	"club-registration/internal/models"
)

// campLabel is the option synthesised for slot k of a camp day.
func campLabel(camp string, k int) string {
	return fmt.Sprintf("%s SESSIO %d", camp, k)
}

// CampLabels returns the labels of camp slots held on today. Only the first
// date/count pair that falls on today is honoured per camp; unusable pairs
// and rows without a name are skipped.
func CampLabels(rows []models.Row, today string, loc *time.Location) []string {
	labels := []string{}
	for _, r := range rows {
		name := r.Str(2)
		if name == "" {
			continue
		}
		for i := 4; i+1 < len(r); i += 2 {
			day, ok := dates.ParseDay(r[i], loc)
			if !ok {
				continue
			}
			n, ok := r.Count(i + 1)
			if !ok {
				continue
			}
			if day != today {
				continue
			}
			for k := 1; k <= n; k++ {
				labels = append(labels, campLabel(name, k))
			}
			break
		}
	}
	return labels
}

// CourseLabels returns the names of courses whose [start, end] range
// includes today. Rows with a missing or unparseable bound are skipped.
func CourseLabels(rows []models.Row, today string, loc *time.Location) []string {
	labels := []string{}
	for _, r := range rows {
		c, ok := models.DecodeCourse(r, loc)
		if !ok {
			continue
		}
		if dates.Within(today, c.StartDate, c.EndDate) {
			labels = append(labels, c.Name)
		}
	}
	return labels
}

// ResolveOptions lists today's options: camp slots when any camp runs today,
// otherwise active courses, followed in both cases by the fallback options.
// today is a YYYY-MM-DD key in loc.
func ResolveOptions(campRows, courseRows []models.Row, today string, loc *time.Location, fallback []string) []string {
	labels := CampLabels(campRows, today, loc)
	if len(labels) == 0 {
		labels = CourseLabels(courseRows, today, loc)
	}
	out := make([]string, 0, len(labels)+len(fallback))
	out = append(out, labels...)
	return append(out, fallback...)
}
