package dates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club-registration/internal/dates"
)

func helsinki(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	return loc
}

func TestParseDay(t *testing.T) {
	loc := helsinki(t)

	cases := []struct {
		name string
		in   interface{}
		want string
		ok   bool
	}{
		{"plain day", "2026-02-17", "2026-02-17", true},
		{"padded", "  2026-02-17 ", "2026-02-17", true},
		{"finnish", "17.2.2026", "2026-02-17", true},
		// 23:30 UTC on the 16th is already the 17th in Helsinki
		{"utc timestamp", "2026-02-16T23:30:00.000Z", "2026-02-17", true},
		{"offset timestamp", "2026-02-17T09:00:00+02:00", "2026-02-17", true},
		{"time value", time.Date(2026, 2, 17, 8, 0, 0, 0, loc), "2026-02-17", true},
		{"empty", "", "", false},
		{"nil", nil, "", false},
		{"short number", 3.0, "", false},
		{"garbage", "not a date at all", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := dates.ParseDay(tc.in, loc)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSameDay(t *testing.T) {
	loc := helsinki(t)
	morning := time.Date(2026, 2, 17, 9, 0, 0, 0, loc)
	evening := time.Date(2026, 2, 17, 18, 0, 0, 0, loc)
	nextDay := time.Date(2026, 2, 18, 0, 5, 0, 0, loc)

	assert.True(t, dates.SameDay(morning, evening, loc))
	assert.False(t, dates.SameDay(evening, nextDay, loc))
	assert.False(t, dates.SameDay(time.Time{}, evening, loc))
}

func TestWithinAndAddDays(t *testing.T) {
	assert.True(t, dates.Within("2026-02-01", "2026-02-01", "2026-02-28"))
	assert.True(t, dates.Within("2026-02-28", "2026-02-01", "2026-02-28"))
	assert.False(t, dates.Within("2026-03-01", "2026-02-01", "2026-02-28"))

	assert.Equal(t, "2026-03-01", dates.AddDays("2026-02-28", 1))
	assert.Equal(t, "bogus", dates.AddDays("bogus", 1))
}
