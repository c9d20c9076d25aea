package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"club-registration/internal/dates"
)

// Str returns cell idx as a trimmed string, "" when missing.
func (r Row) Str(idx int) string {
	if idx < 0 || idx >= len(r) || r[idx] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(r[idx]))
}

// Cell returns the raw cell value, nil when missing.
func (r Row) Cell(idx int) interface{} {
	if idx < 0 || idx >= len(r) {
		return nil
	}
	return r[idx]
}

// Count reads cell idx as a positive whole number. Fractions are floored,
// so "2.5" counts as 2; NaN, infinities, text and values below 1 report false.
func (r Row) Count(idx int) (int, bool) {
	var f float64
	switch v := r.Cell(idx).(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	n := int(math.Floor(f))
	if n < 1 {
		return 0, false
	}
	return n, true
}

// Camp rows: [id, kind, name, coachName, date_1, count_1, date_2, count_2, ...].
const campPairsStart = 4

// DecodeCamp reads a camp row. Day pairs with an unusable date or count are
// dropped; rows without a name report false.
func DecodeCamp(r Row, loc *time.Location) (Camp, bool) {
	c := Camp{
		ID:      r.Str(0),
		Kind:    r.Str(1),
		Name:    r.Str(2),
		Teacher: r.Str(3),
	}
	if c.Name == "" {
		return Camp{}, false
	}
	for i := campPairsStart; i+1 < len(r); i += 2 {
		day, ok := dates.ParseDay(r[i], loc)
		if !ok {
			continue
		}
		n, ok := r.Count(i + 1)
		if !ok {
			continue
		}
		c.Days = append(c.Days, CampDay{Date: day, Sessions: n})
	}
	return c, true
}

// EncodeCamp is the inverse of DecodeCamp.
func EncodeCamp(c Camp) Row {
	kind := c.Kind
	if kind == "" {
		kind = RoleCamp
	}
	row := Row{c.ID, kind, c.Name, c.Teacher}
	for _, d := range c.Days {
		row = append(row, d.Date, d.Sessions)
	}
	return row
}

// DecodeCourse reads a course row [id, kind, name, startDate, endDate].
// Both dates must parse.
func DecodeCourse(r Row, loc *time.Location) (Course, bool) {
	start, ok := dates.ParseDay(r.Cell(3), loc)
	if !ok {
		return Course{}, false
	}
	end, ok := dates.ParseDay(r.Cell(4), loc)
	if !ok {
		return Course{}, false
	}
	c := Course{
		ID:        r.Str(0),
		Kind:      r.Str(1),
		Name:      r.Str(2),
		StartDate: start,
		EndDate:   end,
	}
	if c.Name == "" {
		return Course{}, false
	}
	return c, true
}

func EncodeCourse(c Course) Row {
	return Row{c.ID, c.Kind, c.Name, c.StartDate, c.EndDate}
}

// DecodeSettings reads [["admin", pw], ["coach", pw]]; rows are positional.
func DecodeSettings(rows []Row) Settings {
	var s Settings
	if len(rows) > 0 && len(rows[0]) >= 2 {
		s.AdminPassword = rows[0].Str(1)
	}
	if len(rows) > 1 && len(rows[1]) >= 2 {
		s.CoachPassword = rows[1].Str(1)
	}
	return s
}

// DecodeExperience maps "First Last" to years of coaching experience.
//
// A sheet whose first row is a year header ([Nimi, 2025, 2026, ...]) is read
// from the column of year, or failing that the latest earlier year. Without
// such a header the rows are [name, years] or [first, last, years].
func DecodeExperience(rows []Row, year int) map[string]float64 {
	out := map[string]float64{}
	if col := yearColumn(rows, year); col > 0 {
		for _, r := range rows[1:] {
			name := r.Str(0)
			if name == "" {
				continue
			}
			years, err := strconv.ParseFloat(r.Str(col), 64)
			if err != nil {
				years = 0
			}
			out[name] = years
		}
		return out
	}
	for _, r := range rows {
		var name string
		var raw string
		switch {
		case len(r) >= 3:
			name = strings.TrimSpace(r.Str(0) + " " + r.Str(1))
			raw = r.Str(2)
		case len(r) == 2:
			name = r.Str(0)
			raw = r.Str(1)
		default:
			continue
		}
		years, err := strconv.ParseFloat(raw, 64)
		if name == "" || err != nil {
			continue
		}
		out[name] = years
	}
	return out
}

// yearColumn returns the header column for year, the rightmost earlier year
// when year is absent, or -1 when rows has no year header.
func yearColumn(rows []Row, year int) int {
	if len(rows) == 0 {
		return -1
	}
	header := rows[0]
	col := -1
	for i := len(header) - 1; i >= 1; i-- {
		y, err := strconv.Atoi(header.Str(i))
		if err != nil || y < 1900 {
			continue
		}
		if y == year {
			return i
		}
		if y < year && col == -1 {
			col = i
		}
	}
	return col
}
