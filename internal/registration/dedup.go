// Package registration checks and submits trainee and coach registrations.
package registration

import (
	"time"

	"club-registration/internal/dates"
	"club-registration/internal/models"
	"club-registration/internal/util"
)

// FindDuplicate returns the first record registering the same person to the
// same session on the same calendar day (in loc) as c. Names and session are
// compared exactly; age group only when both sides carry one. Records with
// no usable date never match.
func FindDuplicate(c models.Candidate, existing []models.Record, loc *time.Location) (models.Record, bool) {
	for _, r := range existing {
		if r.FirstName != c.FirstName || r.LastName != c.LastName {
			continue
		}
		if r.SessionName != c.SessionName {
			continue
		}
		if r.AgeGroup != "" && c.AgeGroup != "" && r.AgeGroup != c.AgeGroup {
			continue
		}
		if !dates.SameDay(r.Date, c.Date, loc) {
			continue
		}
		return r, true
	}
	return models.Record{}, false
}

// DecodeTrainee reads [id, firstName, lastName, ageGroup, sessionName, date].
func DecodeTrainee(r models.Row, loc *time.Location) models.Record {
	rec := models.Record{
		ID:          r.Str(0),
		FirstName:   r.Str(1),
		LastName:    r.Str(2),
		AgeGroup:    r.Str(3),
		SessionName: r.Str(4),
	}
	if t, ok := dates.Parse(r.Cell(5), loc); ok {
		rec.Date = t
	}
	return rec
}

// DecodeCoach reads [id, firstName, lastName, sessionName, date, realized?].
// The second result is false for sessions marked as not realized.
func DecodeCoach(r models.Row, loc *time.Location) (models.Record, bool) {
	rec := models.Record{
		ID:          r.Str(0),
		FirstName:   r.Str(1),
		LastName:    r.Str(2),
		SessionName: r.Str(3),
	}
	if t, ok := dates.Parse(r.Cell(4), loc); ok {
		rec.Date = t
	}
	if len(r) > 5 && !realized(r.Cell(5)) {
		return rec, false
	}
	return rec, true
}

// realized treats a missing or empty flag as true.
func realized(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case bool:
		return x
	case float64:
		return x == 1
	case string:
		return x == "" || util.NormalizeBool(x)
	}
	return false
}

// DecodeRecords decodes the registration rows of role.
func DecodeRecords(role string, rows []models.Row, loc *time.Location) []models.Record {
	out := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		switch role {
		case models.RoleCoach:
			if rec, ok := DecodeCoach(r, loc); ok {
				out = append(out, rec)
			}
		default:
			out = append(out, DecodeTrainee(r, loc))
		}
	}
	return out
}
