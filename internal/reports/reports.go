// Package reports builds the yearly attendance report: participations per
// session and age group, and coaching hours per coach.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"club-registration/internal/models"
	"club-registration/internal/registration"
)

const DefaultHoursPerSession = 1.5

var DefaultAgeGroups = []string{"18+ vuotias", "alle 18-vuotias"}

type SessionRow struct {
	Session        string `json:"session"`
	Persons        int    `json:"personCount"`
	Participations int    `json:"performanceCount"`
}

type GroupTable struct {
	AgeGroup            string       `json:"ageGroup"`
	Rows                []SessionRow `json:"rows"`
	TotalPersons        int          `json:"totalPersons"`
	TotalParticipations int          `json:"totalParticipations"`
}

type CoachRow struct {
	Name       string   `json:"name"`
	Sessions   []string `json:"sessions"`
	Hours      float64  `json:"hours"`
	Experience float64  `json:"experience"`
}

type Report struct {
	Groups     []GroupTable `json:"groups"`
	Coaches    []CoachRow   `json:"coaches"`
	TotalHours float64      `json:"totalHours"`
}

type Input struct {
	Trainees   []models.Row
	Coaches    []models.Row
	Camps      []models.Row
	Experience map[string]float64
	// AgeGroups lists the tables to build, in order. Trainees in no listed
	// group are left out.
	AgeGroups       []string
	HoursPerSession float64
}

// Build aggregates the registration rows. Camp sessions ("<camp> SESSIO n")
// are counted under the camp name.
func Build(in Input) Report {
	if len(in.AgeGroups) == 0 {
		in.AgeGroups = DefaultAgeGroups
	}
	if in.HoursPerSession <= 0 {
		in.HoursPerSession = DefaultHoursPerSession
	}
	camps := campNames(in.Camps)

	rep := Report{Groups: []GroupTable{}, Coaches: []CoachRow{}}
	for _, group := range in.AgeGroups {
		rep.Groups = append(rep.Groups, traineeTable(in.Trainees, camps, group))
	}
	rep.Coaches = coachRows(in.Coaches, in.Experience, in.HoursPerSession)
	for _, c := range rep.Coaches {
		rep.TotalHours += c.Hours
	}
	return rep
}

func campNames(rows []models.Row) []string {
	var names []string
	for _, r := range rows {
		name := strings.ToUpper(r.Str(2))
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

func sessionKey(session string, camps []string) string {
	upper := strings.ToUpper(strings.TrimSpace(session))
	for _, camp := range camps {
		if strings.HasPrefix(upper, camp) {
			return camp
		}
	}
	return upper
}

// Trainee rows: [id, firstName, lastName, ageGroup, sessionName, date].
func traineeTable(rows []models.Row, camps []string, group string) GroupTable {
	type stats struct {
		persons map[string]struct{}
		total   int
	}
	bySession := map[string]*stats{}
	for _, r := range rows {
		if r.Str(3) != group {
			continue
		}
		key := sessionKey(r.Str(4), camps)
		st, ok := bySession[key]
		if !ok {
			st = &stats{persons: map[string]struct{}{}}
			bySession[key] = st
		}
		st.persons[r.Str(1)+" "+r.Str(2)] = struct{}{}
		st.total++
	}

	t := GroupTable{AgeGroup: group, Rows: []SessionRow{}}
	for session, st := range bySession {
		t.Rows = append(t.Rows, SessionRow{Session: session, Persons: len(st.persons), Participations: st.total})
		t.TotalPersons += len(st.persons)
		t.TotalParticipations += st.total
	}
	slices.SortFunc(t.Rows, func(a, b SessionRow) int { return strings.Compare(a.Session, b.Session) })
	return t
}

// coachRows counts realized coach registrations per "first last".
func coachRows(rows []models.Row, experience map[string]float64, perSession float64) []CoachRow {
	type stats struct {
		sessions map[string]struct{}
		total    int
	}
	byCoach := map[string]*stats{}
	for _, rec := range registration.DecodeRecords(models.RoleCoach, rows, time.UTC) {
		if rec.FirstName == "" || rec.LastName == "" {
			continue
		}
		name := rec.FirstName + " " + rec.LastName
		st, ok := byCoach[name]
		if !ok {
			st = &stats{sessions: map[string]struct{}{}}
			byCoach[name] = st
		}
		if s := strings.ToUpper(rec.SessionName); s != "" {
			st.sessions[s] = struct{}{}
			st.total++
		}
	}

	out := []CoachRow{}
	for name, st := range byCoach {
		sessions := make([]string, 0, len(st.sessions))
		for s := range st.sessions {
			sessions = append(sessions, s)
		}
		slices.Sort(sessions)
		out = append(out, CoachRow{
			Name:       name,
			Sessions:   sessions,
			Hours:      float64(st.total) * perSession,
			Experience: experience[name],
		})
	}
	slices.SortFunc(out, func(a, b CoachRow) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Source is the part of the api client the report reads from.
type Source interface {
	Registrations(ctx context.Context, role string, force bool) ([]models.Row, error)
	Camps(ctx context.Context, force bool) ([]models.Row, error)
	CoachesExperience(ctx context.Context) (map[string]float64, error)
}

// Load fetches the report inputs in parallel and builds the report.
// Registrations are always read fresh.
func Load(ctx context.Context, src Source, ageGroups []string, perSession float64) (Report, error) {
	in := Input{AgeGroups: ageGroups, HoursPerSession: perSession}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in.Trainees, err = src.Registrations(gctx, models.RoleTrainee, true)
		return err
	})
	g.Go(func() (err error) {
		in.Coaches, err = src.Registrations(gctx, models.RoleCoach, true)
		return err
	})
	g.Go(func() (err error) {
		in.Camps, err = src.Camps(gctx, false)
		return err
	})
	g.Go(func() (err error) {
		in.Experience, err = src.CoachesExperience(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("load report: %w", err)
	}
	return Build(in), nil
}

// WriteCSV writes the report as one CSV table per section, separated by an
// empty line.
func WriteCSV(w io.Writer, rep Report) error {
	cw := csv.NewWriter(w)
	for _, g := range rep.Groups {
		cw.Write([]string{g.AgeGroup, "Hlö-määrä", "Suoritemäärä"})
		for _, r := range g.Rows {
			cw.Write([]string{r.Session, strconv.Itoa(r.Persons), strconv.Itoa(r.Participations)})
		}
		cw.Write([]string{"Yhteensä", strconv.Itoa(g.TotalPersons), strconv.Itoa(g.TotalParticipations)})
		cw.Write([]string{})
	}
	cw.Write([]string{"Nimi", "Valmennus/ohjausryhmä", "Koulutuskokemus", "Ohjaustyötä tuntia/vuosi"})
	for _, c := range rep.Coaches {
		exp := "-"
		if c.Experience > 0 {
			exp = formatFloat(c.Experience)
		}
		cw.Write([]string{c.Name, strings.Join(c.Sessions, ", "), exp, formatFloat(c.Hours)})
	}
	cw.Write([]string{"Yhteensä", "", "", formatFloat(rep.TotalHours)})
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
