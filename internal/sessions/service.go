package sessions

import (
	"context"
	"log/slog"
	"time"

	"club-registration/internal/dates"
	"club-registration/internal/loading"
	"club-registration/internal/metrics"
	"club-registration/internal/models"
)

// Source is the part of the api client the option service reads from.
type Source interface {
	Camps(ctx context.Context, force bool) ([]models.Row, error)
	Courses(ctx context.Context, force bool) ([]models.Row, error)
}

type Config struct {
	Location *time.Location
	// Fallback options are always offered, after any camp or course labels.
	Fallback []string
	// CoachOptions are the groups a coach can register to lead.
	CoachOptions []string
	Now          func() time.Time
	Loading      *loading.Tracker
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

type Service struct {
	src Source
	cfg Config
}

func NewService(src Source, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{src: src, cfg: cfg}
}

// Today is the current calendar day in the club's zone.
func (s *Service) Today() string {
	return dates.Day(s.cfg.Now(), s.cfg.Location)
}

func (s *Service) Location() *time.Location { return s.cfg.Location }

func (s *Service) Fallback() []string {
	return append([]string{}, s.cfg.Fallback...)
}

func (s *Service) CoachOptions() []string {
	return append([]string{}, s.cfg.CoachOptions...)
}

// TodayOptions never fails: when the rows cannot be read the fixed fallback
// set is returned instead.
func (s *Service) TodayOptions(ctx context.Context) []string {
	return s.OptionsFor(ctx, s.Today())
}

// OptionsFor resolves the options for day (YYYY-MM-DD). Courses are only
// fetched when no camp runs that day.
func (s *Service) OptionsFor(ctx context.Context, day string) []string {
	var out []string
	_ = s.cfg.Loading.Track(func() error {
		camps, err := s.src.Camps(ctx, false)
		if err != nil {
			out = s.fallback("camps", err)
			return nil
		}
		if labels := CampLabels(camps, day, s.cfg.Location); len(labels) > 0 {
			out = append(labels, s.cfg.Fallback...)
			return nil
		}
		courses, err := s.src.Courses(ctx, false)
		if err != nil {
			out = s.fallback("sessions", err)
			return nil
		}
		out = ResolveOptions(nil, courses, day, s.cfg.Location, s.cfg.Fallback)
		return nil
	})
	return out
}

func (s *Service) fallback(resource string, err error) []string {
	s.cfg.Logger.Warn("session options fell back to defaults", "resource", resource, "error", err)
	s.cfg.Metrics.OptionFallback()
	return s.Fallback()
}
