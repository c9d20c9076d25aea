package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"club-registration/internal/loading"
	"club-registration/internal/metrics"
	"club-registration/internal/models"
)

var ErrInvalidCandidate = errors.New("invalid registration")

type Outcome string

const (
	OutcomeCreated           Outcome = "created"
	OutcomeAlreadyRegistered Outcome = "already_registered"
	OutcomeFailed            Outcome = "failed"
)

// Message is the text shown to the person who submitted.
func (o Outcome) Message() string {
	switch o {
	case OutcomeCreated:
		return "Rekisteröinti onnistui!"
	case OutcomeAlreadyRegistered:
		return "Rekisteröinti on jo olemassa."
	default:
		return "Rekisteröinti epäonnistui. Yritä uudelleen."
	}
}

type Result struct {
	Outcome Outcome
	// ID of the new record when Outcome is OutcomeCreated.
	ID int64
	// Existing is the matching record when Outcome is OutcomeAlreadyRegistered.
	Existing models.Record
}

// Store is the part of the api client submissions need.
type Store interface {
	Registrations(ctx context.Context, role string, force bool) ([]models.Row, error)
	AddRegistration(ctx context.Context, role string, c models.Candidate) (int64, error)
}

type Config struct {
	Location *time.Location
	Loading  *loading.Tracker
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Service struct {
	store Store
	cfg   Config
}

func NewService(store Store, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{store: store, cfg: cfg}
}

// Normalize trims the candidate and checks the required fields. Coaches
// have no age group.
func Normalize(role string, c models.Candidate) (models.Candidate, error) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.AgeGroup = strings.TrimSpace(c.AgeGroup)
	c.SessionName = strings.TrimSpace(c.SessionName)
	if role == models.RoleCoach {
		c.AgeGroup = ""
	}
	var missing []string
	if c.FirstName == "" {
		missing = append(missing, "firstName")
	}
	if c.LastName == "" {
		missing = append(missing, "lastName")
	}
	if c.SessionName == "" {
		missing = append(missing, "sessionName")
	}
	if c.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return c, fmt.Errorf("%w: missing %s", ErrInvalidCandidate, strings.Join(missing, ", "))
	}
	if c.StartTime != nil && c.EndTime != nil && c.EndTime.Before(*c.StartTime) {
		return c, fmt.Errorf("%w: end time before start time", ErrInvalidCandidate)
	}
	return c, nil
}

// List returns the decoded registrations of role.
func (s *Service) List(ctx context.Context, role string, force bool) ([]models.Record, error) {
	rows, err := s.store.Registrations(ctx, role, force)
	if err != nil {
		return nil, err
	}
	return DecodeRecords(role, rows, s.cfg.Location), nil
}

// Submit registers c for role unless an equivalent registration exists.
// The latest registrations are read, bypassing any cache, and checked before
// the create call is made. The two calls never overlap. This narrows but does
// not close the window in which two submissions both pass the check.
//
// A non-nil error always comes with OutcomeFailed. Nothing is retried.
func (s *Service) Submit(ctx context.Context, role string, c models.Candidate) (Result, error) {
	if role != models.RoleTrainee && role != models.RoleCoach {
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%w: unknown role %q", ErrInvalidCandidate, role)
	}
	c, err := Normalize(role, c)
	if err != nil {
		s.cfg.Metrics.Registration(role, string(OutcomeFailed))
		return Result{Outcome: OutcomeFailed}, err
	}

	var res Result
	err = s.cfg.Loading.Track(func() error {
		existing, err := s.List(ctx, role, true)
		if err != nil {
			return fmt.Errorf("read registrations: %w", err)
		}
		if dup, ok := FindDuplicate(c, existing, s.cfg.Location); ok {
			res = Result{Outcome: OutcomeAlreadyRegistered, Existing: dup}
			return nil
		}
		id, err := s.store.AddRegistration(ctx, role, c)
		if err != nil {
			return fmt.Errorf("create registration: %w", err)
		}
		res = Result{Outcome: OutcomeCreated, ID: id}
		return nil
	})
	if err != nil {
		s.cfg.Logger.Error("registration failed", "role", role, "session", c.SessionName, "error", err)
		s.cfg.Metrics.Registration(role, string(OutcomeFailed))
		return Result{Outcome: OutcomeFailed}, err
	}
	s.cfg.Logger.Info("registration submitted",
		"role", role,
		"session", c.SessionName,
		"outcome", res.Outcome,
		"id", res.ID,
	)
	s.cfg.Metrics.Registration(role, string(res.Outcome))
	return res, nil
}
