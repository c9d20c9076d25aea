// Package coaches handles coach PIN accounts and the signed session tokens
// handed to coaches and administrators.
package coaches

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"club-registration/internal/backend"
	"club-registration/internal/models"
)

var (
	ErrCoachExists   = errors.New("coach already registered")
	ErrPinTaken      = errors.New("pin already in use")
	ErrInvalidPin    = errors.New("pin must be 4-6 digits")
	ErrLoginFailed   = errors.New("login failed")
	ErrRejected      = errors.New("rejected by api")
	ErrMissingFields = errors.New("first and last name are required")
)

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

func ValidPin(pin string) bool { return pinPattern.MatchString(pin) }

// DisplayName is the alias when set, otherwise "first last".
func DisplayName(c models.Coach) string {
	if a := strings.TrimSpace(c.Alias); a != "" {
		return a
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Store is the part of the api client the coach accounts need.
type Store interface {
	Mutate(ctx context.Context, role, operation string, data interface{}) (backend.Response, error)
	Settings(ctx context.Context, force bool) (models.Settings, error)
	CoachLogins(ctx context.Context) ([]models.Row, error)
}

// Session is a signed-in coach or administrator.
type Session struct {
	Coach     *models.Coach `json:"coach,omitempty"`
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

type Service struct {
	store  Store
	tokens *Issuer
	log    *slog.Logger
}

func NewService(store Store, tokens *Issuer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, tokens: tokens, log: logger}
}

func (s *Service) Tokens() *Issuer { return s.tokens }

// reply is what the coach_login operations answer with.
type reply struct {
	Result  string      `json:"result"`
	Message string      `json:"message"`
	ID      interface{} `json:"id"`
	Coach   *struct {
		ID        interface{} `json:"id"`
		FirstName string      `json:"firstName"`
		LastName  string      `json:"lastName"`
		Alias     string      `json:"alias"`
	} `json:"coach"`
}

func (s *Service) call(ctx context.Context, op string, data interface{}) (reply, backend.Response, error) {
	resp, err := s.store.Mutate(ctx, models.RoleCoachLogin, op, data)
	if err != nil {
		return reply{}, resp, err
	}
	var r reply
	// Some deployments answer with a bare id; that still confirms the write.
	_ = resp.Decode(&r)
	return r, resp, nil
}

// accepted trusts result "success" or an id field on an object answer. Only a
// bare id answer is read as a number, so error objects carrying a numeric
// code are not mistaken for an id.
func accepted(r reply, resp backend.Response) bool {
	switch r.Result {
	case "success":
		return true
	case "error":
		return false
	}
	if body := bytes.TrimSpace(resp.Body); len(body) > 0 && body[0] == '{' {
		return hasID(r.ID)
	}
	return resp.ID() > 0
}

func hasID(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case float64:
		return x > 0
	}
	return true
}

// idString prints numeric ids without exponent or fraction.
func idString(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// Register creates a PIN account and signs the coach in.
func (s *Service) Register(ctx context.Context, first, last, pin, alias string) (Session, error) {
	coach := models.Coach{
		FirstName: strings.TrimSpace(first),
		LastName:  strings.TrimSpace(last),
		Alias:     strings.TrimSpace(alias),
	}
	if coach.FirstName == "" || coach.LastName == "" {
		return Session{}, ErrMissingFields
	}
	if !ValidPin(pin) {
		return Session{}, ErrInvalidPin
	}
	r, resp, err := s.call(ctx, models.OpRegister, map[string]string{
		"firstName": coach.FirstName,
		"lastName":  coach.LastName,
		"pin":       pin,
		"alias":     coach.Alias,
	})
	if err != nil {
		return Session{}, fmt.Errorf("register coach: %w", err)
	}
	switch id := r.ID.(type) {
	case string:
		switch id {
		case "exists":
			return Session{}, ErrCoachExists
		case "pin_taken":
			return Session{}, ErrPinTaken
		}
	}
	if !accepted(r, resp) {
		return Session{}, fmt.Errorf("register coach: %w", ErrRejected)
	}
	if hasID(r.ID) {
		coach.ID = idString(r.ID)
	} else if n := resp.ID(); n > 0 {
		coach.ID = strconv.FormatInt(n, 10)
	}
	s.log.Info("coach registered", "coach", coach.ID)
	return s.session(RoleCoach, &coach)
}

// Login verifies a PIN. A rejected PIN yields ErrLoginFailed carrying the
// api's message.
func (s *Service) Login(ctx context.Context, pin string) (Session, error) {
	if !ValidPin(pin) {
		return Session{}, ErrInvalidPin
	}
	r, _, err := s.call(ctx, models.OpVerify, map[string]string{"pin": pin})
	if err != nil {
		return Session{}, fmt.Errorf("verify pin: %w", err)
	}
	if r.Result != "success" || r.Coach == nil {
		msg := r.Message
		if msg == "" {
			msg = "verification_failed"
		}
		return Session{}, fmt.Errorf("%w: %s", ErrLoginFailed, msg)
	}
	coach := models.Coach{
		FirstName: strings.TrimSpace(r.Coach.FirstName),
		LastName:  strings.TrimSpace(r.Coach.LastName),
		Alias:     strings.TrimSpace(r.Coach.Alias),
	}
	if hasID(r.Coach.ID) {
		coach.ID = idString(r.Coach.ID)
	}
	return s.session(RoleCoach, &coach)
}

// UpdateAlias changes the alias and returns a token carrying it.
func (s *Service) UpdateAlias(ctx context.Context, coach models.Coach, alias string) (Session, error) {
	coach.Alias = strings.TrimSpace(alias)
	if err := s.update(ctx, map[string]interface{}{"id": coach.ID, "alias": coach.Alias}); err != nil {
		return Session{}, fmt.Errorf("update alias: %w", err)
	}
	return s.session(RoleCoach, &coach)
}

func (s *Service) UpdatePin(ctx context.Context, coachID, pin string) error {
	if !ValidPin(pin) {
		return ErrInvalidPin
	}
	if err := s.update(ctx, map[string]interface{}{"id": coachID, "pin": pin}); err != nil {
		return fmt.Errorf("update pin: %w", err)
	}
	return nil
}

func (s *Service) update(ctx context.Context, data map[string]interface{}) error {
	r, resp, err := s.call(ctx, models.OpUpdate, data)
	if err != nil {
		return err
	}
	if !accepted(r, resp) {
		return ErrRejected
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, coachID string) error {
	r, resp, err := s.call(ctx, models.OpDelete, map[string]interface{}{"id": coachID})
	if err != nil {
		return fmt.Errorf("delete coach login: %w", err)
	}
	if !accepted(r, resp) {
		return fmt.Errorf("delete coach login: %w", ErrRejected)
	}
	return nil
}

// DecodeLogin reads a coach_logins row [id, firstName, lastName, alias, ...].
// Further columns, the PIN among them, are never read.
func DecodeLogin(r models.Row) (models.Coach, bool) {
	c := models.Coach{ID: r.Str(0), FirstName: r.Str(1), LastName: r.Str(2), Alias: r.Str(3)}
	if c.ID == "" || c.FirstName == "" {
		return c, false
	}
	return c, true
}

// List returns the registered coach accounts.
func (s *Service) List(ctx context.Context) ([]models.Coach, error) {
	rows, err := s.store.CoachLogins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coaches: %w", err)
	}
	out := []models.Coach{}
	for _, r := range rows {
		if c, ok := DecodeLogin(r); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// AdminLogin checks password against the admin row of the settings sheet.
// An empty configured password never matches.
func (s *Service) AdminLogin(ctx context.Context, password string) (Session, error) {
	settings, err := s.store.Settings(ctx, true)
	if err != nil {
		return Session{}, fmt.Errorf("admin login: %w", err)
	}
	want := settings.AdminPassword
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 {
		s.log.Warn("admin login rejected")
		return Session{}, ErrLoginFailed
	}
	return s.session(RoleAdmin, nil)
}

func (s *Service) session(role string, coach *models.Coach) (Session, error) {
	var c models.Coach
	if coach != nil {
		c = *coach
	}
	token, exp, err := s.tokens.Issue(role, c)
	if err != nil {
		return Session{}, err
	}
	return Session{Coach: coach, Token: token, ExpiresAt: exp}, nil
}
