package coaches

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"club-registration/internal/models"
)

// Token roles.
const (
	RoleCoach = "coach"
	RoleAdmin = "admin"
)

const (
	SessionTTL  = 24 * time.Hour
	tokenIssuer = "club-registration"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"rol"`
	FirstName string `json:"fn,omitempty"`
	LastName  string `json:"ln,omitempty"`
	Alias     string `json:"ali,omitempty"`
}

func (c Claims) WithCoach(coach models.Coach) Claims {
	c.Subject = coach.ID
	c.FirstName = coach.FirstName
	c.LastName = coach.LastName
	c.Alias = coach.Alias
	return c
}

func (c Claims) WithWindow(from time.Time, ttl time.Duration) Claims {
	c.IssuedAt = jwt.NewNumericDate(from)
	c.ExpiresAt = jwt.NewNumericDate(from.Add(ttl))
	return c
}

// Coach returns the coach the token was issued to. Admin tokens carry none.
func (c Claims) Coach() models.Coach {
	return models.Coach{
		ID:        c.Subject,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Alias:     c.Alias,
	}
}

// Issuer signs and checks HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the clock used for issuing and validating tokens.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

func (i *Issuer) Issue(role string, coach models.Coach) (string, time.Time, error) {
	now := i.now()
	claims := Claims{Role: role}.
		WithCoach(coach).
		WithWindow(now, i.ttl)
	claims.Issuer = tokenIssuer
	claims.ID = uuid.NewString()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("[SignedString]: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Parse validates a token, optionally prefixed with "Bearer ", and checks
// that it was issued for role.
func (i *Issuer) Parse(authHeader, role string) (*Claims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authHeader), "Bearer "))
	if raw == "" {
		return nil, fmt.Errorf("%w: no token provided", ErrInvalidToken)
	}
	claims := Claims{}
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if tok == nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Role != role {
		return nil, fmt.Errorf("%w: role %q, want %q", ErrInvalidToken, claims.Role, role)
	}
	if role == RoleCoach && claims.Subject == "" {
		return nil, fmt.Errorf("%w: coach id is required", ErrInvalidToken)
	}
	return &claims, nil
}
