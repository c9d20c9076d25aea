package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	BackendWebApp = "webapp"
	BackendSheets = "sheets"
)

// DefaultAPIBaseURL is where web app deployments live unless API_BASE_URL
// says otherwise.
const DefaultAPIBaseURL = "https://script.google.com/macros/s/"

type Config struct {
	Backend string

	APIBaseURL      string
	APIDeploymentID string
	APITimeout      time.Duration

	SpreadsheetID            string
	GoogleServiceAccountJSON string

	CacheTTL time.Duration
	Timezone string
	Location *time.Location

	HTTPAddr    string
	CORSOrigins []string
	LogLevel    string

	TelegramToken string
	AdminTGIDs    map[int64]bool

	TokenSecret string
	// TokenSecretGenerated is set when TOKEN_SECRET was empty and a random
	// one was made up; tokens then die with the process.
	TokenSecretGenerated bool

	Club Club
}

// Club holds the club specific choices. They come from the optional YAML
// file named by CLUB_CONFIG_FILE; FALLBACK_OPTIONS and COACH_OPTIONS
// override the file.
type Club struct {
	FallbackOptions []string `yaml:"fallback_options"`
	CoachOptions    []string `yaml:"coach_options"`
	AgeGroups       []string `yaml:"age_groups"`
	HoursPerSession float64  `yaml:"hours_per_session"`
}

func DefaultClub() Club {
	return Club{
		FallbackOptions: []string{"VAPAA/SPARRI"},
		CoachOptions:    []string{"JATKO", "KUNTO", "PEKU"},
		AgeGroups:       []string{"18+ vuotias", "alle 18-vuotias"},
		HoursPerSession: 1.5,
	}
}

// LoadClubFile reads path over the defaults. Keys missing from the file keep
// their default.
func LoadClubFile(path string) (Club, error) {
	club := DefaultClub()
	data, err := os.ReadFile(path)
	if err != nil {
		return club, fmt.Errorf("failed to read club file: %w", err)
	}
	if err := yaml.Unmarshal(data, &club); err != nil {
		return club, fmt.Errorf("failed to parse club file: %w", err)
	}
	if club.HoursPerSession <= 0 {
		return club, fmt.Errorf("hours_per_session must be positive")
	}
	return club, nil
}

func FromEnv() (Config, error) {
	var c Config
	c.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("BACKEND")))
	if c.Backend == "" {
		c.Backend = BackendWebApp
	}

	c.APIBaseURL = strings.TrimSpace(os.Getenv("API_BASE_URL"))
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	c.APIDeploymentID = strings.TrimSpace(os.Getenv("API_DEPLOYMENT_ID"))
	c.SpreadsheetID = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))

	var err error
	if c.APITimeout, err = durationEnv("API_TIMEOUT", 30*time.Second); err != nil {
		return c, err
	}
	if c.CacheTTL, err = durationEnv("CACHE_TTL", time.Minute); err != nil {
		return c, err
	}

	c.Timezone = strings.TrimSpace(os.Getenv("CLUB_TIMEZONE"))
	if c.Timezone == "" {
		c.Timezone = "Europe/Helsinki"
	}
	if c.Location, err = time.LoadLocation(c.Timezone); err != nil {
		return c, fmt.Errorf("CLUB_TIMEZONE: %w", err)
	}

	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	c.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))
	c.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	c.TokenSecret = strings.TrimSpace(os.Getenv("TOKEN_SECRET"))
	if c.TokenSecret == "" {
		c.TokenSecret = uuid.NewString()
		c.TokenSecretGenerated = true
	}

	c.Club = DefaultClub()
	if path := strings.TrimSpace(os.Getenv("CLUB_CONFIG_FILE")); path != "" {
		if c.Club, err = LoadClubFile(path); err != nil {
			return c, err
		}
	}
	if v, ok := os.LookupEnv("FALLBACK_OPTIONS"); ok {
		c.Club.FallbackOptions = splitList(v)
	}
	if v, ok := os.LookupEnv("COACH_OPTIONS"); ok {
		c.Club.CoachOptions = splitList(v)
	}

	switch c.Backend {
	case BackendWebApp:
		if c.APIDeploymentID == "" {
			return c, fmt.Errorf("API_DEPLOYMENT_ID is empty")
		}
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return c, fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
		}
		if c.GoogleServiceAccountJSON == "" {
			return c, fmt.Errorf("GOOGLE_SERVICE_ACCOUNT_JSON is empty")
		}
	default:
		return c, fmt.Errorf("BACKEND must be %q or %q, got %q", BackendWebApp, BackendSheets, c.Backend)
	}

	return c, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

// splitList reads a comma separated list, dropping empty items.
func splitList(raw string) []string {
	out := []string{}
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	for _, p := range splitList(raw) {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
