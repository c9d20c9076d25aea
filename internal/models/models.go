package models

import "time"

// Row is one tabular row as delivered by the external API or a sheet tab.
// Cells are whatever the JSON decoder produced: string, float64, bool or nil.
type Row []interface{}

// Resources served by the external API.
const (
	ResourceCamps                = "camps"
	ResourceSessions             = "sessions"
	ResourceTraineeRegistrations = "trainee_registrations"
	ResourceCoachRegistrations   = "coach_registrations"
	ResourceSettings             = "settings"
	ResourceUpcomingSessions     = "upcoming_sessions"
	ResourceCoachesExperience    = "coaches_experience"
	ResourceCoachLogins          = "coach_logins"
)

// Roles accepted in the path of a write request.
const (
	RoleCamp       = "camp"
	RoleSession    = "session"
	RoleTrainee    = "trainee"
	RoleCoach      = "coach"
	RoleCoachLogin = "coach_login"
)

// Operations accepted in the path of a write request.
const (
	OpAdd      = "add"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpRegister = "register"
	OpVerify   = "verify"
)

type CampDay struct {
	Date     string `json:"date"`
	Sessions int    `json:"sessions"`
}

type Camp struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind,omitempty"`
	Name    string    `json:"name"`
	Teacher string    `json:"teacher"`
	Days    []CampDay `json:"days"`
}

// Course is a fixed date range class. The external API calls these "sessions".
type Course struct {
	ID        string `json:"id"`
	Kind      string `json:"course"`
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Candidate is a registration being submitted.
type Candidate struct {
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	AgeGroup    string    `json:"ageGroup,omitempty"`
	SessionName string    `json:"sessionName"`
	Date        time.Time `json:"dates"`
	// Open training slots are logged with their own hours.
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Record is a stored registration as read back from the external API.
// A zero Date means the cell was missing or unparseable.
type Record struct {
	ID          string
	FirstName   string
	LastName    string
	AgeGroup    string
	SessionName string
	Date        time.Time
}

type Coach struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Alias     string `json:"alias,omitempty"`
}

type Settings struct {
	AdminPassword string
	CoachPassword string
}
