package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"club-registration/internal/coaches"
	"club-registration/internal/dates"
	"club-registration/internal/models"
	"club-registration/internal/registration"
	"club-registration/internal/util"
)

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": util.NowISO()})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"loading":      h.Loading.Active(),
		"inFlight":     h.Loading.Count(),
		"cacheEntries": h.API.Cache().Len(),
		"ts":           util.NowISO(),
	})
}

// options lists the session choices for today, or for ?date=YYYY-MM-DD.
func (h *handlers) options(w http.ResponseWriter, r *http.Request) {
	day := h.Options.Today()
	if q := r.URL.Query().Get("date"); q != "" {
		d, ok := dates.ParseDay(q, h.Options.Location())
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    day,
		"options": h.Options.OptionsFor(r.Context(), day),
	})
}

func (h *handlers) coachOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"options": h.Options.CoachOptions()})
}

func (h *handlers) ageGroups(w http.ResponseWriter, r *http.Request) {
	groups := append([]string{}, h.Club.AgeGroups...)
	writeJSON(w, http.StatusOK, map[string]any{"ageGroups": groups})
}

func (h *handlers) upcoming(w http.ResponseWriter, r *http.Request) {
	list, err := h.API.UpcomingSessions(r.Context())
	if err != nil {
		h.Logger.Error("upcoming sessions", "error", err)
		writeError(w, http.StatusBadGateway, "upstream", "could not load upcoming sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

type registrationRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	AgeGroup    string `json:"ageGroup"`
	SessionName string `json:"sessionName"`
	// Dates is a day or a timestamp; empty means now.
	Dates     string     `json:"dates"`
	StartTime *time.Time `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

type registrationResponse struct {
	Outcome registration.Outcome `json:"outcome"`
	ID      int64                `json:"id,omitempty"`
	Message string               `json:"message"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	if role != models.RoleTrainee && role != models.RoleCoach {
		writeError(w, http.StatusNotFound, "not_found", "unknown registration role")
		return
	}
	var req registrationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	cand := models.Candidate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		AgeGroup:    req.AgeGroup,
		SessionName: req.SessionName,
		Date:        h.Now(),
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}
	if strings.TrimSpace(req.Dates) != "" {
		t, ok := dates.Parse(req.Dates, h.Options.Location())
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_date", "dates is not a date")
			return
		}
		cand.Date = t
	}
	// A signed-in coach registers under the account name.
	if role == models.RoleCoach && r.Header.Get("Authorization") != "" {
		claims, err := h.Coaches.Tokens().Parse(r.Header.Get("Authorization"), coaches.RoleCoach)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid coach token")
			return
		}
		cand.FirstName = claims.FirstName
		cand.LastName = claims.LastName
	}

	res, err := h.Registrations.Submit(r.Context(), role, cand)
	switch {
	case errors.Is(err, registration.ErrInvalidCandidate):
		writeError(w, http.StatusBadRequest, "invalid_registration", err.Error())
		return
	case err != nil:
		writeJSON(w, http.StatusBadGateway, registrationResponse{Outcome: res.Outcome, Message: res.Outcome.Message()})
		return
	}

	status := http.StatusOK
	if res.Outcome == registration.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, registrationResponse{Outcome: res.Outcome, ID: res.ID, Message: res.Outcome.Message()})
}
