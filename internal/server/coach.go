package server

import (
	"errors"
	"net/http"
	"strings"

	"club-registration/internal/coaches"
)

type coachRegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Pin       string `json:"pin"`
	Alias     string `json:"alias"`
}

func (h *handlers) coachRegister(w http.ResponseWriter, r *http.Request) {
	var req coachRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	sess, err := h.Coaches.Register(r.Context(), req.FirstName, req.LastName, strings.TrimSpace(req.Pin), req.Alias)
	if err != nil {
		h.coachError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *handlers) coachLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pin string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	sess, err := h.Coaches.Login(r.Context(), strings.TrimSpace(req.Pin))
	if err != nil {
		h.coachError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// coachUpdate changes the alias, the PIN or both.
func (h *handlers) coachUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Alias *string `json:"alias"`
		Pin   *string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Alias == nil && req.Pin == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "nothing to update")
		return
	}
	coach := claimsFrom(r.Context()).Coach()
	if req.Pin != nil {
		if err := h.Coaches.UpdatePin(r.Context(), coach.ID, strings.TrimSpace(*req.Pin)); err != nil {
			h.coachError(w, err)
			return
		}
	}
	if req.Alias == nil {
		writeJSON(w, http.StatusOK, map[string]any{"coach": coach})
		return
	}
	sess, err := h.Coaches.UpdateAlias(r.Context(), coach, *req.Alias)
	if err != nil {
		h.coachError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handlers) coachDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Coaches.Delete(r.Context(), claimsFrom(r.Context()).Subject); err != nil {
		h.coachError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) coachError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, coaches.ErrCoachExists):
		writeError(w, http.StatusConflict, "exists", err.Error())
	case errors.Is(err, coaches.ErrPinTaken):
		writeError(w, http.StatusConflict, "pin_taken", err.Error())
	case errors.Is(err, coaches.ErrInvalidPin), errors.Is(err, coaches.ErrMissingFields):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, coaches.ErrLoginFailed):
		writeError(w, http.StatusUnauthorized, "login_failed", err.Error())
	default:
		h.Logger.Error("coach account", "error", err)
		writeError(w, http.StatusBadGateway, "upstream", "coach account service failed")
	}
}
