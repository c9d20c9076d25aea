package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"club-registration/internal/coaches"
	"club-registration/internal/dates"
	"club-registration/internal/models"
	"club-registration/internal/reports"
	"club-registration/internal/util"
)

const exportMessage = "export:report"

func (h *handlers) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	sess, err := h.Coaches.AdminLogin(r.Context(), req.Password)
	if errors.Is(err, coaches.ErrLoginFailed) {
		writeError(w, http.StatusUnauthorized, "login_failed", "wrong password")
		return
	}
	if err != nil {
		h.upstreamError(w, "admin login", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handlers) upstreamError(w http.ResponseWriter, what string, err error) {
	h.Logger.Error(what, "error", err)
	writeError(w, http.StatusBadGateway, "upstream", what+" failed")
}

// schedule lists camps and courses in one answer for the admin overview.
func (h *handlers) schedule(w http.ResponseWriter, r *http.Request) {
	camps, courses, err := h.API.Schedule(r.Context())
	if err != nil {
		h.upstreamError(w, "schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"camps": camps, "courses": courses})
}

// ---------- Camps ----------

func (h *handlers) listCamps(w http.ResponseWriter, r *http.Request) {
	camps, err := h.API.ListCamps(r.Context(), r.URL.Query().Get("refresh") == "1")
	if err != nil {
		h.upstreamError(w, "list camps", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"camps": camps})
}

func validCamp(c models.Camp) string {
	if strings.TrimSpace(c.Name) == "" {
		return "name is required"
	}
	for _, d := range c.Days {
		if strings.TrimSpace(d.Date) == "" {
			continue
		}
		if _, ok := dates.ParseDay(d.Date, nil); !ok {
			return "invalid day " + d.Date
		}
		if d.Sessions < 1 {
			return "sessions must be at least 1 on " + d.Date
		}
	}
	return ""
}

func (h *handlers) addCamp(w http.ResponseWriter, r *http.Request) {
	var camp models.Camp
	if err := decodeJSON(r, &camp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if msg := validCamp(camp); msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_camp", msg)
		return
	}
	id, err := h.API.AddCamp(r.Context(), camp)
	if err != nil {
		h.upstreamError(w, "add camp", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *handlers) updateCamp(w http.ResponseWriter, r *http.Request) {
	var camp models.Camp
	if err := decodeJSON(r, &camp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	camp.ID = chi.URLParam(r, "id")
	if msg := validCamp(camp); msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_camp", msg)
		return
	}
	if err := h.API.UpdateCamp(r.Context(), camp); err != nil {
		h.upstreamError(w, "update camp", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": camp.ID})
}

func (h *handlers) deleteCamp(w http.ResponseWriter, r *http.Request) {
	if err := h.API.DeleteCamp(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.upstreamError(w, "delete camp", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- Courses ----------

func (h *handlers) listCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.API.ListCourses(r.Context(), r.URL.Query().Get("refresh") == "1")
	if err != nil {
		h.upstreamError(w, "list courses", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": courses})
}

func validCourse(c models.Course) string {
	if strings.TrimSpace(c.Name) == "" || c.StartDate == "" || c.EndDate == "" {
		return "name, startDate and endDate are required"
	}
	start, ok1 := dates.ParseDay(c.StartDate, nil)
	end, ok2 := dates.ParseDay(c.EndDate, nil)
	if !ok1 || !ok2 {
		return "dates must be YYYY-MM-DD"
	}
	if end < start {
		return "endDate is before startDate"
	}
	return ""
}

func (h *handlers) addCourse(w http.ResponseWriter, r *http.Request) {
	var course models.Course
	if err := decodeJSON(r, &course); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if msg := validCourse(course); msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_course", msg)
		return
	}
	id, err := h.API.AddCourse(r.Context(), course)
	if err != nil {
		h.upstreamError(w, "add course", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *handlers) updateCourse(w http.ResponseWriter, r *http.Request) {
	var course models.Course
	if err := decodeJSON(r, &course); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	course.ID = chi.URLParam(r, "id")
	if msg := validCourse(course); msg != "" {
		writeError(w, http.StatusBadRequest, "invalid_course", msg)
		return
	}
	if err := h.API.UpdateCourse(r.Context(), course); err != nil {
		h.upstreamError(w, "update course", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": course.ID})
}

func (h *handlers) deleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.API.DeleteCourse(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.upstreamError(w, "delete course", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- Coaches ----------

func (h *handlers) listCoaches(w http.ResponseWriter, r *http.Request) {
	list, err := h.Coaches.List(r.Context())
	if err != nil {
		h.upstreamError(w, "list coaches", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coaches": list})
}

func (h *handlers) deleteCoach(w http.ResponseWriter, r *http.Request) {
	if err := h.Coaches.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.upstreamError(w, "delete coach", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------- Report ----------

func (h *handlers) report(w http.ResponseWriter, r *http.Request) {
	rep, err := reports.Load(r.Context(), h.API, h.Club.AgeGroups, h.Club.HoursPerSession)
	if err != nil {
		h.upstreamError(w, "report", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":   rep,
		"csvToken": util.HMACSHA256Hex(h.ExportSecret, exportMessage),
	})
}

// reportCSV accepts either an admin bearer token or ?token= from the report.
func (h *handlers) reportCSV(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	authorized := token != "" && util.ValidHMAC(h.ExportSecret, exportMessage, token)
	if !authorized {
		if _, err := h.Coaches.Tokens().Parse(r.Header.Get("Authorization"), coaches.RoleAdmin); err == nil {
			authorized = true
		}
	}
	if !authorized {
		writeError(w, http.StatusForbidden, "forbidden", "invalid token")
		return
	}

	rep, err := reports.Load(r.Context(), h.API, h.Club.AgeGroups, h.Club.HoursPerSession)
	if err != nil {
		h.upstreamError(w, "report", err)
		return
	}
	var buf bytes.Buffer
	if err := reports.WriteCSV(&buf, rep); err != nil {
		h.upstreamError(w, "report csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="suoritemaarat_`+dates.Day(h.Now(), h.Options.Location())+`.csv"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *handlers) refreshCache(w http.ResponseWriter, r *http.Request) {
	n := h.API.Cache().Invalidate("")
	h.API.Prefetch(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": n})
}
