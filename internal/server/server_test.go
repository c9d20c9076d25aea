package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club-registration/internal/api"
	"club-registration/internal/backend"
	"club-registration/internal/backend/backendtest"
	"club-registration/internal/coaches"
	"club-registration/internal/config"
	"club-registration/internal/metrics"
	"club-registration/internal/models"
	"club-registration/internal/registration"
	"club-registration/internal/server"
	"club-registration/internal/sessions"
	"club-registration/internal/util"
)

var now = time.Date(2026, 2, 17, 18, 0, 0, 0, time.UTC)

type env struct {
	fake    *backendtest.Fake
	srv     *httptest.Server
	coaches *coaches.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	fake := backendtest.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	client := api.New(fake, api.Options{CacheTTL: time.Minute, Location: time.UTC, Metrics: m, Logger: log})
	club := config.DefaultClub()
	coachSvc := coaches.NewService(client, coaches.NewIssuer("secret", 0), log)

	router := server.NewRouter(server.Deps{
		API: client,
		Options: sessions.NewService(client, sessions.Config{
			Location:     time.UTC,
			Fallback:     club.FallbackOptions,
			CoachOptions: club.CoachOptions,
			Now:          func() time.Time { return now },
			Logger:       log,
		}),
		Registrations: registration.NewService(client, registration.Config{Location: time.UTC, Logger: log}),
		Coaches:       coachSvc,
		Metrics:       m,
		Logger:        log,
		Club:          club,
		ExportSecret:  "export-secret",
		Now:           func() time.Time { return now },
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &env{fake: fake, srv: srv, coaches: coachSvc}
}

func (e *env) do(t *testing.T, method, path, body, token string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out = map[string]any{"raw": string(raw)}
	}
	return resp, out
}

func (e *env) adminToken(t *testing.T) string {
	t.Helper()
	tok, _, err := e.coaches.Tokens().Issue(coaches.RoleAdmin, models.Coach{})
	require.NoError(t, err)
	return tok
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])

	resp, body = e.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["raw"], "go_goroutines")
}

func TestOptions(t *testing.T) {
	e := newEnv(t)
	e.fake.SetRows(models.ResourceCamps, models.Row{1.0, "camp", "SUMMER", "Coach X", "2026-02-17", 3.0, "2026-02-20", 2.0})
	e.fake.SetRows(models.ResourceSessions, models.Row{"2", "course", "PEKU", "2026-02-01", "2026-02-28"})

	resp, body := e.do(t, http.MethodGet, "/api/options", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2026-02-17", body["date"])
	assert.Equal(t, []any{"SUMMER SESSIO 1", "SUMMER SESSIO 2", "SUMMER SESSIO 3", "VAPAA/SPARRI"}, body["options"])

	_, body = e.do(t, http.MethodGet, "/api/options?date=2026-02-21", "", "")
	assert.Equal(t, []any{"PEKU", "VAPAA/SPARRI"}, body["options"])

	resp, _ = e.do(t, http.MethodGet, "/api/options?date=someday", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = e.do(t, http.MethodGet, "/api/coach-options", "", "")
	assert.Equal(t, []any{"JATKO", "KUNTO", "PEKU"}, body["options"])
	_, body = e.do(t, http.MethodGet, "/api/age-groups", "", "")
	assert.Equal(t, []any{"18+ vuotias", "alle 18-vuotias"}, body["ageGroups"])
}

func TestRegisterTrainee(t *testing.T) {
	e := newEnv(t)
	payload := `{"firstName":"Ada","lastName":"L","ageGroup":"18+ vuotias","sessionName":"PEKU","dates":"2026-02-17"}`

	resp, body := e.do(t, http.MethodPost, "/api/registrations/trainee", payload, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "created", body["outcome"])
	assert.Equal(t, "Rekisteröinti onnistui!", body["message"])

	e.fake.SetRows(models.ResourceTraineeRegistrations,
		models.Row{1.0, "Ada", "L", "18+ vuotias", "PEKU", "2026-02-17T09:00:00Z"})
	resp, body = e.do(t, http.MethodPost, "/api/registrations/trainee", payload, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_registered", body["outcome"])
	assert.Equal(t, "Rekisteröinti on jo olemassa.", body["message"])
	assert.Equal(t, 1, e.fake.Count("POST trainee/add"))
}

func TestRegisterErrors(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/api/registrations/trainee", `{"firstName":"Ada"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/registrations/visitor", `{}`, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/registrations/trainee", `{"firstName":"Ada","lastName":"L","sessionName":"PEKU","dates":"x"}`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	e.fake.PostErr = errors.New("down")
	resp, body := e.do(t, http.MethodPost, "/api/registrations/coach", `{"firstName":"Ada","lastName":"L","sessionName":"PEKU"}`, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "failed", body["outcome"])
	assert.Equal(t, "Rekisteröinti epäonnistui. Yritä uudelleen.", body["message"])
}

func TestRegisterCoachUsesTokenName(t *testing.T) {
	e := newEnv(t)
	tok, _, err := e.coaches.Tokens().Issue(coaches.RoleCoach, models.Coach{ID: "3", FirstName: "Grace", LastName: "Hopper"})
	require.NoError(t, err)

	resp, _ := e.do(t, http.MethodPost, "/api/registrations/coach", `{"sessionName":"JATKO"}`, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Len(t, e.fake.Posts, 1)
	cand := e.fake.Posts[0].Data.(models.Candidate)
	assert.Equal(t, "Grace", cand.FirstName)
	assert.True(t, cand.Date.Equal(now))
}

func TestUpcoming(t *testing.T) {
	e := newEnv(t)
	e.fake.Raw[models.ResourceUpcomingSessions] = json.RawMessage(`[{"date":"2026-02-18","sessionName":"PEKU","coaches":["Ada"]},"skip"]`)
	resp, body := e.do(t, http.MethodGet, "/api/upcoming", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["sessions"], 1)

	e.fake.FetchErr[models.ResourceUpcomingSessions] = errors.New("down")
	resp, body = e.do(t, http.MethodGet, "/api/upcoming", "", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream", body["error"].(map[string]any)["code"])
}

func TestCoachFlow(t *testing.T) {
	e := newEnv(t)
	e.fake.Respond = func(req backend.Request) backend.Response {
		switch req.Path.Operation {
		case models.OpRegister:
			return backend.Response{Body: []byte(`{"result":"success","id":5}`)}
		case models.OpVerify:
			return backend.Response{Body: []byte(`{"result":"error","message":"invalid_pin"}`)}
		}
		return backend.Response{Body: []byte(`{"result":"success"}`)}
	}

	resp, body := e.do(t, http.MethodPost, "/api/coach/register", `{"firstName":"Ada","lastName":"L","pin":"1234"}`, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	token := body["token"].(string)

	resp, body = e.do(t, http.MethodPatch, "/api/coach/me", `{"alias":"AL"}`, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "AL", body["coach"].(map[string]any)["alias"])

	resp, _ = e.do(t, http.MethodPatch, "/api/coach/me", `{"pin":"12"}`, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPatch, "/api/coach/me", `{"alias":"AL"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/api/coach/login", `{"pin":"9999"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "login_failed", body["error"].(map[string]any)["code"])

	resp, _ = e.do(t, http.MethodDelete, "/api/coach/me", "", token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCoachRegisterConflict(t *testing.T) {
	e := newEnv(t)
	e.fake.Respond = func(backend.Request) backend.Response {
		return backend.Response{Body: []byte(`{"result":"error","id":"pin_taken"}`)}
	}
	resp, body := e.do(t, http.MethodPost, "/api/coach/register", `{"firstName":"Ada","lastName":"L","pin":"1234"}`, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "pin_taken", body["error"].(map[string]any)["code"])
}

func TestAdminLoginAndAuth(t *testing.T) {
	e := newEnv(t)
	e.fake.SetRows(models.ResourceSettings, models.Row{"admin", "pw"}, models.Row{"coach", "c"})

	resp, _ := e.do(t, http.MethodPost, "/api/admin/login", `{"password":"nope"}`, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/api/admin/login", `{"password":"pw"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := body["token"].(string)

	resp, _ = e.do(t, http.MethodGet, "/api/admin/camps", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/api/admin/camps", "", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	coachTok, _, err := e.coaches.Tokens().Issue(coaches.RoleCoach, models.Coach{ID: "1"})
	require.NoError(t, err)
	resp, _ = e.do(t, http.MethodGet, "/api/admin/camps", "", coachTok)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminCampCRUD(t *testing.T) {
	e := newEnv(t)
	token := e.adminToken(t)
	e.fake.SetRows(models.ResourceCamps, models.Row{7.0, "camp", "SUMMER", "X", "2026-02-17", 3.0})

	_, body := e.do(t, http.MethodGet, "/api/admin/camps", "", token)
	camps := body["camps"].([]any)
	require.Len(t, camps, 1)
	assert.Equal(t, "SUMMER", camps[0].(map[string]any)["name"])

	resp, _ := e.do(t, http.MethodPost, "/api/admin/camps", `{"name":""}`, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPost, "/api/admin/camps", `{"name":"WINTER","days":[{"date":"2026-03-01","sessions":0}]}`, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/api/admin/camps", `{"name":"WINTER","teacher":"Y","days":[{"date":"2026-03-01","sessions":2},{"date":"","sessions":1}]}`, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.InDelta(t, 1, body["id"], 0)

	resp, _ = e.do(t, http.MethodPut, "/api/admin/camps/7", `{"name":"SUMMER","days":[]}`, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.do(t, http.MethodDelete, "/api/admin/camps/7", "", token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, []string{"POST camp/add", "POST camp/update", "POST camp/delete"}, postsOf(e.fake))
	added := e.fake.Posts[0].Data.(models.Camp)
	assert.Len(t, added.Days, 1)
}

func TestAdminSchedule(t *testing.T) {
	e := newEnv(t)
	token := e.adminToken(t)
	e.fake.SetRows(models.ResourceCamps, models.Row{7.0, "camp", "SUMMER", "X", "2026-02-17", 3.0})
	e.fake.SetRows(models.ResourceSessions,
		models.Row{"2", "course", "PEKU", "2026-02-01", "2026-02-28"},
		models.Row{"3", "course", "", "2026-02-01", "2026-02-28"})

	resp, body := e.do(t, http.MethodGet, "/api/admin/schedule", "", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	camps := body["camps"].([]any)
	courses := body["courses"].([]any)
	require.Len(t, camps, 1)
	require.Len(t, courses, 1)
	assert.Equal(t, "SUMMER", camps[0].(map[string]any)["name"])
	assert.Equal(t, "PEKU", courses[0].(map[string]any)["name"])
	assert.Equal(t, 1, e.fake.Count("GET camps"))
	assert.Equal(t, 1, e.fake.Count("GET sessions"))

	e.fake.FetchErr[models.ResourceSessions] = errors.New("down")
	e.do(t, http.MethodPost, "/api/admin/cache/refresh", "", token)
	resp, _ = e.do(t, http.MethodGet, "/api/admin/schedule", "", token)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/api/admin/schedule", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminCourseCRUD(t *testing.T) {
	e := newEnv(t)
	token := e.adminToken(t)

	resp, _ := e.do(t, http.MethodPost, "/api/admin/courses", `{"name":"PEKU","startDate":"2026-03-01","endDate":"2026-02-01"}`, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/api/admin/courses", `{"course":"basic","name":"PEKU","startDate":"2026-02-01","endDate":"2026-02-28"}`, token)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = e.do(t, http.MethodPut, "/api/admin/courses/2", `{"course":"basic","name":"PEKU","startDate":"2026-02-01","endDate":"2026-03-28"}`, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.do(t, http.MethodDelete, "/api/admin/courses/2", "", token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, []string{"POST session/add", "POST session/update", "POST session/delete"}, postsOf(e.fake))
}

func TestAdminReportAndCSV(t *testing.T) {
	e := newEnv(t)
	token := e.adminToken(t)
	e.fake.SetRows(models.ResourceTraineeRegistrations,
		models.Row{1.0, "Ada", "L", "18+ vuotias", "PEKU", "2026-02-17"})
	e.fake.SetRows(models.ResourceCoachRegistrations,
		models.Row{1.0, "Grace", "Hopper", "PEKU", "2026-02-17"})

	resp, body := e.do(t, http.MethodGet, "/api/admin/report", "", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	csvToken := body["csvToken"].(string)
	assert.Equal(t, util.HMACSHA256Hex("export-secret", "export:report"), csvToken)
	rep := body["report"].(map[string]any)
	assert.InDelta(t, 1.5, rep["totalHours"], 1e-9)

	resp, body = e.do(t, http.MethodGet, "/api/admin/report.csv?token="+csvToken, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "suoritemaarat_2026-02-17.csv")
	assert.Contains(t, body["raw"], "PEKU,1,1")

	resp, _ = e.do(t, http.MethodGet, "/api/admin/report.csv", "", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/api/admin/report.csv?token=bad", "", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminCoachesAndRefresh(t *testing.T) {
	e := newEnv(t)
	token := e.adminToken(t)
	e.fake.SetRows(models.ResourceCoachLogins, models.Row{1.0, "Ada", "L", "", "1234"})

	_, body := e.do(t, http.MethodGet, "/api/admin/coaches", "", token)
	list := body["coaches"].([]any)
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "pin")

	resp, body := e.do(t, http.MethodPost, "/api/admin/cache/refresh", "", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 1, body["invalidated"], 0)

	resp, _ = e.do(t, http.MethodDelete, "/api/admin/coaches/1", "", token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodGet, "/api/status", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["loading"])
	assert.InDelta(t, 0, body["inFlight"], 0)
}

func postsOf(f *backendtest.Fake) []string {
	var out []string
	for _, c := range f.CallLog() {
		if strings.HasPrefix(c, "POST ") {
			out = append(out, c)
		}
	}
	return out
}
