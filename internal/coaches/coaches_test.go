package coaches_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club-registration/internal/api"
	"club-registration/internal/backend"
	"club-registration/internal/backend/backendtest"
	"club-registration/internal/coaches"
	"club-registration/internal/models"
)

func newService(t *testing.T, respond func(backend.Request) string) (*coaches.Service, *backendtest.Fake) {
	t.Helper()
	fake := backendtest.New()
	if respond != nil {
		fake.Respond = func(req backend.Request) backend.Response {
			return backend.Response{Body: []byte(respond(req))}
		}
	}
	client := api.New(fake, api.Options{CacheTTL: time.Minute, Location: time.UTC})
	return coaches.NewService(client, coaches.NewIssuer("test-secret", 0), nil), fake
}

func TestRegisterIssuesCoachToken(t *testing.T) {
	svc, fake := newService(t, func(backend.Request) string { return `{"result":"success","id":12}` })

	sess, err := svc.Register(context.Background(), " Ada ", "Lovelace", "1234", "")
	require.NoError(t, err)
	require.NotNil(t, sess.Coach)
	assert.Equal(t, "12", sess.Coach.ID)
	assert.Equal(t, "Ada", sess.Coach.FirstName)

	claims, err := svc.Tokens().Parse("Bearer "+sess.Token, coaches.RoleCoach)
	require.NoError(t, err)
	assert.Equal(t, *sess.Coach, claims.Coach())
	assert.NotEmpty(t, claims.ID)

	require.Len(t, fake.Posts, 1)
	assert.Equal(t, backend.Path{Role: "coach_login", Operation: "register"}, fake.Posts[0].Path)
}

func TestRegisterConflicts(t *testing.T) {
	for answer, want := range map[string]error{
		`{"result":"error","id":"exists"}`:    coaches.ErrCoachExists,
		`{"result":"error","id":"pin_taken"}`: coaches.ErrPinTaken,
		`{"result":"error"}`:                  coaches.ErrRejected,
		`{"result":"error","code":401}`:       coaches.ErrRejected,
	} {
		svc, _ := newService(t, func(backend.Request) string { return answer })
		_, err := svc.Register(context.Background(), "Ada", "Lovelace", "1234", "")
		assert.ErrorIs(t, err, want, answer)
	}
}

func TestRegisterValidatesLocally(t *testing.T) {
	svc, fake := newService(t, nil)
	_, err := svc.Register(context.Background(), "Ada", "", "1234", "")
	assert.ErrorIs(t, err, coaches.ErrMissingFields)
	_, err = svc.Register(context.Background(), "Ada", "Lovelace", "12a4", "")
	assert.ErrorIs(t, err, coaches.ErrInvalidPin)
	assert.Empty(t, fake.CallLog())
}

func TestLogin(t *testing.T) {
	svc, fake := newService(t, func(req backend.Request) string {
		data := req.Data.(map[string]string)
		if data["pin"] == "4321" {
			return `{"result":"success","coach":{"id":3,"firstName":"Grace","lastName":"Hopper","alias":"Amazing Grace"}}`
		}
		return `{"result":"error","message":"invalid_pin"}`
	})

	sess, err := svc.Login(context.Background(), "4321")
	require.NoError(t, err)
	assert.Equal(t, models.Coach{ID: "3", FirstName: "Grace", LastName: "Hopper", Alias: "Amazing Grace"}, *sess.Coach)
	assert.Equal(t, "Amazing Grace", coaches.DisplayName(*sess.Coach))

	_, err = svc.Login(context.Background(), "1111")
	require.ErrorIs(t, err, coaches.ErrLoginFailed)
	assert.Contains(t, err.Error(), "invalid_pin")
	assert.Equal(t, 2, fake.Count("POST coach_login/verify"))
}

func TestUpdatesAndDelete(t *testing.T) {
	svc, fake := newService(t, nil)
	coach := models.Coach{ID: "3", FirstName: "Grace", LastName: "Hopper"}

	sess, err := svc.UpdateAlias(context.Background(), coach, " GH ")
	require.NoError(t, err)
	assert.Equal(t, "GH", sess.Coach.Alias)

	require.NoError(t, svc.UpdatePin(context.Background(), "3", "987654"))
	require.ErrorIs(t, svc.UpdatePin(context.Background(), "3", "98"), coaches.ErrInvalidPin)
	require.NoError(t, svc.Delete(context.Background(), "3"))

	assert.Equal(t, []string{
		"POST coach_login/update",
		"POST coach_login/update",
		"POST coach_login/delete",
	}, fake.CallLog())

	body, err := json.Marshal(fake.Posts[0].Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"3","alias":"GH"}`, string(body))
}

func TestErrorObjectWithNumericCodeIsRejected(t *testing.T) {
	svc, fake := newService(t, func(backend.Request) string { return `{"result":"error","code":401}` })
	coach := models.Coach{ID: "3", FirstName: "Grace", LastName: "Hopper"}

	_, err := svc.UpdateAlias(context.Background(), coach, "GH")
	assert.ErrorIs(t, err, coaches.ErrRejected)
	assert.ErrorIs(t, svc.UpdatePin(context.Background(), "3", "987654"), coaches.ErrRejected)
	assert.ErrorIs(t, svc.Delete(context.Background(), "3"), coaches.ErrRejected)
	_, err = svc.Register(context.Background(), "Ada", "Lovelace", "1234", "")
	assert.ErrorIs(t, err, coaches.ErrRejected)
	assert.Len(t, fake.Posts, 4)
}

func TestBareIDAnswerIsAccepted(t *testing.T) {
	svc, _ := newService(t, func(backend.Request) string { return `1234567` })
	require.NoError(t, svc.Delete(context.Background(), "3"))

	sess, err := svc.Register(context.Background(), "Ada", "Lovelace", "1234", "")
	require.NoError(t, err)
	assert.Equal(t, "1234567", sess.Coach.ID)
}

func TestUpdateTransportError(t *testing.T) {
	svc, fake := newService(t, nil)
	fake.PostErr = errors.New("offline")
	assert.Error(t, svc.Delete(context.Background(), "3"))
}

func TestAdminLogin(t *testing.T) {
	svc, fake := newService(t, nil)
	fake.SetRows(models.ResourceSettings, models.Row{"admin", "s3cret"}, models.Row{"coach", "c"})

	sess, err := svc.AdminLogin(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Nil(t, sess.Coach)
	_, err = svc.Tokens().Parse(sess.Token, coaches.RoleAdmin)
	require.NoError(t, err)
	_, err = svc.Tokens().Parse(sess.Token, coaches.RoleCoach)
	require.ErrorIs(t, err, coaches.ErrInvalidToken)

	_, err = svc.AdminLogin(context.Background(), "guess")
	assert.ErrorIs(t, err, coaches.ErrLoginFailed)
}

func TestAdminLoginWithoutConfiguredPassword(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.AdminLogin(context.Background(), "")
	assert.ErrorIs(t, err, coaches.ErrLoginFailed)
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2026, 2, 17, 8, 0, 0, 0, time.UTC)
	iss := coaches.NewIssuer("k", 0).WithClock(func() time.Time { return now })

	tok, exp, err := iss.Issue(coaches.RoleCoach, models.Coach{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(coaches.SessionTTL), exp)

	_, err = iss.Parse(tok, coaches.RoleCoach)
	require.NoError(t, err)

	now = now.Add(coaches.SessionTTL + time.Second)
	_, err = iss.Parse(tok, coaches.RoleCoach)
	assert.ErrorIs(t, err, coaches.ErrInvalidToken)
}

func TestTokenSignedWithOtherSecret(t *testing.T) {
	tok, _, err := coaches.NewIssuer("a", 0).Issue(coaches.RoleCoach, models.Coach{ID: "1"})
	require.NoError(t, err)
	_, err = coaches.NewIssuer("b", 0).Parse(tok, coaches.RoleCoach)
	assert.ErrorIs(t, err, coaches.ErrInvalidToken)
	_, err = coaches.NewIssuer("b", 0).Parse("", coaches.RoleCoach)
	assert.ErrorIs(t, err, coaches.ErrInvalidToken)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", coaches.DisplayName(models.Coach{FirstName: "Ada", LastName: "Lovelace"}))
	assert.Equal(t, "", coaches.DisplayName(models.Coach{}))
}

func TestList(t *testing.T) {
	svc, fake := newService(t, nil)
	fake.SetRows(models.ResourceCoachLogins,
		models.Row{1.0, "Ada", "Lovelace", "", "1234"},
		models.Row{2.0, "Grace", "Hopper", "GH", "4321"},
		models.Row{"", "Broken"},
	)
	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.Coach{
		{ID: "1", FirstName: "Ada", LastName: "Lovelace"},
		{ID: "2", FirstName: "Grace", LastName: "Hopper", Alias: "GH"},
	}, list)
}
