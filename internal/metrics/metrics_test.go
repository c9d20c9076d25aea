package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club-registration/internal/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	m.CacheLookup("camps", true)
	m.APICall("GET", "camps", nil, 0.1)
	m.Registration("trainee", "created")
	m.OptionFallback()
}

func TestHandlerExposesCounters(t *testing.T) {
	m := metrics.New()
	m.CacheLookup("camps", false)
	m.APICall("POST", "trainee/add", errors.New("x"), 0.2)
	m.Registration("trainee", "already_registered")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `club_cache_lookups_total{resource="camps",result="miss"} 1`))
	assert.True(t, strings.Contains(text, `club_api_calls_total{method="POST",status="error",target="trainee/add"} 1`))
	assert.True(t, strings.Contains(text, `club_registrations_total{outcome="already_registered",role="trainee"} 1`))
}
