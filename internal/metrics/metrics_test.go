package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestInstrumentLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/offers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/offers/abc", nil))

	out := scrape(t, m)
	assert.Contains(t, out, `agromarket_http_requests_total{method="GET",route="/offers/{id}",status="404"} 1`)
}

func TestAuthEventAndRateLimited(t *testing.T) {
	m := New()
	m.AuthEvent("login", true)
	m.AuthEvent("login", false)
	m.AuthEvent("login", false)
	m.RateLimited()

	out := scrape(t, m)
	assert.Contains(t, out, `agromarket_auth_events_total{event="login",result="false"} 2`)
	assert.Contains(t, out, `agromarket_auth_events_total{event="login",result="true"} 1`)
	assert.Contains(t, out, `agromarket_http_rate_limited_total 1`)
}
