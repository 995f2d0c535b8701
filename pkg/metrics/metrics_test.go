package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefresh(t *testing.T) {
	m := New()
	m.Refresh(time.Millisecond, true, 3, 2)
	m.Refresh(time.Millisecond, false, 0, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("unavailable")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.skippedEvents))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.accounts))
}

func TestPolls(t *testing.T) {
	m := New()
	m.PollStarted()
	m.PollStarted()
	m.PollFinished("rewarded")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activePolls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollOutcomes.WithLabelValues("rewarded")))
}

func TestObserveHTTPAndHandler(t *testing.T) {
	m := New()
	h := m.ObserveHTTP("/leaderboard", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/leaderboard", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/leaderboard", "418")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "lootboard_http_requests_total"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Refresh(time.Second, true, 1, 1)
	m.PollStarted()
	m.PollFinished("timed_out")
	m.WSClients(2)
	assert.Nil(t, m.Registry())

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	m.ObserveHTTP("/x", next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.True(t, called)
}
