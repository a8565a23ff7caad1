package metrics

import (
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

func TestMetrics_EngineObserver(t *testing.T) {
	m := NewMetrics("test")

	m.PointsCredited("validation", 90)
	m.PointsCredited("validation", 180)
	m.PointsCredited("mission", 40)
	m.PointsDebited("redemption", 300)
	m.LogDecided(rewards.LogValidated)
	m.LogDecided(rewards.LogRejected)
	m.LogDecided(rewards.LogValidated)
	m.RedemptionResolved(rewards.RedemptionRefused)
	m.MissionCompleted(generic.CadenceWeekly)
	m.MissionClaimed(generic.CadenceWeekly)
	m.MedalPromoted(rewards.MedalSilver)

	assert.Equal(t, 270.0, testutil.ToFloat64(m.PointsCreditedTotal.WithLabelValues("validation")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.PointsCreditedTotal.WithLabelValues("mission")))
	assert.Equal(t, 300.0, testutil.ToFloat64(m.PointsDebitedTotal.WithLabelValues("redemption")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LogDecisions.WithLabelValues(string(rewards.LogValidated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LogDecisions.WithLabelValues(string(rewards.LogRejected))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedemptionDecisions.WithLabelValues(string(rewards.RedemptionRefused))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MissionsCompleted.WithLabelValues("weekly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MissionsClaimed.WithLabelValues("weekly")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MedalPromotions.WithLabelValues(string(rewards.MedalSilver))))
}

func TestMetrics_InstancesDoNotCollide(t *testing.T) {
	a := NewMetrics("test")
	b := NewMetrics("test")

	a.PointsCredited("validation", 10)

	assert.Equal(t, 10.0, testutil.ToFloat64(a.PointsCreditedTotal.WithLabelValues("validation")))
	assert.Zero(t, testutil.ToFloat64(b.PointsCreditedTotal.WithLabelValues("validation")))
}

func TestMetrics_Middleware(t *testing.T) {
	m := NewMetrics("test")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	for _, path := range []string{"/users/1", "/users/2", "/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	// THEN: Requests are grouped by route pattern, not raw path
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/users/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/health", "200")))
	assert.Zero(t, testutil.ToFloat64(m.RequestsInFlight))

	// AND: The exposition endpoint serves the registry
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "recognition_test_http_requests_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_RecordDBPoolStats(t *testing.T) {
	m := NewMetrics("test")

	m.RecordDBPoolStats(sql.DBStats{OpenConnections: 1, InUse: 1, WaitCount: 3, WaitDuration: 1500 * time.Millisecond})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBConnPoolStats.WithLabelValues("open")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DBConnPoolStats.WithLabelValues("wait_count")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(m.DBConnPoolStats.WithLabelValues("wait_duration_ms")))
}
