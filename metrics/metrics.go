// Package metrics exposes Prometheus collectors for the recognition engine
// and its HTTP surface.
package metrics

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

const namespace = "recognition"

// Metrics holds Prometheus metrics for a service. Each instance owns its
// registry so servers and tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	PointsCreditedTotal *prometheus.CounterVec
	PointsDebitedTotal  *prometheus.CounterVec
	LogDecisions        *prometheus.CounterVec
	RedemptionDecisions *prometheus.CounterVec
	MissionsCompleted   *prometheus.CounterVec
	MissionsClaimed     *prometheus.CounterVec
	MedalPromotions     *prometheus.CounterVec

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	DBConnPoolStats  *prometheus.GaugeVec
}

var _ rewards.Metrics = (*Metrics)(nil)

// NewMetrics creates a new metrics instance on a fresh registry.
func NewMetrics(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		PointsCreditedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "points_credited_total",
				Help:      "Points credited to users, by reason",
			},
			[]string{"reason"},
		),
		PointsDebitedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "points_debited_total",
				Help:      "Points debited from users, by reason",
			},
			[]string{"reason"},
		),
		LogDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "log_decisions_total",
				Help:      "Logged actions validated or rejected",
			},
			[]string{"status"},
		),
		RedemptionDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "redemption_decisions_total",
				Help:      "Redemptions approved or refused",
			},
			[]string{"status"},
		),
		MissionsCompleted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "missions_completed_total",
				Help:      "Mission periods completed, by cadence",
			},
			[]string{"cadence"},
		),
		MissionsClaimed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "missions_claimed_total",
				Help:      "Mission rewards claimed, by cadence",
			},
			[]string{"cadence"},
		),
		MedalPromotions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "medal_promotions_total",
				Help:      "Monthly medal promotions, by medal reached",
			},
			[]string{"medal"},
		),

		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "http_requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		DBConnPoolStats: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: serviceName,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"stat"},
		),
	}
}

// Registry is the gatherer behind Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// =============================================================================
// ENGINE OBSERVER (rewards.Metrics)
// =============================================================================

func (m *Metrics) PointsCredited(reason string, points int64) {
	m.PointsCreditedTotal.WithLabelValues(reason).Add(float64(points))
}

func (m *Metrics) PointsDebited(reason string, points int64) {
	m.PointsDebitedTotal.WithLabelValues(reason).Add(float64(points))
}

func (m *Metrics) LogDecided(s rewards.LogStatus) {
	m.LogDecisions.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) RedemptionResolved(s rewards.RedemptionStatus) {
	m.RedemptionDecisions.WithLabelValues(string(s)).Inc()
}

func (m *Metrics) MissionCompleted(c generic.Cadence) {
	m.MissionsCompleted.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) MissionClaimed(c generic.Cadence) {
	m.MissionsClaimed.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) MedalPromoted(medal rewards.Medal) {
	m.MedalPromotions.WithLabelValues(string(medal)).Inc()
}

// =============================================================================
// HTTP
// =============================================================================

// Middleware records request count and duration per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

// RecordDBPoolStats records database connection pool statistics.
func (m *Metrics) RecordDBPoolStats(s sql.DBStats) {
	m.DBConnPoolStats.WithLabelValues("open").Set(float64(s.OpenConnections))
	m.DBConnPoolStats.WithLabelValues("in_use").Set(float64(s.InUse))
	m.DBConnPoolStats.WithLabelValues("idle").Set(float64(s.Idle))
	m.DBConnPoolStats.WithLabelValues("wait_count").Set(float64(s.WaitCount))
	m.DBConnPoolStats.WithLabelValues("wait_duration_ms").Set(float64(s.WaitDuration.Milliseconds()))
}
