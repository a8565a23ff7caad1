/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind proxies
  3. AccessLog:  Structured request logging (logrus)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request counters and latency
  6. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /health               Liveness and database ping
  /metrics              Prometheus exposition
  /api/users/*          Profiles, ledger, claims, missions, redemptions
  /api/logs/*           Claim review
  /api/redemptions/*    Redemption review
  /api/actions, /api/prizes, /api/missions, /api/events, /api/settings
  /api/scenarios/*      Demo scenarios
  /api/catalog/*        Catalog export and import
  /*                    Static files (frontend)

STATIC FILE SERVING:
  Serves a built frontend from WEB_DIR (default web/dist) when present.
  Falls back to index.html for client-side routing.

SEE ALSO:
  - handlers.go: Handler implementations
  - metrics/metrics.go: Request instrumentation
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/warp/recognition-engine/logger"
	"github.com/warp/recognition-engine/metrics"
)

// NewRouter creates a new router with all routes configured. A nil m
// disables request metrics and the /metrics endpoint.
func NewRouter(h *Handler, m *metrics.Metrics, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(h.Log))
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Put("/", h.UpdateUser)
				r.Delete("/", h.DeleteUser)
				r.Post("/password", h.ChangePassword)
				r.Get("/ledger", h.GetLedger)
				r.Get("/history", h.GetHistory)
				r.Post("/logs", h.SubmitLog)
				r.Post("/logs/bulk", h.BulkDecide)
				r.Get("/missions", h.MissionBoard)
				r.Post("/missions/{missionId}/claim", h.ClaimMission)
				r.Post("/redemptions", h.RequestRedemption)
				r.Get("/notifications", h.ListNotifications)
				r.Post("/notifications/read", h.MarkNotificationsRead)
			})
		})

		// Claim review
		r.Route("/logs", func(r chi.Router) {
			r.Get("/", h.ListLogs)
			r.Post("/{id}/decision", h.DecideLog)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/logs", h.AdminLog)
		})

		r.Route("/redemptions", func(r chi.Router) {
			r.Get("/", h.ListRedemptions)
			r.Post("/{id}/decision", h.ResolveRedemption)
		})

		r.Get("/leaderboard", h.Leaderboard)

		// Catalog
		r.Route("/actions", func(r chi.Router) {
			r.Get("/", h.ListActions)
			r.Post("/", h.SaveAction)
			r.Get("/{id}", h.GetAction)
			r.Put("/{id}", h.SaveAction)
			r.Delete("/{id}", h.DeleteAction)
		})
		r.Route("/prizes", func(r chi.Router) {
			r.Get("/", h.ListPrizes)
			r.Post("/", h.SavePrize)
			r.Get("/{id}", h.GetPrize)
			r.Put("/{id}", h.SavePrize)
			r.Delete("/{id}", h.DeletePrize)
		})
		r.Route("/missions", func(r chi.Router) {
			r.Get("/", h.ListMissions)
			r.Post("/", h.SaveMission)
			r.Get("/{id}", h.GetMission)
			r.Put("/{id}", h.SaveMission)
			r.Delete("/{id}", h.DeleteMission)
		})
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Post("/", h.SaveEvent)
			r.Get("/active", h.ActiveEvent)
			r.Get("/{id}", h.GetEvent)
			r.Put("/{id}", h.SaveEvent)
			r.Delete("/{id}", h.DeleteEvent)
		})

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Post("/notifications", h.SendMessage)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})

		r.Get("/catalog", h.ExportCatalog)
		r.Post("/catalog/import", h.ImportCatalog)
	})

	mountStatic(r)
	return r
}

// AccessLog writes one structured line per request.
func AccessLog(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := logger.WithRequestID(log, middleware.GetReqID(r.Context())).WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
			})
			switch {
			case status >= 500:
				entry.Error("request completed")
			case status >= 400:
				entry.Warn("request completed")
			default:
				entry.Info("request completed")
			}
		})
	}
}

func mountStatic(r chi.Router) {
	staticDir := os.Getenv("WEB_DIR")
	if staticDir == "" {
		staticDir = "./web/dist"
	}
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		// Try relative to executable
		exe, _ := os.Executable()
		staticDir = filepath.Join(filepath.Dir(exe), "web", "dist")
	}

	if _, err := os.Stat(staticDir); err == nil {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
			fullPath := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
			if _, err := os.Stat(fullPath); os.IsNotExist(err) {
				// SPA routing: serve index.html
				http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
				return
			}
			fileServer.ServeHTTP(w, r)
		})
		return
	}

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Recognition Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Recognition Engine API</h1>
<p>No frontend build found. Set WEB_DIR to serve one.</p>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/users">/api/users</a> - List users</li>
<li><a href="/api/actions">/api/actions</a> - Action catalog</li>
<li><a href="/api/prizes">/api/prizes</a> - Prize catalog</li>
<li><a href="/api/leaderboard">/api/leaderboard</a> - Monthly ranking</li>
<li><a href="/api/scenarios">/api/scenarios</a> - List scenarios</li>
</ul>
</body>
</html>`))
	})
}
