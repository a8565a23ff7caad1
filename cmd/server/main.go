/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the recognition engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Initialize structured logging
  3. Initialize SQLite store and the engine
  4. Seed an empty database from CATALOG_FILE or SEED_SCENARIO
  5. Configure HTTP router with metrics
  6. Start the special-event announcer
  7. Start server with graceful shutdown

CONFIGURATION:
  See config/config.go for every key. The common ones:
  -port      PORT          HTTP server port (default: 8080)
  -db        DB_PATH       SQLite database path (default: recognition.db)
                           Use ":memory:" for in-memory database
  -catalog   CATALOG_FILE  Catalog JSON imported into an empty database
  -scenario  SEED_SCENARIO Demo scenario loaded into an empty database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the announcer
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with the demo data in memory
  ./server -db=":memory:" -scenario=demo

  # Run on different port with readable logs
  ./server -port=3000 -log-format=text -log-level=debug

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/recognition-engine/api"
	"github.com/warp/recognition-engine/config"
	"github.com/warp/recognition-engine/logger"
	"github.com/warp/recognition-engine/metrics"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := logger.New("recognition-engine", cfg.LogLevel, cfg.LogFormat)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	m := metrics.NewMetrics("api")

	engine := rewards.NewEngine(store)
	engine.Log = log
	engine.Metrics = m
	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("Invalid timezone")
	}
	engine.Location = loc

	handler := api.NewHandler(engine, store)

	if err := seed(context.Background(), handler, cfg); err != nil {
		log.WithError(err).Fatal("Failed to seed database")
	}

	router := api.NewRouter(handler, m, cfg.AllowedOrigins)

	announcer := api.NewEventAnnouncer(engine, cfg.AnnounceInterval)
	announcer.Store = store
	announcer.Metrics = m
	if err := announcer.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start announcer")
	}

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.Addr(),
			"db":       cfg.DBPath,
			"timezone": cfg.Timezone,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if err := announcer.Stop(); err != nil {
		log.WithError(err).Warn("Announcer did not stop cleanly")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		return
	}

	log.Info("Server stopped")
}

// seed fills an empty database from the configured catalog file or
// scenario. A database that already has users is left alone.
func seed(ctx context.Context, h *api.Handler, cfg *config.Config) error {
	if cfg.CatalogFile == "" && cfg.SeedScenario == "" {
		return nil
	}
	users, err := h.Engine.Users(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		h.Log.WithField("users", len(users)).Info("Database already populated, skipping seed")
		return nil
	}

	if cfg.CatalogFile != "" {
		snap, err := h.Catalog.LoadFile(cfg.CatalogFile, h.Engine.Clock())
		if err != nil {
			return err
		}
		if err := h.Engine.Import(ctx, snap); err != nil {
			return err
		}
		h.Log.WithFields(logrus.Fields{
			"file":    cfg.CatalogFile,
			"users":   len(snap.Users),
			"actions": len(snap.Actions),
		}).Info("Catalog imported")
		return nil
	}
	return h.LoadScenarioByID(ctx, cfg.SeedScenario)
}
