/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario resets the store and imports a catalog
	snapshot through the engine, so balances always come from the ledger.

AVAILABLE SCENARIOS:

	demo:           The seed catalog: 21 users, 35 actions, 30 prizes,
	                3 missions, sample logs and redemptions
	double-points:  demo plus a week-long double points event on
	                "Inovação" starting today
	empty:          A single admin account and nothing else

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "double-points"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - factory/catalog.go: Catalog JSON and the embedded seed
  - rewards/import.go: Snapshot import
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/warp/recognition-engine/factory"
	"github.com/warp/recognition-engine/rewards"
)

// ErrUnknownScenario is returned for scenario ids not in the list.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "demo",
		Name:        "Demo Company",
		Description: "Seed catalog with analysts, actions, prizes, missions and pending work",
	},
	{
		ID:          "double-points",
		Name:        "Innovation Week",
		Description: "Demo company with a double points event on Inovação running this week",
	},
	{
		ID:          "empty",
		Name:        "Empty",
		Description: "Only an admin account (admin / admin)",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		h.writeEngineError(w, r, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every table.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeEngineError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// LoadScenarioByID resets the store and imports the scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap, err := h.scenarioSnapshot(id)
	if err != nil {
		return err
	}
	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""
	if err := h.Engine.Import(ctx, snap); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.currentScenario = id

	h.Log.WithFields(logrus.Fields{
		"scenario": id,
		"users":    len(snap.Users),
		"actions":  len(snap.Actions),
	}).Info("scenario loaded")
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) scenarioSnapshot(id string) (rewards.Snapshot, error) {
	switch id {
	case "demo":
		return h.demoSnapshot()
	case "double-points":
		return h.doublePointsSnapshot()
	case "empty":
		return rewards.Snapshot{
			Users: []rewards.SeedUser{{User: rewards.User{
				ID: 1, Name: "Administrador", Username: "admin", Password: "admin", Role: rewards.RoleAdmin,
			}}},
		}, nil
	default:
		return rewards.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
}

func (h *Handler) demoSnapshot() (rewards.Snapshot, error) {
	return h.Catalog.ParseCatalog(factory.DemoCatalog(), h.Engine.Clock())
}

func (h *Handler) doublePointsSnapshot() (rewards.Snapshot, error) {
	snap, err := h.demoSnapshot()
	if err != nil {
		return snap, err
	}

	today := h.Engine.Today()
	var next rewards.EventID
	for _, ev := range snap.Events {
		if ev.ID > next {
			next = ev.ID
		}
	}
	snap.Events = append(snap.Events, rewards.SpecialEvent{
		ID:          next + 1,
		Name:        "Semana da Inovação",
		Description: "Pontos em dobro para ações de Inovação",
		Type:        rewards.EventDoublePointsCategory,
		Config:      rewards.EventConfig{Category: "Inovação"},
		Start:       today,
		End:         today.AddDays(6),
	})
	return snap, nil
}

// =============================================================================
// CATALOG IMPORT / EXPORT
// =============================================================================

// ExportCatalog returns the current catalog in the import format. Users
// carry their current balance as opening points.
// GET /api/catalog
func (h *Handler) ExportCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		snap rewards.Snapshot
		err  error
	)
	if snap.Actions, err = h.Engine.Actions(ctx); err != nil {
		h.writeEngineError(w, r, "Failed to export catalog", err)
		return
	}
	if snap.Prizes, err = h.Engine.Prizes(ctx); err != nil {
		h.writeEngineError(w, r, "Failed to export catalog", err)
		return
	}
	if snap.Missions, err = h.Engine.Missions(ctx); err != nil {
		h.writeEngineError(w, r, "Failed to export catalog", err)
		return
	}
	if snap.Events, err = h.Engine.Events(ctx); err != nil {
		h.writeEngineError(w, r, "Failed to export catalog", err)
		return
	}
	users, err := h.Engine.Users(ctx)
	if err != nil {
		h.writeEngineError(w, r, "Failed to export catalog", err)
		return
	}
	for _, u := range users {
		balance, err := h.Engine.Balance(ctx, u.ID)
		if err != nil {
			h.writeEngineError(w, r, "Failed to export catalog", err)
			return
		}
		snap.Users = append(snap.Users, rewards.SeedUser{User: u, Points: balance})
	}
	settings, err := h.Engine.Settings(ctx)
	if err != nil {
		h.writeEngineError(w, r, "Failed to export catalog", err)
		return
	}
	snap.Settings = &settings

	writeJSON(w, http.StatusOK, h.Catalog.ToJSON(snap))
}

// ImportCatalog replaces the database with a posted catalog.
// POST /api/catalog/import
func (h *Handler) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCatalogBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	snap, err := h.Catalog.ParseCatalog(data, h.Engine.Clock())
	if err != nil {
		h.writeEngineError(w, r, "Invalid catalog", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeEngineError(w, r, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	if err := h.Engine.Import(r.Context(), snap); err != nil {
		h.writeEngineError(w, r, "Failed to import catalog", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "imported",
		"users":   len(snap.Users),
		"actions": len(snap.Actions),
		"prizes":  len(snap.Prizes),
	})
}

const maxCatalogBytes = 10 << 20
