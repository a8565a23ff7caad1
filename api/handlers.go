/*
handlers.go - HTTP API handlers for the recognition engine

PURPOSE:
  Exposes the recognition engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Users:
    POST   /api/login                          Username/password check
    GET    /api/users                          List users
    POST   /api/users                          Create user (opening points)
    GET    /api/users/{id}                     Profile: balance, medal progress
    PUT    /api/users/{id}                     Update name, username, role
    DELETE /api/users/{id}                     Delete a user with no history
    POST   /api/users/{id}/password            Change password
    GET    /api/users/{id}/ledger?month=|from=&to=  Transactions with running balance
    GET    /api/users/{id}/history             Monthly earned/redeemed/medal

  Logged actions:
    POST   /api/users/{id}/logs                Submit a claim
    POST   /api/users/{id}/logs/bulk           Validate or reject all pending
    GET    /api/logs?status=&user_id=&month=   List claims
    POST   /api/logs/{id}/decision             Validate or reject one claim
    POST   /api/admin/logs                     Admin direct log

  Missions:
    GET    /api/users/{id}/missions            Mission board
    POST   /api/users/{id}/missions/{missionId}/claim

  Redemptions:
    POST   /api/users/{id}/redemptions         Request a prize
    GET    /api/redemptions?status=&user_id=   List requests
    POST   /api/redemptions/{id}/decision      Approve or refuse

  Catalog and administration:
    /api/actions, /api/prizes, /api/missions, /api/events (CRUD)
    GET    /api/events/active                  Event consulted today
    GET    /api/settings    PUT /api/settings  Logging and redemption locks
    GET    /api/leaderboard?month=             Analysts ranked by month points

  Notifications:
    GET    /api/users/{id}/notifications
    POST   /api/users/{id}/notifications/read
    POST   /api/notifications                  Admin message, id or "all"

  Scenarios and catalog:
    GET    /api/scenarios                      Available scenarios
    GET    /api/scenarios/current              Loaded scenario or null
    POST   /api/scenarios/load                 Replace data with a scenario
    POST   /api/scenarios/reset                Wipe all data
    GET    /api/catalog                        Export catalog JSON
    POST   /api/catalog/import                 Replace data from catalog JSON

  GET    /health                               Liveness

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Bad credentials
  - 404: Referenced entity not found
  - 409: Refused by a business rule (locks, balance, state)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Actor ids (validator, admin, sender) are
  taken from the request body and checked for role by the engine.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/warp/recognition-engine/factory"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/logger"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *rewards.Engine
	Store     *sqlite.Store
	Catalog   *factory.CatalogFactory
	Validator *RequestValidator
	Log       logrus.FieldLogger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over an engine backed by store.
func NewHandler(engine *rewards.Engine, store *sqlite.Store) *Handler {
	log := engine.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Engine:    engine,
		Store:     store,
		Catalog:   factory.NewCatalogFactory(),
		Validator: NewRequestValidator(),
		Log:       log,
	}
}

// Health reports whether the database answers.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// Login returns the user whose credentials match.
// POST /api/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	u, err := h.Engine.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeEngineError(w, r, "Login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Engine.Users(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "Failed to list users", err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates a user with an optional opening balance.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	u, err := h.Engine.CreateUser(r.Context(), rewards.User{
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
		Role:     rewards.Role(req.Role),
	}, req.Points)
	if err != nil {
		h.writeEngineError(w, r, "Failed to create user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*u))
}

// GetUser returns the user's profile with balance and medal progress.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	p, err := h.Engine.Profile(r.Context(), rewards.UserID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get user", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p))
}

// UpdateUser changes name, username and role.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	var req UpdateUserRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	u, err := h.Engine.UpdateUser(r.Context(), rewards.User{
		ID:       rewards.UserID(id),
		Name:     req.Name,
		Username: req.Username,
		Password: req.Password,
		Role:     rewards.Role(req.Role),
	})
	if err != nil {
		h.writeEngineError(w, r, "Failed to update user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// DeleteUser removes a user with no points history.
// DELETE /api/users/{id}  {"admin_id": 2}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	var req DeleteUserRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	if err := h.Engine.DeleteUser(r.Context(), rewards.UserID(req.AdminID), rewards.UserID(id)); err != nil {
		h.writeEngineError(w, r, "Failed to delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// ChangePassword replaces the password after checking the current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	var req ChangePasswordRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	if err := h.Engine.ChangePassword(r.Context(), rewards.UserID(id), req.Current, req.Next); err != nil {
		h.writeEngineError(w, r, "Failed to change password", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}

// GetLedger returns the user's transactions with running balances.
// Restricted to a month or to a from/to range, the summary is the net
// change over that range.
// GET /api/users/{id}/ledger?month=2024-07
// GET /api/users/{id}/ledger?from=2024-07-01&to=2024-07-15
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	from, to, ranged, err := h.ledgerRange(r)
	if err != nil {
		h.writeEngineError(w, r, "Invalid ledger range", err)
		return
	}

	var (
		txs     []generic.Transaction
		summary generic.BalanceSummary
	)
	if ranged {
		txs, summary, err = h.Engine.StatementBetween(r.Context(), rewards.UserID(id), from, to)
	} else {
		txs, summary, err = h.Engine.Statement(r.Context(), rewards.UserID(id))
	}
	if err != nil {
		h.writeEngineError(w, r, "Failed to get ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerDTO{
		UserID:       id,
		Balance:      summary.Balance.IntPart(),
		Earned:       summary.Earned.IntPart(),
		Adjustments:  summary.Adjustments.IntPart(),
		Pending:      summary.Pending.IntPart(),
		Consumed:     summary.Consumed.IntPart(),
		Transactions: toTransactionDTOs(txs),
	})
}

// ledgerRange reads month or from/to. Both range bounds are required.
func (h *Handler) ledgerRange(r *http.Request) (from, to generic.TimePoint, ranged bool, err error) {
	q := r.URL.Query()
	month, fromStr, toStr := q.Get("month"), q.Get("from"), q.Get("to")

	if month != "" {
		if fromStr != "" || toStr != "" {
			return from, to, false, fmt.Errorf("%w: month cannot be combined with from/to", ErrValidation)
		}
		if err := h.Validator.Var("month", month, "yearmonth"); err != nil {
			return from, to, false, err
		}
		from, err = generic.ParseMonth(month)
		if err != nil {
			return from, to, false, err
		}
		return from, generic.EndOfMonth(from.Year(), from.Month()), true, nil
	}
	if fromStr == "" && toStr == "" {
		return from, to, false, nil
	}
	if fromStr == "" || toStr == "" {
		return from, to, false, fmt.Errorf("%w: from and to are both required", ErrValidation)
	}
	if from, err = generic.ParseDate(fromStr); err != nil {
		return from, to, false, err
	}
	if to, err = generic.ParseDate(toStr); err != nil {
		return from, to, false, err
	}
	return from, to, true, nil
}

// GetHistory returns the user's month-by-month summary.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	entries, err := h.Engine.History(r.Context(), rewards.UserID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get history", err)
		return
	}
	dtos := make([]HistoryEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, HistoryEntryDTO{Month: e.Month, Earned: e.Earned, Redeemed: e.Redeemed, Medal: string(e.Medal)})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LOGGED ACTION HANDLERS
// =============================================================================

// SubmitLog records a pending claim for the current month.
// POST /api/users/{id}/logs
func (h *Handler) SubmitLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	var req SubmitLogRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	l, err := h.Engine.Submit(r.Context(), rewards.UserID(id), rewards.ActionID(req.ActionID), req.Notes)
	if err != nil {
		h.writeEngineError(w, r, "Failed to submit action", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLogDTO(*l))
}

// BulkDecide validates or rejects every pending claim of a user.
// POST /api/users/{id}/logs/bulk
func (h *Handler) BulkDecide(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	var req DecisionRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	res, err := h.Engine.BulkDecide(r.Context(), rewards.UserID(id), rewards.UserID(req.ValidatorID), rewards.LogStatus(req.Decision))
	if err != nil {
		h.writeEngineError(w, r, "Failed to decide actions", err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(res))
}

// ListLogs returns claims filtered by status, user and month.
// GET /api/logs?status=pending_validation&user_id=2&month=2024-07
func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.Validator.Var("status", q.Get("status"), "omitempty,oneof=pending_validation validated rejected"); err != nil {
		h.writeEngineError(w, r, "Invalid query", err)
		return
	}
	if err := h.Validator.Var("month", q.Get("month"), "omitempty,yearmonth"); err != nil {
		h.writeEngineError(w, r, "Invalid query", err)
		return
	}
	userID, err := queryID(r, "user_id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid query", err)
		return
	}

	ctx := r.Context()
	logs, err := h.Engine.Repo.ListLogs(ctx, rewards.LogFilter{
		UserID: rewards.UserID(userID),
		Status: rewards.LogStatus(q.Get("status")),
		Month:  q.Get("month"),
	})
	if err != nil {
		h.writeEngineError(w, r, "Failed to list actions", err)
		return
	}
	actions, err := h.actionIndex(r)
	if err != nil {
		h.writeEngineError(w, r, "Failed to list actions", err)
		return
	}

	dtos := make([]LogDTO, 0, len(logs))
	for _, l := range logs {
		dto := toLogDTO(l)
		if a, ok := actions[l.ActionID]; ok {
			dto.Action = &a
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DecideLog validates or rejects one claim.
// POST /api/logs/{id}/decision
func (h *Handler) DecideLog(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid log id", err)
		return
	}
	var req DecisionRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	d, err := h.Engine.DecideLog(r.Context(), rewards.LogID(id), rewards.UserID(req.ValidatorID), rewards.LogStatus(req.Decision))
	if err != nil {
		h.writeEngineError(w, r, "Failed to decide action", err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(*d))
}

// AdminLog records an already validated action for a user.
// POST /api/admin/logs
func (h *Handler) AdminLog(w http.ResponseWriter, r *http.Request) {
	var req AdminLogRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	d, err := h.Engine.AdminLog(r.Context(), rewards.UserID(req.AdminID), rewards.UserID(req.UserID), rewards.ActionID(req.ActionID), req.Notes)
	if err != nil {
		h.writeEngineError(w, r, "Failed to log action", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDecisionDTO(*d))
}

// =============================================================================
// MISSION HANDLERS
// =============================================================================

// MissionBoard lists global missions with the user's current progress.
// GET /api/users/{id}/missions
func (h *Handler) MissionBoard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	views, err := h.Engine.MissionBoard(r.Context(), rewards.UserID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get missions", err)
		return
	}
	dtos := make([]MissionViewDTO, 0, len(views))
	for _, v := range views {
		dtos = append(dtos, MissionViewDTO{
			Mission:     toMissionDTO(v.Mission),
			Progress:    toProgressDTO(v.Progress),
			PeriodStart: v.Period.Start.String(),
			PeriodEnd:   v.Period.End.String(),
			DaysLeft:    v.DaysLeft,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClaimMission pays out a completed mission.
// POST /api/users/{id}/missions/{missionId}/claim
func (h *Handler) ClaimMission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	missionID, err := pathID(r, "missionId")
	if err != nil {
		h.writeEngineError(w, r, "Invalid mission id", err)
		return
	}
	var req ClaimRequest
	if r.ContentLength != 0 {
		if err := h.Validator.Decode(r, &req); err != nil {
			h.writeEngineError(w, r, "Invalid request body", err)
			return
		}
	}
	p, err := h.Engine.Claim(r.Context(), rewards.UserID(id), rewards.MissionID(missionID), req.Period)
	if err != nil {
		h.writeEngineError(w, r, "Failed to claim mission", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(*p))
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// RequestRedemption debits the prize cost and opens a request.
// POST /api/users/{id}/redemptions
func (h *Handler) RequestRedemption(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	var req RedemptionRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	red, err := h.Engine.RequestRedemption(r.Context(), rewards.UserID(id), rewards.PrizeID(req.PrizeID))
	if err != nil {
		h.writeEngineError(w, r, "Failed to request prize", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRedemptionDTO(*red))
}

// ListRedemptions returns redemption requests filtered by status and user.
// GET /api/redemptions?status=pending_approval
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.Validator.Var("status", q.Get("status"), "omitempty,oneof=pending_approval approved refused"); err != nil {
		h.writeEngineError(w, r, "Invalid query", err)
		return
	}
	userID, err := queryID(r, "user_id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid query", err)
		return
	}

	ctx := r.Context()
	reds, err := h.Engine.Repo.ListRedemptions(ctx, rewards.RedemptionFilter{
		UserID: rewards.UserID(userID),
		Status: rewards.RedemptionStatus(q.Get("status")),
	})
	if err != nil {
		h.writeEngineError(w, r, "Failed to list redemptions", err)
		return
	}
	prizes, err := h.Engine.Prizes(ctx)
	if err != nil {
		h.writeEngineError(w, r, "Failed to list redemptions", err)
		return
	}
	byID := make(map[rewards.PrizeID]PrizeDTO, len(prizes))
	for _, p := range prizes {
		byID[p.ID] = toPrizeDTO(p)
	}

	dtos := make([]RedemptionDTO, 0, len(reds))
	for _, red := range reds {
		dto := toRedemptionDTO(red)
		if p, ok := byID[red.PrizeID]; ok {
			dto.Prize = &p
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResolveRedemption approves or refuses a pending request.
// POST /api/redemptions/{id}/decision
func (h *Handler) ResolveRedemption(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid redemption id", err)
		return
	}
	var req RedemptionDecisionRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	red, err := h.Engine.ResolveRedemption(r.Context(), rewards.RedemptionID(id), rewards.UserID(req.AdminID), rewards.RedemptionStatus(req.Decision))
	if err != nil {
		h.writeEngineError(w, r, "Failed to resolve redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(*red))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// Leaderboard ranks analysts for a month, the current one by default.
// GET /api/leaderboard?month=2024-07
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if err := h.Validator.Var("month", month, "omitempty,yearmonth"); err != nil {
		h.writeEngineError(w, r, "Invalid query", err)
		return
	}
	board, err := h.Engine.Leaderboard(r.Context(), month)
	if err != nil {
		h.writeEngineError(w, r, "Failed to build leaderboard", err)
		return
	}
	dtos := make([]LeaderboardEntryDTO, 0, len(board))
	for _, e := range board {
		dtos = append(dtos, LeaderboardEntryDTO{
			Rank:          e.Rank,
			User:          toUserDTO(e.User),
			MonthlyPoints: e.MonthlyPoints,
			Medal:         string(e.Medal),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.Engine.Actions(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "Failed to list actions", err)
		return
	}
	dtos := make([]ActionDTO, 0, len(actions))
	for _, a := range actions {
		dtos = append(dtos, toActionDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid action id", err)
		return
	}
	a, err := h.Engine.Action(r.Context(), rewards.ActionID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get action", err)
		return
	}
	writeJSON(w, http.StatusOK, toActionDTO(*a))
}

// SaveAction creates (POST) or replaces (PUT /{id}) an action.
func (h *Handler) SaveAction(w http.ResponseWriter, r *http.Request) {
	id, status, err := saveTarget(r)
	if err != nil {
		h.writeEngineError(w, r, "Invalid action id", err)
		return
	}
	var req ActionRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	a, err := h.Engine.SaveAction(r.Context(), req.toAction(rewards.ActionID(id)))
	if err != nil {
		h.writeEngineError(w, r, "Failed to save action", err)
		return
	}
	writeJSON(w, status, toActionDTO(*a))
}

func (h *Handler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid action id", err)
		return
	}
	if err := h.Engine.DeleteAction(r.Context(), rewards.ActionID(id)); err != nil {
		h.writeEngineError(w, r, "Failed to delete action", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) ListPrizes(w http.ResponseWriter, r *http.Request) {
	prizes, err := h.Engine.Prizes(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "Failed to list prizes", err)
		return
	}
	dtos := make([]PrizeDTO, 0, len(prizes))
	for _, p := range prizes {
		dtos = append(dtos, toPrizeDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetPrize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid prize id", err)
		return
	}
	p, err := h.Engine.Prize(r.Context(), rewards.PrizeID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get prize", err)
		return
	}
	writeJSON(w, http.StatusOK, toPrizeDTO(*p))
}

func (h *Handler) SavePrize(w http.ResponseWriter, r *http.Request) {
	id, status, err := saveTarget(r)
	if err != nil {
		h.writeEngineError(w, r, "Invalid prize id", err)
		return
	}
	var req PrizeRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	p, err := h.Engine.SavePrize(r.Context(), req.toPrize(rewards.PrizeID(id)))
	if err != nil {
		h.writeEngineError(w, r, "Failed to save prize", err)
		return
	}
	writeJSON(w, status, toPrizeDTO(*p))
}

func (h *Handler) DeletePrize(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid prize id", err)
		return
	}
	if err := h.Engine.DeletePrize(r.Context(), rewards.PrizeID(id)); err != nil {
		h.writeEngineError(w, r, "Failed to delete prize", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := h.Engine.Missions(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "Failed to list missions", err)
		return
	}
	dtos := make([]MissionDTO, 0, len(missions))
	for _, m := range missions {
		dtos = append(dtos, toMissionDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid mission id", err)
		return
	}
	m, err := h.Engine.Mission(r.Context(), rewards.MissionID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get mission", err)
		return
	}
	writeJSON(w, http.StatusOK, toMissionDTO(*m))
}

func (h *Handler) SaveMission(w http.ResponseWriter, r *http.Request) {
	id, status, err := saveTarget(r)
	if err != nil {
		h.writeEngineError(w, r, "Invalid mission id", err)
		return
	}
	var req MissionRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	m, err := h.Engine.SaveMission(r.Context(), req.toMission(rewards.MissionID(id)))
	if err != nil {
		h.writeEngineError(w, r, "Failed to save mission", err)
		return
	}
	writeJSON(w, status, toMissionDTO(*m))
}

func (h *Handler) DeleteMission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid mission id", err)
		return
	}
	if err := h.Engine.DeleteMission(r.Context(), rewards.MissionID(id)); err != nil {
		h.writeEngineError(w, r, "Failed to delete mission", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Engine.Events(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "Failed to list events", err)
		return
	}
	dtos := make([]EventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid event id", err)
		return
	}
	ev, err := h.Engine.Event(r.Context(), rewards.EventID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get event", err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(*ev))
}

// ActiveEvent returns the special event consulted today, or null.
// GET /api/events/active
func (h *Handler) ActiveEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Engine.ActiveEventToday(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "Failed to get active event", err)
		return
	}
	if ev == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(*ev))
}

func (h *Handler) SaveEvent(w http.ResponseWriter, r *http.Request) {
	id, status, err := saveTarget(r)
	if err != nil {
		h.writeEngineError(w, r, "Invalid event id", err)
		return
	}
	var req EventRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	ev, err := h.Engine.SaveEvent(r.Context(), req.toEvent(rewards.EventID(id)))
	if err != nil {
		h.writeEngineError(w, r, "Failed to save event", err)
		return
	}
	writeJSON(w, status, toEventDTO(*ev))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid event id", err)
		return
	}
	if err := h.Engine.DeleteEvent(r.Context(), rewards.EventID(id)); err != nil {
		h.writeEngineError(w, r, "Failed to delete event", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// =============================================================================
// SETTINGS AND NOTIFICATIONS
// =============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Settings(r.Context())
	if err != nil {
		h.writeEngineError(w, r, "Failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	s, err := h.Engine.UpdateSettings(r.Context(), req.toSettings())
	if err != nil {
		h.writeEngineError(w, r, "Failed to update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsDTO(s))
}

// ListNotifications returns the user's own and broadcast notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	ns, err := h.Engine.Notifications(r.Context(), rewards.UserID(id))
	if err != nil {
		h.writeEngineError(w, r, "Failed to list notifications", err)
		return
	}
	dtos := make([]NotificationDTO, 0, len(ns))
	for _, n := range ns {
		dtos = append(dtos, toNotificationDTO(n))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeEngineError(w, r, "Invalid user id", err)
		return
	}
	if err := h.Engine.MarkRead(r.Context(), rewards.UserID(id)); err != nil {
		h.writeEngineError(w, r, "Failed to mark notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "read"})
}

// SendMessage lets an admin message one user or everyone.
// POST /api/notifications
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := h.Validator.Decode(r, &req); err != nil {
		h.writeEngineError(w, r, "Invalid request body", err)
		return
	}
	recipient := rewards.Broadcast
	if req.Recipient != "all" {
		id, err := strconv.ParseInt(req.Recipient, 10, 64)
		if err != nil || id <= 0 {
			h.writeEngineError(w, r, "Invalid recipient", fmt.Errorf("%w: recipient must be a user id or \"all\"", ErrValidation))
			return
		}
		recipient = rewards.UserID(id)
	}
	n, err := h.Engine.SendMessage(r.Context(), rewards.UserID(req.SenderID), recipient, req.Message)
	if err != nil {
		h.writeEngineError(w, r, "Failed to send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, toNotificationDTO(*n))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) actionIndex(r *http.Request) (map[rewards.ActionID]ActionDTO, error) {
	actions, err := h.Engine.Actions(r.Context())
	if err != nil {
		return nil, err
	}
	out := make(map[rewards.ActionID]ActionDTO, len(actions))
	for _, a := range actions {
		out[a.ID] = toActionDTO(a)
	}
	return out, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q is not a positive integer", ErrValidation, name, raw)
	}
	return id, nil
}

// queryID reads an optional positive id; absent is zero.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q is not a positive integer", ErrValidation, name, raw)
	}
	return id, nil
}

// saveTarget distinguishes create (POST, no id) from replace (PUT /{id}).
func saveTarget(r *http.Request) (int64, int, error) {
	if chi.URLParam(r, "id") == "" {
		return 0, http.StatusCreated, nil
	}
	id, err := pathID(r, "id")
	return id, http.StatusOK, err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine and validation errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, factory.ErrInvalidCatalogJSON),
		errors.Is(err, rewards.ErrInvalidCatalog),
		errors.Is(err, rewards.ErrInvalidDecision),
		errors.Is(err, generic.ErrInvalidDate),
		errors.Is(err, generic.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, rewards.ErrBadCredentials):
		return http.StatusUnauthorized
	case rewards.IsNotFound(err):
		return http.StatusNotFound
	case rewards.IsPrecondition(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithRequestID(h.Log, middleware.GetReqID(r.Context())).
			WithError(err).
			WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).
			Error(message)
		writeError(w, status, message, errors.New(strings.ToLower(http.StatusText(status))))
		return
	}
	writeError(w, status, message, err)
}
