/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Error mapping (validation, not found, conflict, credentials)
- Submit and decide flows, including the ledger view
- Redemption refund on refusal
- Mission claim through the board
- Notifications and metrics exposure
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/factory"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/metrics"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/store/sqlite"
)

// =============================================================================
// FIXTURE
// =============================================================================

// Wednesday of 2024-W30.
var fixedNow = time.Date(2024, 7, 24, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
	metrics *metrics.Metrics
	logs    *logtest.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log, hook := logtest.NewNullLogger()
	engine := rewards.NewEngine(store)
	engine.Now = func() time.Time { return fixedNow }
	engine.Log = log

	m := metrics.NewMetrics("test")
	engine.Metrics = m

	h := NewHandler(engine, store)
	return &testServer{t: t, handler: h, router: NewRouter(h, m, nil), metrics: m, logs: hook}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// expect performs the request and fails unless the status matches.
func (s *testServer) expect(status int, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	rec := s.do(method, path, body)
	require.Equal(s.t, status, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createUser(username, role string, points int64) UserDTO {
	s.t.Helper()
	rec := s.expect(http.StatusCreated, http.MethodPost, "/api/users", CreateUserRequest{
		Name: username, Username: username, Password: "secret", Role: role, Points: points,
	})
	return decode[UserDTO](s.t, rec)
}

func (s *testServer) createAction(category string, points int64) ActionDTO {
	s.t.Helper()
	rec := s.expect(http.StatusCreated, http.MethodPost, "/api/actions", ActionRequest{
		Category: category, Description: category + " action", Points: points, Validator: "Liderança",
	})
	return decode[ActionDTO](s.t, rec)
}

func (s *testServer) createPrize(cost int64) PrizeDTO {
	s.t.Helper()
	rec := s.expect(http.StatusCreated, http.MethodPost, "/api/prizes", PrizeRequest{
		Category: "Até 550", Description: "Day off", Cost: cost,
	})
	return decode[PrizeDTO](s.t, rec)
}

func (s *testServer) submit(userID, actionID int64) LogDTO {
	s.t.Helper()
	rec := s.expect(http.StatusCreated, http.MethodPost, fmt.Sprintf("/api/users/%d/logs", userID),
		SubmitLogRequest{ActionID: actionID})
	return decode[LogDTO](s.t, rec)
}

func (s *testServer) ledger(userID int64) LedgerDTO {
	s.t.Helper()
	rec := s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/users/%d/ledger", userID), nil)
	return decode[LedgerDTO](s.t, rec)
}

// =============================================================================
// HEALTH AND USERS
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.expect(http.StatusOK, http.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUsers_CreateAndProfile(t *testing.T) {
	// GIVEN: An analyst created with an opening balance
	s := newTestServer(t)
	u := s.createUser("ana", "Analyst", 600)

	// WHEN: The profile is read
	rec := s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/users/%d", u.ID), nil)
	p := decode[ProfileDTO](t, rec)

	// THEN: Points come from the ledger and medal progress starts at Bronze
	assert.Equal(t, "ana", p.Username)
	assert.Equal(t, int64(600), p.Points)
	assert.Equal(t, int64(600), p.Adjustments)
	assert.Equal(t, "2024-07", p.Month)
	assert.Equal(t, int64(0), p.MonthlyPoints)
	assert.Equal(t, "Bronze", p.Tier.Current)
	assert.Equal(t, "Silver", p.Tier.Next)
	assert.Equal(t, int64(551), p.Tier.PointsNeeded)

	users := decode[[]UserDTO](t, s.expect(http.StatusOK, http.MethodGet, "/api/users", nil))
	assert.Len(t, users, 1)
}

func TestUsers_Errors(t *testing.T) {
	s := newTestServer(t)
	s.createUser("ana", "Analyst", 0)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		details string
	}{
		{"unknown role", http.MethodPost, "/api/users",
			CreateUserRequest{Name: "X", Username: "x", Password: "p", Role: "Boss"}, http.StatusBadRequest, "role must be one of"},
		{"negative opening", http.MethodPost, "/api/users",
			CreateUserRequest{Name: "X", Username: "x", Password: "p", Role: "Analyst", Points: -5}, http.StatusBadRequest, "points must be at least 0"},
		{"unknown field", http.MethodPost, "/api/users",
			map[string]any{"name": "X", "username": "x", "password": "p", "role": "Analyst", "age": 30}, http.StatusBadRequest, "unknown field"},
		{"duplicate username", http.MethodPost, "/api/users",
			CreateUserRequest{Name: "Other", Username: "ana", Password: "p", Role: "Analyst"}, http.StatusConflict, "username"},
		{"missing user", http.MethodGet, "/api/users/999", nil, http.StatusNotFound, "not found"},
		{"bad id", http.MethodGet, "/api/users/abc", nil, http.StatusBadRequest, "positive integer"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Contains(t, decode[ErrorResponse](t, rec).Details, tc.details)
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	u := s.createUser("ana", "Analyst", 0)

	rec := s.expect(http.StatusOK, http.MethodPost, "/api/login", LoginRequest{Username: "ana", Password: "secret"})
	assert.Equal(t, u.ID, decode[UserDTO](t, rec).ID)

	s.expect(http.StatusUnauthorized, http.MethodPost, "/api/login", LoginRequest{Username: "ana", Password: "nope"})
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/login", LoginRequest{Username: "ana"})
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	u := s.createUser("ana", "Analyst", 0)
	path := fmt.Sprintf("/api/users/%d/password", u.ID)

	s.expect(http.StatusUnauthorized, http.MethodPost, path, ChangePasswordRequest{Current: "wrong", Next: "n"})
	s.expect(http.StatusOK, http.MethodPost, path, ChangePasswordRequest{Current: "secret", Next: "n3w"})
	s.expect(http.StatusOK, http.MethodPost, "/api/login", LoginRequest{Username: "ana", Password: "n3w"})
}

func TestDeleteUser(t *testing.T) {
	// GIVEN: An admin, a newcomer and a user with opening points
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	newcomer := s.createUser("novo", "Analyst", 0)
	funded := s.createUser("bia", "Analyst", 100)

	// WHEN/THEN: History and self-deletion are refused
	s.expect(http.StatusConflict, http.MethodDelete, fmt.Sprintf("/api/users/%d", funded.ID), DeleteUserRequest{AdminID: admin.ID})
	s.expect(http.StatusConflict, http.MethodDelete, fmt.Sprintf("/api/users/%d", admin.ID), DeleteUserRequest{AdminID: admin.ID})
	s.expect(http.StatusBadRequest, http.MethodDelete, fmt.Sprintf("/api/users/%d", newcomer.ID), nil)

	// WHEN/THEN: A user with no history is removed
	s.expect(http.StatusOK, http.MethodDelete, fmt.Sprintf("/api/users/%d", newcomer.ID), DeleteUserRequest{AdminID: admin.ID})
	s.expect(http.StatusNotFound, http.MethodGet, fmt.Sprintf("/api/users/%d", newcomer.ID), nil)
	s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/users/%d", funded.ID), nil)
}

func TestLedger_Range(t *testing.T) {
	s := newTestServer(t)
	u := s.createUser("ana", "Analyst", 300)
	base := fmt.Sprintf("/api/users/%d/ledger", u.ID)

	july := decode[LedgerDTO](t, s.expect(http.StatusOK, http.MethodGet, base+"?month=2024-07", nil))
	assert.Len(t, july.Transactions, 1)
	assert.Equal(t, int64(300), july.Balance)

	june := decode[LedgerDTO](t, s.expect(http.StatusOK, http.MethodGet, base+"?month=2024-06", nil))
	assert.Empty(t, june.Transactions)
	assert.Zero(t, june.Balance)

	day := decode[LedgerDTO](t, s.expect(http.StatusOK, http.MethodGet, base+"?from=2024-07-24&to=2024-07-24", nil))
	assert.Len(t, day.Transactions, 1)

	for _, q := range []string{
		"?month=2024-7",
		"?month=2024-07&from=2024-07-01",
		"?from=2024-07-01",
		"?from=2024-07-31&to=2024-07-01",
		"?from=2024-02-30&to=2024-03-01",
	} {
		s.expect(http.StatusBadRequest, http.MethodGet, base+q, nil)
	}
	s.expect(http.StatusNotFound, http.MethodGet, "/api/users/999/ledger?month=2024-07", nil)
}

// =============================================================================
// LOGGED ACTIONS
// =============================================================================

func TestSubmitAndDecide(t *testing.T) {
	// GIVEN: An admin, an analyst and a 120 point action
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 0)
	action := s.createAction("Excelência no Atendimento", 120)

	// WHEN: The analyst submits a claim
	l := s.submit(ana.ID, action.ID)

	// THEN: It is pending for the current month and shows up in the queue
	assert.Equal(t, "pending_validation", l.Status)
	assert.Equal(t, "2024-07", l.Month)

	pending := decode[[]LogDTO](t, s.expect(http.StatusOK, http.MethodGet, "/api/logs?status=pending_validation", nil))
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].Action)
	assert.Equal(t, int64(120), pending[0].Action.Points)

	// WHEN: The admin validates it
	rec := s.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/logs/%d/decision", l.ID),
		DecisionRequest{ValidatorID: admin.ID, Decision: "validated"})
	d := decode[DecisionDTO](t, rec)

	// THEN: The points are credited and recorded on the ledger
	assert.Equal(t, int64(120), d.Credited)
	assert.Equal(t, "validated", d.Log.Status)
	require.NotNil(t, d.Log.ValidationDate)
	assert.Equal(t, "2024-07-24", *d.Log.ValidationDate)
	assert.Nil(t, d.Event)

	ledger := s.ledger(ana.ID)
	assert.Equal(t, int64(120), ledger.Balance)
	assert.Equal(t, int64(120), ledger.Earned)
	require.Len(t, ledger.Transactions, 1)
	assert.Equal(t, int64(120), ledger.Transactions[0].BalanceAfter)

	// AND: Deciding again is refused
	s.expect(http.StatusConflict, http.MethodPost, fmt.Sprintf("/api/logs/%d/decision", l.ID),
		DecisionRequest{ValidatorID: admin.ID, Decision: "rejected"})
}

func TestDecideLog_Errors(t *testing.T) {
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 0)
	l := s.submit(ana.ID, s.createAction("Inovação", 80).ID)
	path := fmt.Sprintf("/api/logs/%d/decision", l.ID)

	s.expect(http.StatusBadRequest, http.MethodPost, path, DecisionRequest{ValidatorID: admin.ID, Decision: "maybe"})
	s.expect(http.StatusNotFound, http.MethodPost, path, DecisionRequest{ValidatorID: 999, Decision: "validated"})
	s.expect(http.StatusNotFound, http.MethodPost, "/api/logs/999/decision", DecisionRequest{ValidatorID: admin.ID, Decision: "validated"})
	s.expect(http.StatusBadRequest, http.MethodGet, "/api/logs?status=bogus", nil)
	s.expect(http.StatusBadRequest, http.MethodGet, "/api/logs?month=July", nil)
}

func TestBulkDecide(t *testing.T) {
	// GIVEN: Three pending claims
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 0)
	action := s.createAction("Colaboração", 100)
	for i := 0; i < 3; i++ {
		s.submit(ana.ID, action.ID)
	}
	path := fmt.Sprintf("/api/users/%d/logs/bulk", ana.ID)

	// WHEN: All are validated at once
	res := decode[BulkResultDTO](t, s.expect(http.StatusOK, http.MethodPost, path,
		DecisionRequest{ValidatorID: admin.ID, Decision: "validated"}))

	// THEN: Every claim is credited
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, int64(300), res.Credited)
	assert.Equal(t, int64(300), s.ledger(ana.ID).Balance)

	// AND: A second bulk call has nothing to do
	s.expect(http.StatusConflict, http.MethodPost, path, DecisionRequest{ValidatorID: admin.ID, Decision: "validated"})
}

func TestAdminLog(t *testing.T) {
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 0)
	action := s.createAction("Inovação", 90)

	rec := s.expect(http.StatusCreated, http.MethodPost, "/api/admin/logs",
		AdminLogRequest{AdminID: admin.ID, UserID: ana.ID, ActionID: action.ID, Notes: "direct"})
	d := decode[DecisionDTO](t, rec)
	assert.Equal(t, "validated", d.Log.Status)
	assert.Equal(t, int64(90), s.ledger(ana.ID).Balance)

	// Analysts cannot log for others
	s.expect(http.StatusConflict, http.MethodPost, "/api/admin/logs",
		AdminLogRequest{AdminID: ana.ID, UserID: ana.ID, ActionID: action.ID})
}

func TestSettings_DeadlineBlocksSubmit(t *testing.T) {
	s := newTestServer(t)
	ana := s.createUser("ana", "Analyst", 0)
	action := s.createAction("Inovação", 90)

	// Open through the deadline
	until := "2024-07-24"
	s.expect(http.StatusOK, http.MethodPut, "/api/settings", SettingsRequest{ActionsLockedUntil: &until})
	s.submit(ana.ID, action.ID)

	// Closed after it
	until = "2024-07-23"
	rec := s.expect(http.StatusOK, http.MethodPut, "/api/settings", SettingsRequest{ActionsLockedUntil: &until})
	require.NotNil(t, decode[SettingsDTO](t, rec).ActionsLockedUntil)
	assert.Equal(t, "2024-07-23", *decode[SettingsDTO](t, rec).ActionsLockedUntil)

	s.expect(http.StatusConflict, http.MethodPost, fmt.Sprintf("/api/users/%d/logs", ana.ID), SubmitLogRequest{ActionID: action.ID})

	bad := "31/07/2024"
	s.expect(http.StatusBadRequest, http.MethodPut, "/api/settings", SettingsRequest{ActionsLockedUntil: &bad})
}

// =============================================================================
// MISSIONS
// =============================================================================

func TestMissionClaim(t *testing.T) {
	// GIVEN: A daily mission needing one Inovação action
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 0)
	action := s.createAction("Inovação", 90)
	rec := s.expect(http.StatusCreated, http.MethodPost, "/api/missions", MissionRequest{
		Title:        "Ideia do dia",
		Cadence:      "daily",
		Goal:         GoalDTO{Type: "log_action_category", Category: "Inovação", Count: 1},
		RewardPoints: 50,
	})
	mission := decode[MissionDTO](t, rec)
	assert.True(t, mission.Global)

	claimPath := fmt.Sprintf("/api/users/%d/missions/%d/claim", ana.ID, mission.ID)
	s.expect(http.StatusConflict, http.MethodPost, claimPath, nil)

	// WHEN: A matching action is validated
	l := s.submit(ana.ID, action.ID)
	d := decode[DecisionDTO](t, s.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/logs/%d/decision", l.ID),
		DecisionRequest{ValidatorID: admin.ID, Decision: "validated"}))

	// THEN: The mission completes and can be claimed once
	require.Len(t, d.Completed, 1)
	assert.Equal(t, "2024-07-24", d.Completed[0].Period)

	board := decode[[]MissionViewDTO](t, s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/users/%d/missions", ana.ID), nil))
	require.Len(t, board, 1)
	assert.Equal(t, "completed", board[0].Progress.Status)
	assert.Equal(t, "2024-07-24", board[0].PeriodStart)
	assert.Equal(t, "2024-07-24", board[0].PeriodEnd)
	assert.Equal(t, 1, board[0].DaysLeft)

	p := decode[MissionProgressDTO](t, s.expect(http.StatusOK, http.MethodPost, claimPath, nil))
	assert.Equal(t, "claimed", p.Status)
	assert.Equal(t, int64(140), s.ledger(ana.ID).Balance)

	s.expect(http.StatusConflict, http.MethodPost, claimPath, ClaimRequest{Period: "2024-07-24"})
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func TestRedemption_RefusalRefunds(t *testing.T) {
	// GIVEN: An analyst with 500 points and a 300 point prize
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 500)
	prize := s.createPrize(300)

	// WHEN: The analyst requests the prize
	rec := s.expect(http.StatusCreated, http.MethodPost, fmt.Sprintf("/api/users/%d/redemptions", ana.ID),
		RedemptionRequest{PrizeID: prize.ID})
	red := decode[RedemptionDTO](t, rec)

	// THEN: The cost is debited immediately
	assert.Equal(t, "pending_approval", red.Status)
	assert.Equal(t, int64(300), red.Cost)
	assert.Equal(t, int64(200), s.ledger(ana.ID).Balance)

	list := decode[[]RedemptionDTO](t, s.expect(http.StatusOK, http.MethodGet, "/api/redemptions?status=pending_approval", nil))
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Prize)

	// WHEN: An admin refuses it
	rec = s.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/redemptions/%d/decision", red.ID),
		RedemptionDecisionRequest{AdminID: admin.ID, Decision: "refused"})

	// THEN: The points are refunded
	assert.Equal(t, "refused", decode[RedemptionDTO](t, rec).Status)
	assert.Equal(t, int64(500), s.ledger(ana.ID).Balance)

	// AND: The request cannot be resolved twice
	s.expect(http.StatusConflict, http.MethodPost, fmt.Sprintf("/api/redemptions/%d/decision", red.ID),
		RedemptionDecisionRequest{AdminID: admin.ID, Decision: "approved"})
}

func TestRedemption_Errors(t *testing.T) {
	s := newTestServer(t)
	ana := s.createUser("ana", "Analyst", 100)
	prize := s.createPrize(300)
	path := fmt.Sprintf("/api/users/%d/redemptions", ana.ID)

	s.expect(http.StatusConflict, http.MethodPost, path, RedemptionRequest{PrizeID: prize.ID})
	s.expect(http.StatusNotFound, http.MethodPost, path, RedemptionRequest{PrizeID: 999})
	s.expect(http.StatusBadRequest, http.MethodPost, path, RedemptionRequest{})
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/prizes", PrizeRequest{Description: "Free", Cost: 0})
	assert.Equal(t, int64(100), s.ledger(ana.ID).Balance)
}

// =============================================================================
// REPORTS AND CATALOG
// =============================================================================

func TestLeaderboard(t *testing.T) {
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 0)
	s.createUser("bia", "Analyst", 0)
	action := s.createAction("Inovação", 90)
	l := s.submit(ana.ID, action.ID)
	s.expect(http.StatusOK, http.MethodPost, fmt.Sprintf("/api/logs/%d/decision", l.ID),
		DecisionRequest{ValidatorID: admin.ID, Decision: "validated"})

	board := decode[[]LeaderboardEntryDTO](t, s.expect(http.StatusOK, http.MethodGet, "/api/leaderboard?month=2024-07", nil))
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, ana.ID, board[0].User.ID)
	assert.Equal(t, int64(90), board[0].MonthlyPoints)

	s.expect(http.StatusBadRequest, http.MethodGet, "/api/leaderboard?month=2024-13", nil)
}

func TestCatalogCRUD(t *testing.T) {
	s := newTestServer(t)
	action := s.createAction("Inovação", 90)
	path := fmt.Sprintf("/api/actions/%d", action.ID)

	rec := s.expect(http.StatusOK, http.MethodPut, path, ActionRequest{Category: "Inovação", Description: "Renamed", Points: 95})
	assert.Equal(t, "Renamed", decode[ActionDTO](t, rec).Description)
	assert.Equal(t, int64(95), decode[ActionDTO](t, s.expect(http.StatusOK, http.MethodGet, path, nil)).Points)

	// Referenced actions cannot be deleted
	ana := s.createUser("ana", "Analyst", 0)
	s.submit(ana.ID, action.ID)
	s.expect(http.StatusConflict, http.MethodDelete, path, nil)

	other := s.createAction("Engajamento", 10)
	s.expect(http.StatusOK, http.MethodDelete, fmt.Sprintf("/api/actions/%d", other.ID), nil)
	s.expect(http.StatusNotFound, http.MethodGet, fmt.Sprintf("/api/actions/%d", other.ID), nil)

	s.expect(http.StatusBadRequest, http.MethodPost, "/api/events", EventRequest{
		Name: "Bad", Type: "double_points_category", Category: "Inovação", StartDate: "2024-07-01", EndDate: "soon",
	})
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestSendMessage(t *testing.T) {
	s := newTestServer(t)
	admin := s.createUser("admin", "Admin", 0)
	ana := s.createUser("ana", "Analyst", 0)

	s.expect(http.StatusCreated, http.MethodPost, "/api/notifications",
		SendMessageRequest{SenderID: admin.ID, Recipient: "all", Message: "Loja atualizada"})
	s.expect(http.StatusCreated, http.MethodPost, "/api/notifications",
		SendMessageRequest{SenderID: admin.ID, Recipient: fmt.Sprint(ana.ID), Message: "Olá"})
	s.expect(http.StatusBadRequest, http.MethodPost, "/api/notifications",
		SendMessageRequest{SenderID: admin.ID, Recipient: "everyone", Message: "?"})
	s.expect(http.StatusConflict, http.MethodPost, "/api/notifications",
		SendMessageRequest{SenderID: ana.ID, Recipient: "all", Message: "hi"})

	path := fmt.Sprintf("/api/users/%d/notifications", ana.ID)
	ns := decode[[]NotificationDTO](t, s.expect(http.StatusOK, http.MethodGet, path, nil))
	require.Len(t, ns, 2)
	for _, n := range ns {
		assert.False(t, n.Read)
	}

	s.expect(http.StatusOK, http.MethodPost, path+"/read", nil)
	profile := decode[ProfileDTO](t, s.expect(http.StatusOK, http.MethodGet, fmt.Sprintf("/api/users/%d", ana.ID), nil))
	assert.Equal(t, 0, profile.Unread)
}

// =============================================================================
// INFRASTRUCTURE
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.expect(http.StatusOK, http.MethodGet, "/health", nil)

	rec := s.expect(http.StatusOK, http.MethodGet, "/metrics", nil)
	assert.Contains(t, rec.Body.String(), "recognition_test_http_requests_total")
}

func TestInternalErrorsAreLoggedNotLeaked(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.handler.Store.Close())

	rec := s.do(http.MethodGet, "/api/users", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[ErrorResponse](t, rec).Details)
	require.NotNil(t, s.logs.LastEntry())
	assert.Equal(t, "/api/users", s.logs.LastEntry().Data["path"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: name is required", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: bad json", factory.ErrInvalidCatalogJSON), http.StatusBadRequest},
		{rewards.ErrInvalidDecision, http.StatusBadRequest},
		{generic.ErrInvalidDate, http.StatusBadRequest},
		{generic.ErrInvalidPeriod, http.StatusBadRequest},
		{rewards.ErrSelfDelete, http.StatusConflict},
		{rewards.ErrBadCredentials, http.StatusUnauthorized},
		{rewards.ErrPrizeNotFound, http.StatusNotFound},
		{&rewards.InsufficientPointsError{UserID: 1, Available: 10, Cost: 300}, http.StatusConflict},
		{&rewards.TransitionError{Entity: "redemption", ID: 1, From: "approved", To: "refused"}, http.StatusConflict},
		{rewards.ErrPrizesLocked, http.StatusConflict},
		{errors.New("disk full"), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
