package rewards_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
	"github.com/warp/recognition-engine/store/sqlite"
)

// =============================================================================
// FIXTURE
// =============================================================================

// Wednesday of 2024-W30.
var fixedNow = time.Date(2024, 7, 24, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *sqlite.Store
	engine  *rewards.Engine
	metrics *captureMetrics
	now     time.Time

	admin   rewards.User
	analyst rewards.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger, _ := logtest.NewNullLogger()
	f := &fixture{t: t, ctx: context.Background(), store: store, metrics: newCaptureMetrics(), now: fixedNow}
	f.engine = rewards.NewEngine(store)
	f.engine.Now = func() time.Time { return f.now }
	f.engine.Metrics = f.metrics
	f.engine.Log = logger

	f.admin = f.user("Marina Admin", "admin", rewards.RoleAdmin, 0)
	f.analyst = f.user("Ana Analyst", "ana", rewards.RoleAnalyst, 0)
	return f
}

func (f *fixture) user(name, username string, role rewards.Role, opening int64) rewards.User {
	f.t.Helper()
	u, err := f.engine.CreateUser(f.ctx, rewards.User{Name: name, Username: username, Password: "secret", Role: role}, opening)
	require.NoError(f.t, err)
	return *u
}

func (f *fixture) action(category string, points int64) rewards.Action {
	f.t.Helper()
	a, err := f.engine.SaveAction(f.ctx, rewards.Action{
		Category:    category,
		Description: category + " action",
		Points:      points,
		Validator:   "Gestor",
	})
	require.NoError(f.t, err)
	return *a
}

func (f *fixture) prize(cost int64) rewards.Prize {
	f.t.Helper()
	p, err := f.engine.SavePrize(f.ctx, rewards.Prize{Category: "Experiências", Description: "Day off", Cost: cost})
	require.NoError(f.t, err)
	return *p
}

// validated submits and validates one log for the user.
func (f *fixture) validated(userID rewards.UserID, actionID rewards.ActionID) *rewards.Decision {
	f.t.Helper()
	l, err := f.engine.Submit(f.ctx, userID, actionID, "")
	require.NoError(f.t, err)
	d, err := f.engine.DecideLog(f.ctx, l.ID, f.admin.ID, rewards.LogValidated)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) balance(id rewards.UserID) int64 {
	f.t.Helper()
	b, err := f.engine.Balance(f.ctx, id)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) notifications(id rewards.UserID, kind rewards.NotificationKind) []rewards.Notification {
	f.t.Helper()
	all, err := f.engine.Notifications(f.ctx, id)
	require.NoError(f.t, err)
	var out []rewards.Notification
	for _, n := range all {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func day(s string) generic.TimePoint {
	tp, err := generic.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// captureMetrics records every observation.
type captureMetrics struct {
	mu        sync.Mutex
	credited  map[string]int64
	debited   map[string]int64
	decided   map[rewards.LogStatus]int
	resolved  map[rewards.RedemptionStatus]int
	completed map[generic.Cadence]int
	claimed   map[generic.Cadence]int
	promoted  []rewards.Medal
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{
		credited:  map[string]int64{},
		debited:   map[string]int64{},
		decided:   map[rewards.LogStatus]int{},
		resolved:  map[rewards.RedemptionStatus]int{},
		completed: map[generic.Cadence]int{},
		claimed:   map[generic.Cadence]int{},
	}
}

func (m *captureMetrics) PointsCredited(reason string, points int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credited[reason] += points
}

func (m *captureMetrics) PointsDebited(reason string, points int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debited[reason] += points
}

func (m *captureMetrics) LogDecided(s rewards.LogStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decided[s]++
}

func (m *captureMetrics) RedemptionResolved(s rewards.RedemptionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved[s]++
}

func (m *captureMetrics) MissionCompleted(c generic.Cadence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[c]++
}

func (m *captureMetrics) MissionClaimed(c generic.Cadence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed[c]++
}

func (m *captureMetrics) MedalPromoted(medal rewards.Medal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promoted = append(m.promoted, medal)
}

type failingNotifier struct{ calls int }

func (n *failingNotifier) Notify(context.Context, rewards.Notification) error {
	n.calls++
	return errors.New("mailbox unavailable")
}

// =============================================================================
// ENGINE
// =============================================================================

func TestEngine_NotifierFailureKeepsCommit(t *testing.T) {
	f := newFixture(t)
	a := f.action("Inovação", 90)

	logger, hook := logtest.NewNullLogger()
	notifier := &failingNotifier{}
	f.engine.Notifier = notifier
	f.engine.Log = logger

	// WHEN: A validation whose notification cannot be delivered
	d := f.validated(f.analyst.ID, a.ID)

	// THEN: Points stay credited and the drop is logged
	assert.Equal(t, int64(90), d.Credited)
	assert.Equal(t, int64(90), f.balance(f.analyst.ID))
	assert.Equal(t, 1, notifier.calls)
	var dropped []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "notification dropped" {
			dropped = append(dropped, e)
		}
	}
	require.Len(t, dropped, 1)
	assert.Equal(t, logrus.WarnLevel, dropped[0].Level)
	assert.Equal(t, rewards.NotifyActionValidated, dropped[0].Data["kind"])
}

func TestEngine_MetricsOnlyAfterCommit(t *testing.T) {
	f := newFixture(t)
	p := f.prize(500)

	_, err := f.engine.RequestRedemption(f.ctx, f.analyst.ID, p.ID)
	require.ErrorIs(t, err, rewards.ErrInsufficientPoints)

	assert.Empty(t, f.metrics.debited)
}

func TestEngine_ConcurrentRedemptionsDebitOnce(t *testing.T) {
	f := newFixture(t)
	u := f.user("Bia", "bia", rewards.RoleAnalyst, 300)
	p := f.prize(300)

	// WHEN: Two requests race for the whole balance
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.RequestRedemption(f.ctx, u.ID, p.ID)
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one wins and the balance never goes negative
	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, rewards.ErrInsufficientPoints)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, int64(0), f.balance(u.ID))
}

func TestEngine_StatementSummarizesLedger(t *testing.T) {
	f := newFixture(t)
	u := f.user("Caio", "caio", rewards.RoleAnalyst, 400)
	a := f.action("Inovação", 100)
	f.validated(u.ID, a.ID)

	txs, summary, err := f.engine.Statement(f.ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, generic.TxAdjustment, txs[0].Type)
	assert.Equal(t, "opening:"+strconv.FormatInt(int64(u.ID), 10), txs[0].IdempotencyKey)
	assert.Equal(t, int64(500), summary.Balance.IntPart())

	_, _, err = f.engine.Statement(f.ctx, 999)
	assert.ErrorIs(t, err, rewards.ErrUserNotFound)
}

func TestEngine_StatementBetween(t *testing.T) {
	// GIVEN: An opening balance in July and a validation in August
	f := newFixture(t)
	u := f.user("Caio", "caio", rewards.RoleAnalyst, 400)
	a := f.action("Inovação", 100)
	f.now = time.Date(2024, 8, 5, 10, 0, 0, 0, time.UTC)
	f.validated(u.ID, a.ID)

	// WHEN: Each month is read on its own
	july, summary, err := f.engine.StatementBetween(f.ctx, u.ID, day("2024-07-01"), day("2024-07-31"))
	require.NoError(t, err)

	// THEN: Only that month's transactions and net change come back
	require.Len(t, july, 1)
	assert.Equal(t, generic.TxAdjustment, july[0].Type)
	assert.Equal(t, int64(400), summary.Balance.IntPart())

	august, summary, err := f.engine.StatementBetween(f.ctx, u.ID, day("2024-08-01"), day("2024-08-31"))
	require.NoError(t, err)
	require.Len(t, august, 1)
	assert.Equal(t, "2024-08-05", august[0].EffectiveAt.String())
	assert.Equal(t, int64(100), summary.Balance.IntPart())

	// AND: The full statement still sums both
	assert.Equal(t, int64(500), f.balance(u.ID))

	_, _, err = f.engine.StatementBetween(f.ctx, u.ID, day("2024-08-31"), day("2024-08-01"))
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	_, _, err = f.engine.StatementBetween(f.ctx, 999, day("2024-08-01"), day("2024-08-31"))
	assert.ErrorIs(t, err, rewards.ErrUserNotFound)
}
