/*
engine.go - Engine construction and operation plumbing

PURPOSE:
  Every mutating operation (submit, decide, bulk decide, admin log, claim,
  redeem, resolve) runs through Engine.run, which gives it:
  1. Serialization: a per-user mutex, so one user's ledger and mission
     progress are only ever mutated by one operation at a time
  2. Atomicity: a single Repository.WithTx, so a failed step leaves no
     partial credit behind
  3. Side effects after commit: notifications and metric observations are
     collected on the session and dispatched only once the tx committed

OPERATION FLOW:
  ┌──────────────────────────────────────────────────────────────────┐
  │                                                                  │
  │  lock user(s) ──▶ WithTx ──▶ fn(session) ──▶ commit ──▶ dispatch │
  │                                  │                       │       │
  │                                  ▼                       ▼       │
  │                         ledger / repo writes      Notifier,      │
  │                         outbox, observations      Metrics        │
  │                                                                  │
  └──────────────────────────────────────────────────────────────────┘

  Sink failures are logged and never returned: the operation already
  committed and cannot be undone by a missed message.

EXAMPLE:
  eng := rewards.NewEngine(repo)
  eng.Log = logger.New("recognition", "info", "json")
  eng.Metrics = metrics.NewMetrics("engine")

  log, err := eng.Submit(ctx, 2, 7, "paired on the release")
  dec, err := eng.DecideLog(ctx, log.ID, 1, rewards.LogValidated)

SEE ALSO:
  - validation.go, missions.go, redemption.go: Operations
  - repository.go: WithTx contract
*/
package rewards

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Notifier receives messages after the operation that produced them
// committed. It is fire-and-forget from the engine's point of view.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// StoreNotifier persists notifications so users can list them later.
type StoreNotifier struct {
	Store NotificationStore
}

func (sn StoreNotifier) Notify(ctx context.Context, n Notification) error {
	_, err := sn.Store.AddNotification(ctx, n)
	return err
}

// Metrics observes engine outcomes.
type Metrics interface {
	PointsCredited(reason string, points int64)
	PointsDebited(reason string, points int64)
	LogDecided(status LogStatus)
	RedemptionResolved(status RedemptionStatus)
	MissionCompleted(cadence generic.Cadence)
	MissionClaimed(cadence generic.Cadence)
	MedalPromoted(medal Medal)
}

type nopMetrics struct{}

func (nopMetrics) PointsCredited(string, int64)        {}
func (nopMetrics) PointsDebited(string, int64)         {}
func (nopMetrics) LogDecided(LogStatus)                {}
func (nopMetrics) RedemptionResolved(RedemptionStatus) {}
func (nopMetrics) MissionCompleted(generic.Cadence)    {}
func (nopMetrics) MissionClaimed(generic.Cadence)      {}
func (nopMetrics) MedalPromoted(Medal)                 {}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	Repo     Repository
	Notifier Notifier
	Metrics  Metrics
	Log      logrus.FieldLogger

	// Now is the clock. Calendar days are taken in Location.
	Now      func() time.Time
	Location *time.Location

	locks userLocks
}

// NewEngine wires an engine with a store-backed notifier, no metrics, the
// standard logger and the wall clock in UTC.
func NewEngine(repo Repository) *Engine {
	return &Engine{
		Repo:     repo,
		Notifier: StoreNotifier{Store: repo},
		Metrics:  nopMetrics{},
		Log:      logrus.StandardLogger(),
		Now:      time.Now,
		Location: time.UTC,
	}
}

// Today is the current calendar day in the engine's location.
func (e *Engine) Today() generic.TimePoint {
	return generic.DateOf(e.now(), e.Location)
}

// Clock is the engine's current instant.
func (e *Engine) Clock() time.Time { return e.now() }

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) metrics() Metrics {
	if e.Metrics == nil {
		return nopMetrics{}
	}
	return e.Metrics
}

func (e *Engine) logger() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// =============================================================================
// PER-USER SERIALIZATION
// =============================================================================

type userLocks struct {
	mu    sync.Mutex
	locks map[UserID]*sync.Mutex
}

func (ul *userLocks) get(id UserID) *sync.Mutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	if ul.locks == nil {
		ul.locks = make(map[UserID]*sync.Mutex)
	}
	m, ok := ul.locks[id]
	if !ok {
		m = &sync.Mutex{}
		ul.locks[id] = m
	}
	return m
}

// lock acquires the users' mutexes in ascending order and returns the
// matching unlock.
func (ul *userLocks) lock(ids ...UserID) func() {
	uniq := make([]UserID, 0, len(ids))
	seen := make(map[UserID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, id := range uniq {
		m := ul.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// =============================================================================
// SESSION - one operation inside one transaction
// =============================================================================

type session struct {
	repo   Repository
	points *PointLedger
	now    time.Time
	today  generic.TimePoint
	outbox []Notification
	after  []func(Metrics)
}

func (s *session) notify(n Notification) {
	if n.ID == "" {
		n.ID = newNotificationID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now
	}
	s.outbox = append(s.outbox, n)
}

func newNotificationID() string { return uuid.NewString() }

func (s *session) observe(f func(Metrics)) {
	s.after = append(s.after, f)
}

// run executes fn under the users' locks inside one store transaction and
// dispatches the session's side effects once it committed.
func (e *Engine) run(ctx context.Context, users []UserID, fn func(*session) error) error {
	unlock := e.locks.lock(users...)
	defer unlock()

	now := e.now()
	s := &session{now: now, today: generic.DateOf(now, e.Location)}
	err := e.Repo.WithTx(ctx, func(tx Repository) error {
		s.repo = tx
		s.points = NewPointLedger(tx)
		return fn(s)
	})
	if err != nil {
		return err
	}

	e.dispatch(ctx, s)
	return nil
}

func (e *Engine) dispatch(ctx context.Context, s *session) {
	m := e.metrics()
	for _, f := range s.after {
		f(m)
	}
	if e.Notifier == nil {
		return
	}
	for _, n := range s.outbox {
		if err := e.Notifier.Notify(ctx, n); err != nil {
			e.logger().WithError(err).WithFields(logrus.Fields{
				"kind":      n.Kind,
				"recipient": n.RecipientID,
			}).Warn("notification dropped")
		}
	}
}

// =============================================================================
// LOOKUPS - not-found translation shared by the operations
// =============================================================================

func getUser(ctx context.Context, r Repository, id UserID) (*User, error) {
	u, err := r.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func getAdmin(ctx context.Context, r Repository, id UserID) (*User, error) {
	u, err := getUser(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return u, nil
}

func getAction(ctx context.Context, r Repository, id ActionID) (*Action, error) {
	a, err := r.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActionNotFound
	}
	return a, nil
}

func getPrize(ctx context.Context, r Repository, id PrizeID) (*Prize, error) {
	p, err := r.GetPrize(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPrizeNotFound
	}
	return p, nil
}

func getMission(ctx context.Context, r Repository, id MissionID) (*Mission, error) {
	m, err := r.GetMission(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrMissionNotFound
	}
	return m, nil
}

func actor(id UserID) string {
	return "user:" + strconv.FormatInt(int64(id), 10)
}
