/*
Package rewards implements the recognition points engine.

PURPOSE:
  Users log qualifying actions, earn points once a validator approves them,
  redeem points for prizes, climb monthly medal tiers and complete
  time-boxed missions for bonus points. This package owns the rules; the
  HTTP layer, seeding and storage are collaborators that call into Engine.

COMPONENTS:
  medal.go:      Medal Tier Resolver (monthly points -> tier, progress)
  bonus.go:      Bonus Rules Evaluator (special events)
  validation.go: Action Validation Engine (submit, validate, bulk, admin log)
  missions.go:   Mission Progress Tracker (per-period counters, claim)
  redemption.go: Redemption Engine (optimistic debit, refund on refusal)
  ledger.go:     Point Ledger (the only place balances move)
  report.go:     Leaderboard, monthly history, profile

BALANCES:
  A user's points are never stored on the user row. They are replayed from
  the point ledger (generic.Ledger), so every credit and debit is an
  auditable transaction with an idempotency key.

EXAMPLE FLOW:
  1. Ana submits "Mentoria" (100 points) for 2024-07: LoggedAction pending
  2. A validator validates it: +100 credited, weekly mission progress 1/2
  3. Ana requests a 300 point prize: -300 held, redemption pending approval
  4. The admin refuses: +300 released back

SEE ALSO:
  - engine.go: Engine construction and operation plumbing
  - repository.go: Persistence contracts
  - generic/: Ledger, holds, periods
*/
package rewards

import (
	"time"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// POINTS RESOURCE TYPE
// =============================================================================

// Resource is the concrete resource type for the recognition domain.
type Resource string

func (r Resource) ResourceID() string     { return string(r) }
func (r Resource) ResourceDomain() string { return "rewards" }

var _ generic.ResourceType = Resource("")

const ResourcePoints Resource = "points"

// PointsAccount is the single ledger account every user owns.
const PointsAccount generic.AccountID = "points"

func init() {
	generic.RegisterResource(ResourcePoints)
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	UserID       int64
	ActionID     int64
	LogID        int64
	PrizeID      int64
	RedemptionID int64
	MissionID    int64
	EventID      int64
)

// =============================================================================
// USERS
// =============================================================================

type Role string

const (
	RoleAnalyst Role = "Analyst"
	RoleAdmin   Role = "Admin"
)

func (r Role) Valid() bool { return r == RoleAnalyst || r == RoleAdmin }

// User is an identity with a role. Points live in the ledger.
type User struct {
	ID       UserID
	Name     string
	Username string
	Password string // plain text, see DESIGN.md
	Role     Role
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// =============================================================================
// CATALOG
// =============================================================================

// Action is a catalog entry describing a qualifying activity.
type Action struct {
	ID          ActionID
	Category    string
	Description string
	Points      int64
	Validator   string // role label of whoever validates it
}

type Prize struct {
	ID          PrizeID
	Category    string
	Description string
	Cost        int64
	Benefit     string
	Icon        string
	ImageURL    string
}

// =============================================================================
// LOGGED ACTIONS
// =============================================================================

type LogStatus string

const (
	LogPendingValidation LogStatus = "pending_validation"
	LogValidated         LogStatus = "validated"
	LogRejected          LogStatus = "rejected"
)

func (s LogStatus) Terminal() bool { return s == LogValidated || s == LogRejected }

// LoggedAction is a user's claim to have performed an Action in Month.
type LoggedAction struct {
	ID             LogID
	UserID         UserID
	ActionID       ActionID
	Month          string // YYYY-MM
	Notes          string
	Status         LogStatus
	ValidationDate *generic.TimePoint
	ValidatedBy    UserID
	BasePoints     int64 // credited base, set on validation
	BonusPoints    int64 // credited event bonus, set on validation
	CreatedAt      time.Time
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

type RedemptionStatus string

const (
	RedemptionPendingApproval RedemptionStatus = "pending_approval"
	RedemptionApproved        RedemptionStatus = "approved"
	RedemptionRefused         RedemptionStatus = "refused"
)

func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionApproved || s == RedemptionRefused
}

type Redemption struct {
	ID           RedemptionID
	UserID       UserID
	PrizeID      PrizeID
	Cost         int64 // prize cost at request time, the amount held
	RequestDate  generic.TimePoint
	Status       RedemptionStatus
	ApprovalDate *generic.TimePoint
	ResolvedBy   UserID
}

// =============================================================================
// MISSIONS
// =============================================================================

// GoalType discriminates MissionGoal variants.
type GoalType string

const (
	GoalLogActionCategory GoalType = "log_action_category"
)

// MissionGoal is a tagged goal. Only category counting exists today.
type MissionGoal struct {
	Type     GoalType
	Category string // GoalLogActionCategory
	Count    int
}

// Matches reports whether a validated action advances the goal.
func (g MissionGoal) Matches(a Action) bool {
	switch g.Type {
	case GoalLogActionCategory:
		return g.Category == a.Category
	default:
		return false
	}
}

type Mission struct {
	ID           MissionID
	Title        string
	Description  string
	Cadence      generic.Cadence
	Goal         MissionGoal
	RewardPoints int64
	Global       bool
}

type ProgressStatus string

const (
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressClaimed    ProgressStatus = "claimed"
)

// MissionProgress is keyed by (UserID, MissionID, Period).
type MissionProgress struct {
	UserID    UserID
	MissionID MissionID
	Period    string
	Progress  int
	Status    ProgressStatus
	UpdatedAt time.Time
}

// =============================================================================
// SPECIAL EVENTS
// =============================================================================

// EventType discriminates SpecialEvent variants.
type EventType string

const (
	EventDoublePointsCategory EventType = "double_points_category"
)

type EventConfig struct {
	Category string
}

// SpecialEvent modifies awards while today falls in [Start, End].
type SpecialEvent struct {
	ID          EventID
	Name        string
	Description string
	Type        EventType
	Config      EventConfig
	Start       generic.TimePoint
	End         generic.TimePoint
}

func (ev SpecialEvent) ActiveOn(day generic.TimePoint) bool {
	return generic.Period{Start: ev.Start, End: ev.End}.Contains(day)
}

// =============================================================================
// SETTINGS AND NOTIFICATIONS
// =============================================================================

// AdminSettings are the administrative gates the engine honors.
type AdminSettings struct {
	ActionsLockedUntil *generic.TimePoint
	PrizesLocked       bool
}

// ActionsLocked reports whether logging is closed on day: it is once day
// is later than ActionsLockedUntil.
func (s AdminSettings) ActionsLocked(day generic.TimePoint) bool {
	return s.ActionsLockedUntil != nil && day.After(*s.ActionsLockedUntil)
}

type NotificationKind string

const (
	NotifyActionValidated  NotificationKind = "action_validated"
	NotifyMissionCompleted NotificationKind = "mission_completed"
	NotifyMedalPromoted    NotificationKind = "medal_promoted"
	NotifyAdminLog         NotificationKind = "admin_log"
	NotifyMessage          NotificationKind = "message"
	NotifyEventStarted     NotificationKind = "event_started"
)

// Broadcast addresses a notification to every user.
const Broadcast UserID = 0

type Notification struct {
	ID          string
	Kind        NotificationKind
	SenderID    UserID // 0 for system messages
	RecipientID UserID // Broadcast for everyone
	Message     string
	Timestamp   time.Time
	Read        bool // per reader
	Key         string // optional dedupe key
	Medal       Medal  // set on NotifyMedalPromoted
}
