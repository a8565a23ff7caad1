/*
repository.go - Persistence contracts for the recognition engine

PURPOSE:
  The engine reads and writes every collection through these interfaces.
  One implementation (store/sqlite) backs all of them with a single
  database so an engine operation can commit atomically through WithTx.

CONVENTIONS:
  - Get* returns (nil, nil) when the row does not exist; the engine turns
    that into the matching not-found error.
  - Save* inserts when the ID is zero (assigning it) and upserts otherwise.
  - Ledger transactions go through the embedded generic.Store, never
    through the entity tables.

SEE ALSO:
  - store/sqlite/sqlite.go: Implementation
  - engine.go: WithTx usage per operation
*/
package rewards

import (
	"context"

	"github.com/warp/recognition-engine/generic"
)

type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	// DeleteUser removes the user and the notifications addressed to them.
	DeleteUser(ctx context.Context, id UserID) error
}

type CatalogStore interface {
	SaveAction(ctx context.Context, a *Action) error
	GetAction(ctx context.Context, id ActionID) (*Action, error)
	ListActions(ctx context.Context) ([]Action, error)
	DeleteAction(ctx context.Context, id ActionID) error

	SavePrize(ctx context.Context, p *Prize) error
	GetPrize(ctx context.Context, id PrizeID) (*Prize, error)
	ListPrizes(ctx context.Context) ([]Prize, error)
	DeletePrize(ctx context.Context, id PrizeID) error

	SaveMission(ctx context.Context, m *Mission) error
	GetMission(ctx context.Context, id MissionID) (*Mission, error)
	ListMissions(ctx context.Context) ([]Mission, error)
	DeleteMission(ctx context.Context, id MissionID) error

	SaveEvent(ctx context.Context, ev *SpecialEvent) error
	GetEvent(ctx context.Context, id EventID) (*SpecialEvent, error)
	// ListEvents returns events ordered by ID ascending.
	ListEvents(ctx context.Context) ([]SpecialEvent, error)
	DeleteEvent(ctx context.Context, id EventID) error
}

// LogFilter selects logged actions; zero fields match everything.
type LogFilter struct {
	UserID   UserID
	ActionID ActionID
	Status   LogStatus
	Month    string
}

type LogStore interface {
	SaveLog(ctx context.Context, l *LoggedAction) error
	GetLog(ctx context.Context, id LogID) (*LoggedAction, error)
	ListLogs(ctx context.Context, f LogFilter) ([]LoggedAction, error)
}

// RedemptionFilter selects redemptions; zero fields match everything.
type RedemptionFilter struct {
	UserID  UserID
	PrizeID PrizeID
	Status  RedemptionStatus
}

type RedemptionStore interface {
	SaveRedemption(ctx context.Context, r *Redemption) error
	GetRedemption(ctx context.Context, id RedemptionID) (*Redemption, error)
	ListRedemptions(ctx context.Context, f RedemptionFilter) ([]Redemption, error)
}

type ProgressStore interface {
	GetProgress(ctx context.Context, userID UserID, missionID MissionID, period string) (*MissionProgress, error)
	SaveProgress(ctx context.Context, p MissionProgress) error
	ListProgress(ctx context.Context, userID UserID) ([]MissionProgress, error)
}

type SettingsStore interface {
	GetSettings(ctx context.Context) (AdminSettings, error)
	SaveSettings(ctx context.Context, s AdminSettings) error
}

type NotificationStore interface {
	// AddNotification stores n. It reports false without error when n.Key
	// is set and already stored.
	AddNotification(ctx context.Context, n Notification) (bool, error)
	// ListNotifications returns the user's own and broadcast notifications,
	// newest first, with Read resolved for that user.
	ListNotifications(ctx context.Context, userID UserID) ([]Notification, error)
	MarkNotificationsRead(ctx context.Context, userID UserID) error
}

// Repository is everything the engine persists.
type Repository interface {
	generic.Store
	UserStore
	CatalogStore
	LogStore
	RedemptionStore
	ProgressStore
	SettingsStore
	NotificationStore

	// WithTx runs fn against a transactional view. Nothing fn wrote
	// survives when it returns an error.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
