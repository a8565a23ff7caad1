/*
Package factory provides JSON to Go catalog conversion.

PURPOSE:
  Converts a JSON catalog (users, actions, prizes, missions, special
  events, historical logs and redemptions, notifications, settings) into a
  rewards.Snapshot that Engine.Import writes in one transaction. Admins
  can keep the catalog in a file and bootstrap a store without code
  changes.

JSON SCHEMA (abridged):
  {
    "users":   [{"id": 1, "name": "Ana Silva", "username": "analista",
                 "password": "123", "role": "Analyst", "points": 3250}],
    "actions": [{"id": 3, "category": "Colaboração e Desenvolvimento",
                 "description": "Mentoria", "points": 100, "validator": "Liderança"}],
    "prizes":  [{"id": 9, "category": "560 a 900", "description": "...", "cost": 560}],
    "missions": [{"id": 2, "title": "Colaborador da Semana", "cadence": "weekly",
                  "reward_points": 50, "global": true,
                  "goal": {"type": "log_action_category",
                           "category": "Colaboração e Desenvolvimento", "count": 2}}],
    "events":  [{"id": 1, "name": "Semana da Inovação",
                 "type": "double_points_category", "config": {"category": "Inovação"},
                 "start_date": "2024-07-22", "end_date": "2024-07-28"}],
    "logs":        [{"id": 1, "user_id": 1, "action_id": 1, "month": "2024-06",
                     "status": "validated", "validation_date": "2024-07-05"}],
    "redemptions": [{"id": 2, "user_id": 1, "prize_id": 10,
                     "request_date": "2024-07-10", "status": "pending_approval"}],
    "notifications": [{"sender_id": 2, "recipient": "all", "message": "...",
                       "age_hours": 24, "read": true}],
    "settings": {"actions_locked_until": null, "prizes_locked": false}
  }

KEY FEATURES:
  - Validates enums and dates up front; catalog rules are re-checked by
    the engine on import
  - "points" is the balance the user ends up with, net of redemptions
  - Notification timestamps are relative ("age_hours") so seeds stay fresh
  - DemoCatalog embeds the original seed data

USAGE:
  f := factory.NewCatalogFactory()
  snap, err := f.ParseCatalog(data, time.Now())
  err = engine.Import(ctx, snap)

SEE ALSO:
  - rewards/import.go: Snapshot semantics
  - api/scenarios.go: Demo scenarios built on DemoCatalog
*/
package factory

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

//go:embed demo_catalog.json
var demoCatalog []byte

// ErrInvalidCatalogJSON wraps every parse failure.
var ErrInvalidCatalogJSON = errors.New("invalid catalog")

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CatalogJSON is the JSON representation of a complete starting state.
type CatalogJSON struct {
	Users         []UserJSON         `json:"users"`
	Actions       []ActionJSON       `json:"actions"`
	Prizes        []PrizeJSON        `json:"prizes"`
	Missions      []MissionJSON      `json:"missions"`
	Events        []EventJSON        `json:"events"`
	Logs          []LogJSON          `json:"logs"`
	Redemptions   []RedemptionJSON   `json:"redemptions"`
	Notifications []NotificationJSON `json:"notifications"`
	Settings      *SettingsJSON      `json:"settings,omitempty"`
}

type UserJSON struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"` // Analyst, Admin
	Points   int64  `json:"points"`
}

type ActionJSON struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Points      int64  `json:"points"`
	Validator   string `json:"validator,omitempty"`
}

type PrizeJSON struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Benefit     string `json:"benefit,omitempty"`
	Icon        string `json:"icon,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type GoalJSON struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type MissionJSON struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Cadence      string   `json:"cadence"` // daily, weekly, monthly
	RewardPoints int64    `json:"reward_points"`
	Global       bool     `json:"global"`
	Goal         GoalJSON `json:"goal"`
}

type EventJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Config      struct {
		Category string `json:"category"`
	} `json:"config"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type LogJSON struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	ActionID       int64  `json:"action_id"`
	Month          string `json:"month"`
	Notes          string `json:"notes,omitempty"`
	Status         string `json:"status,omitempty"`
	ValidationDate string `json:"validation_date,omitempty"`
}

type RedemptionJSON struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	PrizeID      int64  `json:"prize_id"`
	RequestDate  string `json:"request_date"`
	Status       string `json:"status,omitempty"`
	ApprovalDate string `json:"approval_date,omitempty"`
}

type NotificationJSON struct {
	SenderID  int64         `json:"sender_id"`
	Recipient RecipientJSON `json:"recipient"`
	Message   string        `json:"message"`
	AgeHours  float64       `json:"age_hours,omitempty"`
	Read      bool          `json:"read,omitempty"`
}

// RecipientJSON is a user id or the string "all".
type RecipientJSON rewards.UserID

func (r *RecipientJSON) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "all" {
			*r = RecipientJSON(rewards.Broadcast)
			return nil
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("recipient must be a user id or \"all\", got %q", s)
		}
		*r = RecipientJSON(id)
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("recipient must be a user id or \"all\": %w", err)
	}
	*r = RecipientJSON(id)
	return nil
}

func (r RecipientJSON) MarshalJSON() ([]byte, error) {
	if rewards.UserID(r) == rewards.Broadcast {
		return json.Marshal("all")
	}
	return json.Marshal(int64(r))
}

type SettingsJSON struct {
	ActionsLockedUntil *string `json:"actions_locked_until"`
	PrizesLocked       bool    `json:"prizes_locked"`
}

// =============================================================================
// CATALOG FACTORY
// =============================================================================

// CatalogFactory converts JSON catalogs to snapshots.
type CatalogFactory struct{}

func NewCatalogFactory() *CatalogFactory {
	return &CatalogFactory{}
}

// DemoCatalog returns the embedded seed catalog.
func DemoCatalog() []byte {
	out := make([]byte, len(demoCatalog))
	copy(out, demoCatalog)
	return out
}

// LoadFile parses a catalog file.
func (f *CatalogFactory) LoadFile(path string, now time.Time) (rewards.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rewards.Snapshot{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	return f.ParseCatalog(data, now)
}

// ParseCatalog parses JSON into a Snapshot. Relative notification ages are
// resolved against now.
func (f *CatalogFactory) ParseCatalog(data []byte, now time.Time) (rewards.Snapshot, error) {
	var cj CatalogJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return rewards.Snapshot{}, fmt.Errorf("%w: failed to parse catalog JSON: %v", ErrInvalidCatalogJSON, err)
	}
	return f.FromJSON(cj, now)
}

// FromJSON converts a CatalogJSON to a Snapshot.
func (f *CatalogFactory) FromJSON(cj CatalogJSON, now time.Time) (rewards.Snapshot, error) {
	var snap rewards.Snapshot

	for _, uj := range cj.Users {
		role := rewards.Role(uj.Role)
		if !role.Valid() {
			return snap, invalid("user %d: unknown role %q", uj.ID, uj.Role)
		}
		snap.Users = append(snap.Users, rewards.SeedUser{
			User: rewards.User{
				ID:       rewards.UserID(uj.ID),
				Name:     uj.Name,
				Username: uj.Username,
				Password: uj.Password,
				Role:     role,
			},
			Points: uj.Points,
		})
	}

	for _, aj := range cj.Actions {
		snap.Actions = append(snap.Actions, rewards.Action{
			ID:          rewards.ActionID(aj.ID),
			Category:    aj.Category,
			Description: aj.Description,
			Points:      aj.Points,
			Validator:   aj.Validator,
		})
	}

	for _, pj := range cj.Prizes {
		snap.Prizes = append(snap.Prizes, rewards.Prize{
			ID:          rewards.PrizeID(pj.ID),
			Category:    pj.Category,
			Description: pj.Description,
			Cost:        pj.Cost,
			Benefit:     pj.Benefit,
			Icon:        pj.Icon,
			ImageURL:    pj.ImageURL,
		})
	}

	for _, mj := range cj.Missions {
		cadence, err := generic.ParseCadence(mj.Cadence)
		if err != nil {
			return snap, invalid("mission %d: %v", mj.ID, err)
		}
		snap.Missions = append(snap.Missions, rewards.Mission{
			ID:           rewards.MissionID(mj.ID),
			Title:        mj.Title,
			Description:  mj.Description,
			Cadence:      cadence,
			RewardPoints: mj.RewardPoints,
			Global:       mj.Global,
			Goal: rewards.MissionGoal{
				Type:     rewards.GoalType(mj.Goal.Type),
				Category: mj.Goal.Category,
				Count:    mj.Goal.Count,
			},
		})
	}

	for _, ej := range cj.Events {
		ev, err := parseEvent(ej)
		if err != nil {
			return snap, err
		}
		snap.Events = append(snap.Events, ev)
	}

	for _, lj := range cj.Logs {
		l, err := parseLog(lj, now)
		if err != nil {
			return snap, err
		}
		snap.Logs = append(snap.Logs, l)
	}

	for _, rj := range cj.Redemptions {
		r, err := parseRedemption(rj)
		if err != nil {
			return snap, err
		}
		snap.Redemptions = append(snap.Redemptions, r)
	}

	for _, nj := range cj.Notifications {
		snap.Notifications = append(snap.Notifications, rewards.Notification{
			Kind:        rewards.NotifyMessage,
			SenderID:    rewards.UserID(nj.SenderID),
			RecipientID: rewards.UserID(nj.Recipient),
			Message:     nj.Message,
			Timestamp:   now.Add(-time.Duration(nj.AgeHours * float64(time.Hour))),
			Read:        nj.Read,
		})
	}

	if cj.Settings != nil {
		s := rewards.AdminSettings{PrizesLocked: cj.Settings.PrizesLocked}
		if cj.Settings.ActionsLockedUntil != nil && *cj.Settings.ActionsLockedUntil != "" {
			until, err := generic.ParseDate(*cj.Settings.ActionsLockedUntil)
			if err != nil {
				return snap, invalid("settings: %v", err)
			}
			s.ActionsLockedUntil = &until
		}
		snap.Settings = &s
	}

	return snap, nil
}

// ToJSON converts the catalog part of a snapshot back to JSON form.
// Historical logs, redemptions and notifications are not exported.
func (f *CatalogFactory) ToJSON(snap rewards.Snapshot) CatalogJSON {
	var cj CatalogJSON
	for _, su := range snap.Users {
		cj.Users = append(cj.Users, UserJSON{
			ID: int64(su.ID), Name: su.Name, Username: su.Username,
			Password: su.Password, Role: string(su.Role), Points: su.Points,
		})
	}
	for _, a := range snap.Actions {
		cj.Actions = append(cj.Actions, ActionJSON{
			ID: int64(a.ID), Category: a.Category, Description: a.Description,
			Points: a.Points, Validator: a.Validator,
		})
	}
	for _, p := range snap.Prizes {
		cj.Prizes = append(cj.Prizes, PrizeJSON{
			ID: int64(p.ID), Category: p.Category, Description: p.Description,
			Cost: p.Cost, Benefit: p.Benefit, Icon: p.Icon, ImageURL: p.ImageURL,
		})
	}
	for _, m := range snap.Missions {
		cj.Missions = append(cj.Missions, MissionJSON{
			ID: int64(m.ID), Title: m.Title, Description: m.Description,
			Cadence: string(m.Cadence), RewardPoints: m.RewardPoints, Global: m.Global,
			Goal: GoalJSON{Type: string(m.Goal.Type), Category: m.Goal.Category, Count: m.Goal.Count},
		})
	}
	for _, ev := range snap.Events {
		ej := EventJSON{
			ID: int64(ev.ID), Name: ev.Name, Description: ev.Description, Type: string(ev.Type),
			StartDate: ev.Start.String(), EndDate: ev.End.String(),
		}
		ej.Config.Category = ev.Config.Category
		cj.Events = append(cj.Events, ej)
	}
	if snap.Settings != nil {
		sj := &SettingsJSON{PrizesLocked: snap.Settings.PrizesLocked}
		if snap.Settings.ActionsLockedUntil != nil {
			s := snap.Settings.ActionsLockedUntil.String()
			sj.ActionsLockedUntil = &s
		}
		cj.Settings = sj
	}
	return cj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalogJSON, fmt.Sprintf(format, args...))
}

func parseEvent(ej EventJSON) (rewards.SpecialEvent, error) {
	typ := rewards.EventType(ej.Type)
	if !rewards.KnownEventType(typ) {
		return rewards.SpecialEvent{}, invalid("event %d: unknown type %q", ej.ID, ej.Type)
	}
	start, err := generic.ParseDate(ej.StartDate)
	if err != nil {
		return rewards.SpecialEvent{}, invalid("event %d: start_date: %v", ej.ID, err)
	}
	end, err := generic.ParseDate(ej.EndDate)
	if err != nil {
		return rewards.SpecialEvent{}, invalid("event %d: end_date: %v", ej.ID, err)
	}
	return rewards.SpecialEvent{
		ID:          rewards.EventID(ej.ID),
		Name:        ej.Name,
		Description: ej.Description,
		Type:        typ,
		Config:      rewards.EventConfig{Category: ej.Config.Category},
		Start:       start,
		End:         end,
	}, nil
}

func parseLog(lj LogJSON, now time.Time) (rewards.LoggedAction, error) {
	if _, err := generic.ParseMonth(lj.Month); err != nil {
		return rewards.LoggedAction{}, invalid("log %d: month: %v", lj.ID, err)
	}
	status := rewards.LogStatus(lj.Status)
	switch status {
	case "":
		status = rewards.LogPendingValidation
	case rewards.LogPendingValidation, rewards.LogValidated, rewards.LogRejected:
	default:
		return rewards.LoggedAction{}, invalid("log %d: unknown status %q", lj.ID, lj.Status)
	}

	l := rewards.LoggedAction{
		ID:        rewards.LogID(lj.ID),
		UserID:    rewards.UserID(lj.UserID),
		ActionID:  rewards.ActionID(lj.ActionID),
		Month:     lj.Month,
		Notes:     lj.Notes,
		Status:    status,
		CreatedAt: now,
	}
	if lj.ValidationDate != "" {
		d, err := generic.ParseDate(lj.ValidationDate)
		if err != nil {
			return rewards.LoggedAction{}, invalid("log %d: validation_date: %v", lj.ID, err)
		}
		l.ValidationDate = &d
	}
	return l, nil
}

func parseRedemption(rj RedemptionJSON) (rewards.Redemption, error) {
	status := rewards.RedemptionStatus(rj.Status)
	switch status {
	case "":
		status = rewards.RedemptionPendingApproval
	case rewards.RedemptionPendingApproval, rewards.RedemptionApproved, rewards.RedemptionRefused:
	default:
		return rewards.Redemption{}, invalid("redemption %d: unknown status %q", rj.ID, rj.Status)
	}
	requested, err := generic.ParseDate(rj.RequestDate)
	if err != nil {
		return rewards.Redemption{}, invalid("redemption %d: request_date: %v", rj.ID, err)
	}

	r := rewards.Redemption{
		ID:          rewards.RedemptionID(rj.ID),
		UserID:      rewards.UserID(rj.UserID),
		PrizeID:     rewards.PrizeID(rj.PrizeID),
		RequestDate: requested,
		Status:      status,
	}
	if rj.ApprovalDate != "" {
		d, err := generic.ParseDate(rj.ApprovalDate)
		if err != nil {
			return rewards.Redemption{}, invalid("redemption %d: approval_date: %v", rj.ID, err)
		}
		r.ApprovalDate = &d
	}
	return r, nil
}
