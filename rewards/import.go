package rewards

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// SNAPSHOT IMPORT - bootstrap a store from a catalog
// =============================================================================

// SeedUser is a user with the balance they should end up with.
type SeedUser struct {
	User
	Points int64
}

// Snapshot is a complete starting state. IDs are kept as given.
type Snapshot struct {
	Users         []SeedUser
	Actions       []Action
	Prizes        []Prize
	Missions      []Mission
	Events        []SpecialEvent
	Logs          []LoggedAction
	Redemptions   []Redemption
	Notifications []Notification
	Settings      *AdminSettings
}

// Import writes the snapshot in one transaction.
//
// A seeded balance is already net of every redemption, so each user is
// credited Points plus the cost of their pending redemptions as an opening
// adjustment, and a hold is then placed per pending redemption. The
// balance lands on Points with the holds resolvable later. Approved and
// refused redemptions are history only.
func (e *Engine) Import(ctx context.Context, snap Snapshot) error {
	err := e.run(ctx, nil, func(s *session) error {
		for i := range snap.Actions {
			if err := snap.Actions[i].validate(); err != nil {
				return fmt.Errorf("action %d: %w", snap.Actions[i].ID, err)
			}
			if err := s.repo.SaveAction(ctx, &snap.Actions[i]); err != nil {
				return err
			}
		}
		prizes := make(map[PrizeID]Prize, len(snap.Prizes))
		for i := range snap.Prizes {
			if err := snap.Prizes[i].validate(); err != nil {
				return fmt.Errorf("prize %d: %w", snap.Prizes[i].ID, err)
			}
			if err := s.repo.SavePrize(ctx, &snap.Prizes[i]); err != nil {
				return err
			}
			prizes[snap.Prizes[i].ID] = snap.Prizes[i]
		}
		for i := range snap.Missions {
			if err := snap.Missions[i].validate(); err != nil {
				return fmt.Errorf("mission %d: %w", snap.Missions[i].ID, err)
			}
			if err := s.repo.SaveMission(ctx, &snap.Missions[i]); err != nil {
				return err
			}
		}
		for i := range snap.Events {
			if err := snap.Events[i].validate(); err != nil {
				return fmt.Errorf("event %d: %w", snap.Events[i].ID, err)
			}
			if err := s.repo.SaveEvent(ctx, &snap.Events[i]); err != nil {
				return err
			}
		}

		// Resolve redemption costs first; pending ones raise the opening credit.
		held := make(map[UserID]int64)
		for i := range snap.Redemptions {
			r := &snap.Redemptions[i]
			if r.Cost == 0 {
				p, ok := prizes[r.PrizeID]
				if !ok {
					return fmt.Errorf("redemption %d: %w", r.ID, ErrPrizeNotFound)
				}
				r.Cost = p.Cost
			}
			if r.Status == "" {
				r.Status = RedemptionPendingApproval
			}
			if r.Status == RedemptionPendingApproval {
				held[r.UserID] += r.Cost
			}
		}

		for i := range snap.Users {
			su := snap.Users[i]
			if err := su.User.validate(); err != nil {
				return fmt.Errorf("user %d: %w", su.ID, err)
			}
			u := su.User
			if err := s.repo.CreateUser(ctx, &u); err != nil {
				return err
			}
			if err := s.points.Credit(ctx, openingCredit(u.ID, su.Points+held[u.ID], s.today)); err != nil {
				return err
			}
		}

		actions := make(map[ActionID]Action, len(snap.Actions))
		for _, a := range snap.Actions {
			actions[a.ID] = a
		}
		for i := range snap.Logs {
			l := &snap.Logs[i]
			if l.Status == "" {
				l.Status = LogPendingValidation
			}
			if l.Status == LogValidated && l.BasePoints == 0 {
				a, ok := actions[l.ActionID]
				if !ok {
					return fmt.Errorf("log %d: %w", l.ID, ErrActionNotFound)
				}
				l.BasePoints = a.Points
			}
			if l.CreatedAt.IsZero() {
				l.CreatedAt = s.now
			}
			if err := s.repo.SaveLog(ctx, l); err != nil {
				return err
			}
		}

		for i := range snap.Redemptions {
			r := &snap.Redemptions[i]
			if r.RequestDate.IsZero() {
				r.RequestDate = s.today
			}
			if err := s.repo.SaveRedemption(ctx, r); err != nil {
				return err
			}
			if r.Status == RedemptionPendingApproval {
				if err := s.points.Hold(ctx, *r, r.RequestDate, actor(r.UserID)); err != nil {
					return fmt.Errorf("redemption %d: %w", r.ID, err)
				}
			}
		}

		for _, n := range snap.Notifications {
			if n.ID == "" {
				n.ID = newNotificationID()
			}
			if n.Timestamp.IsZero() {
				n.Timestamp = s.now
			}
			if _, err := s.repo.AddNotification(ctx, n); err != nil {
				return err
			}
		}

		if snap.Settings != nil {
			return s.repo.SaveSettings(ctx, *snap.Settings)
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.logger().WithFields(logrus.Fields{
		"users":       len(snap.Users),
		"actions":     len(snap.Actions),
		"prizes":      len(snap.Prizes),
		"missions":    len(snap.Missions),
		"events":      len(snap.Events),
		"logs":        len(snap.Logs),
		"redemptions": len(snap.Redemptions),
	}).Info("snapshot imported")
	return nil
}
