/*
redemption.go - Redemption Engine

PURPOSE:
  Prize redemptions debit optimistically: the cost leaves the balance when
  the request is made, so a user cannot spend the same points twice while
  an approval is pending.

    Request   prizes unlocked, balance >= cost → hold -cost, pending_approval
    Approve   hold settled (balance unchanged)  → approved
    Refuse    hold released (+cost)             → refused

  approved and refused are terminal. The cost is fixed at request time, so
  a later catalog price change cannot refund more or less than was held.

SEE ALSO:
  - ledger.go: Hold / Settle / Release keys
  - generic/hold.go: Hold lifecycle
*/
package rewards

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// RequestRedemption holds the prize cost and records a pending redemption.
func (e *Engine) RequestRedemption(ctx context.Context, userID UserID, prizeID PrizeID) (*Redemption, error) {
	var out Redemption
	err := e.run(ctx, []UserID{userID}, func(s *session) error {
		if _, err := getUser(ctx, s.repo, userID); err != nil {
			return err
		}
		prize, err := getPrize(ctx, s.repo, prizeID)
		if err != nil {
			return err
		}

		settings, err := s.repo.GetSettings(ctx)
		if err != nil {
			return err
		}
		if settings.PrizesLocked {
			return ErrPrizesLocked
		}

		balance, err := s.points.Balance(ctx, userID)
		if err != nil {
			return err
		}
		if balance < prize.Cost {
			return &InsufficientPointsError{UserID: userID, Available: balance, Cost: prize.Cost}
		}

		out = Redemption{
			UserID:      userID,
			PrizeID:     prizeID,
			Cost:        prize.Cost,
			RequestDate: s.today,
			Status:      RedemptionPendingApproval,
		}
		if err := s.repo.SaveRedemption(ctx, &out); err != nil {
			return err
		}
		if err := s.points.Hold(ctx, out, s.today, actor(userID)); err != nil {
			return err
		}

		cost := prize.Cost
		s.observe(func(m Metrics) { m.PointsDebited("redemption", cost) })
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{
		"user_id":       userID,
		"redemption_id": out.ID,
		"prize_id":      prizeID,
		"cost":          out.Cost,
	}).Info("redemption requested")
	return &out, nil
}

// ResolveRedemption approves or refuses a pending redemption. Only admins
// resolve.
func (e *Engine) ResolveRedemption(ctx context.Context, id RedemptionID, adminID UserID, decision RedemptionStatus) (*Redemption, error) {
	if !decision.Terminal() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	owner, err := e.Repo.GetRedemption(ctx, id)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrRedemptionNotFound
	}

	var out Redemption
	err = e.run(ctx, []UserID{owner.UserID}, func(s *session) error {
		if _, err := getAdmin(ctx, s.repo, adminID); err != nil {
			return err
		}
		r, err := s.repo.GetRedemption(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return ErrRedemptionNotFound
		}
		if r.Status.Terminal() {
			return &TransitionError{Entity: "redemption", ID: int64(r.ID), From: string(r.Status), To: string(decision)}
		}

		by := actor(adminID)
		if decision == RedemptionApproved {
			err = s.points.Settle(ctx, *r, s.today, by)
		} else {
			err = s.points.Release(ctx, *r, s.today, by, "prize refused")
			cost := r.Cost
			s.observe(func(m Metrics) { m.PointsCredited("refund", cost) })
		}
		if err != nil {
			return err
		}

		day := s.today
		r.Status = decision
		r.ApprovalDate = &day
		r.ResolvedBy = adminID
		if err := s.repo.SaveRedemption(ctx, r); err != nil {
			return err
		}

		out = *r
		s.observe(func(m Metrics) { m.RedemptionResolved(decision) })
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{
		"redemption_id": id,
		"user_id":       out.UserID,
		"status":        out.Status,
		"admin_id":      adminID,
	}).Info("redemption resolved")
	return &out, nil
}
