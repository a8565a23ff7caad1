/*
validation.go - Action Validation Engine

PURPOSE:
  Moves logged actions through their one-way state machine and applies the
  side effects of a validation:

    pending_validation ──▶ validated  (credit base+bonus, missions, medal)
                       └─▶ rejected   (nothing else)

  Validated and rejected are terminal. A second decision on the same log is
  refused with a TransitionError before anything is written.

MEDAL CHECK:
  The before/after comparison uses base points only, even though the
  ledger is credited base+bonus. A bonus can therefore push the balance
  further than the medal reflects. This matches how monthly totals are
  reported everywhere else (report.go).

  Single: before = validated base total for the log's month,
          after  = before + this log's base points
  Bulk:   before/after = validated base total for the current month,
          measured once around the whole batch

SEE ALSO:
  - bonus.go: Bonus evaluation
  - missions.go: Progress recorded on every validation
  - ledger.go: Credit keys
*/
package rewards

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// RESULTS
// =============================================================================

// MedalChange is a strict tier increase within a month.
type MedalChange struct {
	Month string
	From  Medal
	To    Medal
}

// Decision is the outcome of one log transition.
type Decision struct {
	Log      LoggedAction
	Action   Action
	Credited int64         // base + bonus, zero on rejection
	Event    *SpecialEvent // the event consulted, if any was active

	// Missions completed by this validation.
	Completed []MissionProgress

	// Set only when the tier strictly increased.
	Promotion *MedalChange
}

type BulkResult struct {
	UserID    UserID
	Status    LogStatus
	Decisions []Decision
	Credited  int64
	Promotion *MedalChange
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit records a pending claim for the current month.
func (e *Engine) Submit(ctx context.Context, userID UserID, actionID ActionID, notes string) (*LoggedAction, error) {
	var out LoggedAction
	err := e.run(ctx, []UserID{userID}, func(s *session) error {
		if _, err := getUser(ctx, s.repo, userID); err != nil {
			return err
		}
		if _, err := getAction(ctx, s.repo, actionID); err != nil {
			return err
		}

		settings, err := s.repo.GetSettings(ctx)
		if err != nil {
			return err
		}
		if settings.ActionsLocked(s.today) {
			return ErrActionsLocked
		}

		out = LoggedAction{
			UserID:    userID,
			ActionID:  actionID,
			Month:     s.today.MonthKey(),
			Notes:     notes,
			Status:    LogPendingValidation,
			CreatedAt: s.now,
		}
		return s.repo.SaveLog(ctx, &out)
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{
		"user_id": userID,
		"log_id":  out.ID,
		"month":   out.Month,
	}).Info("action submitted")
	return &out, nil
}

// =============================================================================
// SINGLE DECISION
// =============================================================================

// DecideLog validates or rejects one pending log.
func (e *Engine) DecideLog(ctx context.Context, logID LogID, validatorID UserID, decision LogStatus) (*Decision, error) {
	if !decision.Terminal() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	owner, err := e.Repo.GetLog(ctx, logID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrLogNotFound
	}

	var out Decision
	err = e.run(ctx, []UserID{owner.UserID}, func(s *session) error {
		if _, err := getUser(ctx, s.repo, validatorID); err != nil {
			return err
		}
		l, err := s.repo.GetLog(ctx, logID)
		if err != nil {
			return err
		}
		if l == nil {
			return ErrLogNotFound
		}
		if l.Status.Terminal() {
			return &TransitionError{Entity: "logged action", ID: int64(l.ID), From: string(l.Status), To: string(decision)}
		}

		if decision == LogRejected {
			out, err = s.reject(ctx, l, validatorID)
			return err
		}

		before, err := monthlyBasePoints(ctx, s.repo, l.UserID, l.Month)
		if err != nil {
			return err
		}
		out, err = s.validate(ctx, l, validatorID)
		if err != nil {
			return err
		}
		s.notifyValidated(out)
		out.Promotion = s.promote(l.UserID, l.Month, before, before+l.BasePoints)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{
		"log_id":    logID,
		"user_id":   out.Log.UserID,
		"status":    out.Log.Status,
		"credited":  out.Credited,
		"validator": validatorID,
	}).Info("logged action decided")
	return &out, nil
}

// =============================================================================
// BULK DECISION
// =============================================================================

// BulkDecide applies one decision to every pending log of a user. Credits
// and mission progress happen per log; the medal is compared once.
func (e *Engine) BulkDecide(ctx context.Context, userID, validatorID UserID, decision LogStatus) (*BulkResult, error) {
	if !decision.Terminal() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	out := BulkResult{UserID: userID, Status: decision}
	err := e.run(ctx, []UserID{userID}, func(s *session) error {
		if _, err := getUser(ctx, s.repo, userID); err != nil {
			return err
		}
		if _, err := getUser(ctx, s.repo, validatorID); err != nil {
			return err
		}

		pending, err := s.repo.ListLogs(ctx, LogFilter{UserID: userID, Status: LogPendingValidation})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return ErrNothingPending
		}
		sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

		month := s.today.MonthKey()
		before, err := monthlyBasePoints(ctx, s.repo, userID, month)
		if err != nil {
			return err
		}

		for i := range pending {
			var d Decision
			if decision == LogRejected {
				d, err = s.reject(ctx, &pending[i], validatorID)
			} else {
				d, err = s.validate(ctx, &pending[i], validatorID)
				if err == nil {
					s.notifyValidated(d)
				}
			}
			if err != nil {
				return err
			}
			out.Decisions = append(out.Decisions, d)
			out.Credited += d.Credited
		}

		if decision == LogValidated {
			after, err := monthlyBasePoints(ctx, s.repo, userID, month)
			if err != nil {
				return err
			}
			out.Promotion = s.promote(userID, month, before, after)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{
		"user_id":  userID,
		"status":   decision,
		"count":    len(out.Decisions),
		"credited": out.Credited,
	}).Info("bulk decision applied")
	return &out, nil
}

// =============================================================================
// ADMIN DIRECT LOG
// =============================================================================

// AdminLog records an already validated action for a user. Logging locks do
// not apply; the medal is not compared.
func (e *Engine) AdminLog(ctx context.Context, adminID, userID UserID, actionID ActionID, notes string) (*Decision, error) {
	var out Decision
	err := e.run(ctx, []UserID{userID}, func(s *session) error {
		admin, err := getAdmin(ctx, s.repo, adminID)
		if err != nil {
			return err
		}
		if _, err := getUser(ctx, s.repo, userID); err != nil {
			return err
		}
		if _, err := getAction(ctx, s.repo, actionID); err != nil {
			return err
		}

		l := LoggedAction{
			UserID:    userID,
			ActionID:  actionID,
			Month:     s.today.MonthKey(),
			Notes:     notes,
			Status:    LogPendingValidation,
			CreatedAt: s.now,
		}
		if err := s.repo.SaveLog(ctx, &l); err != nil {
			return err
		}

		out, err = s.validate(ctx, &l, adminID)
		if err != nil {
			return err
		}
		s.notify(Notification{
			Kind:        NotifyAdminLog,
			SenderID:    admin.ID,
			RecipientID: userID,
			Message: fmt.Sprintf("%s logged %q for you, adding %d points%s.",
				admin.Name, out.Action.Description, out.Credited, bonusText(out)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"log_id":   out.Log.ID,
		"credited": out.Credited,
	}).Info("action logged by admin")
	return &out, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (s *session) reject(ctx context.Context, l *LoggedAction, by UserID) (Decision, error) {
	day := s.today
	l.Status = LogRejected
	l.ValidationDate = &day
	l.ValidatedBy = by
	if err := s.repo.SaveLog(ctx, l); err != nil {
		return Decision{}, err
	}
	s.observe(func(m Metrics) { m.LogDecided(LogRejected) })
	return Decision{Log: *l}, nil
}

// validate credits base+bonus, stamps the log and records mission
// progress. Callers queue the user-facing notification.
func (s *session) validate(ctx context.Context, l *LoggedAction, by UserID) (Decision, error) {
	action, err := getAction(ctx, s.repo, l.ActionID)
	if err != nil {
		return Decision{}, err
	}
	events, err := s.repo.ListEvents(ctx)
	if err != nil {
		return Decision{}, err
	}
	bonus, ev := BonusFor(events, *action, s.today)
	total := action.Points + bonus

	meta := map[string]string{
		"category": action.Category,
		"month":    l.Month,
		"base":     strconv.FormatInt(action.Points, 10),
		"bonus":    strconv.FormatInt(bonus, 10),
	}
	if ev != nil && bonus > 0 {
		meta["event_id"] = strconv.FormatInt(int64(ev.ID), 10)
	}
	err = s.points.Credit(ctx, Credit{
		UserID:    l.UserID,
		Points:    total,
		Key:       fmt.Sprintf("action:%d:credit", l.ID),
		Reference: fmt.Sprintf("log-%d", l.ID),
		Reason:    action.Description,
		At:        s.today,
		By:        actor(by),
		Metadata:  meta,
	})
	if err != nil {
		return Decision{}, err
	}

	day := s.today
	l.Status = LogValidated
	l.ValidationDate = &day
	l.ValidatedBy = by
	l.BasePoints = action.Points
	l.BonusPoints = bonus
	if err := s.repo.SaveLog(ctx, l); err != nil {
		return Decision{}, err
	}

	completed, err := s.recordProgress(ctx, l.UserID, *action)
	if err != nil {
		return Decision{}, err
	}

	s.observe(func(m Metrics) {
		m.LogDecided(LogValidated)
		m.PointsCredited("action", action.Points)
		if bonus > 0 {
			m.PointsCredited("event_bonus", bonus)
		}
	})
	return Decision{Log: *l, Action: *action, Credited: total, Event: ev, Completed: completed}, nil
}

func (s *session) notifyValidated(d Decision) {
	s.notify(Notification{
		Kind:        NotifyActionValidated,
		RecipientID: d.Log.UserID,
		Message:     fmt.Sprintf("Action %q validated: +%d points%s.", d.Action.Description, d.Credited, bonusText(d)),
	})
}

// promote emits the celebration when the tier strictly increased.
func (s *session) promote(userID UserID, month string, before, after int64) *MedalChange {
	from, to := MedalFor(before), MedalFor(after)
	if to.Rank() <= from.Rank() {
		return nil
	}

	change := &MedalChange{Month: month, From: from, To: to}
	s.notify(Notification{
		Kind:        NotifyMedalPromoted,
		RecipientID: userID,
		Message:     fmt.Sprintf("Congratulations! You reached the %s medal this month!", to),
		Key:         fmt.Sprintf("medal:%d:%s:%s", userID, month, to),
		Medal:       to,
	})
	s.observe(func(m Metrics) { m.MedalPromoted(to) })
	return change
}

func bonusText(d Decision) string {
	bonus := d.Log.BonusPoints
	if bonus <= 0 {
		return ""
	}
	if d.Event != nil {
		return fmt.Sprintf(" (+%d bonus from %s)", bonus, d.Event.Name)
	}
	return fmt.Sprintf(" (+%d bonus)", bonus)
}

// monthlyBasePoints sums the base points of the user's validated logs for
// month. Event bonuses are not included.
func monthlyBasePoints(ctx context.Context, r LogStore, userID UserID, month string) (int64, error) {
	logs, err := r.ListLogs(ctx, LogFilter{UserID: userID, Status: LogValidated, Month: month})
	if err != nil {
		return 0, err
	}
	var total int64
	for _, l := range logs {
		total += l.BasePoints
	}
	return total, nil
}
