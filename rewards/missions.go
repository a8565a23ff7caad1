/*
missions.go - Mission Progress Tracker

PURPOSE:
  Counts validated actions toward global missions, one counter per
  (user, mission, period). The period key comes from the mission's cadence
  on the day the validation happens, so a new day/week/month starts a new
  counter without any reset job.

STATES:
  in_progress ──(progress reaches goal)──▶ completed ──(Claim)──▶ claimed

  Progress only moves while in_progress. Once completed the counter is
  frozen for the period, and a claimed tuple can never pay twice: the
  status check refuses it, and the ledger key
  mission:<user>:<mission>:<period>:claim refuses it again.

EXAMPLE (weekly, goal 2, "Colaboração e Desenvolvimento"):
  validate #1  → 2024-W30 progress 1, in_progress
  validate #2  → 2024-W30 progress 2, completed (notification)
  Claim        → 2024-W30 claimed, +reward
  validate #3  → 2024-W30 unchanged
  next Sunday  → 2024-W31 starts at 0

SEE ALSO:
  - generic/period.go: Cadence keys
  - validation.go: Calls recordProgress on every validation
*/
package rewards

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/warp/recognition-engine/generic"
)

// recordProgress advances every global mission whose goal the action
// matches and returns the tuples this call completed.
func (s *session) recordProgress(ctx context.Context, userID UserID, a Action) ([]MissionProgress, error) {
	missions, err := s.repo.ListMissions(ctx)
	if err != nil {
		return nil, err
	}

	var completed []MissionProgress
	for _, m := range missions {
		if !m.Global || !m.Goal.Matches(a) {
			continue
		}

		period := m.Cadence.Key(s.today)
		p, err := s.repo.GetProgress(ctx, userID, m.ID, period)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = &MissionProgress{UserID: userID, MissionID: m.ID, Period: period, Status: ProgressInProgress}
		}
		if p.Status != ProgressInProgress {
			continue
		}

		p.Progress++
		p.UpdatedAt = s.now
		if p.Progress >= m.Goal.Count {
			p.Status = ProgressCompleted
			completed = append(completed, *p)

			cadence := m.Cadence
			s.notify(Notification{
				Kind:        NotifyMissionCompleted,
				RecipientID: userID,
				Message:     fmt.Sprintf("Mission completed: %q! Claim your reward on the Missions page.", m.Title),
				Key:         fmt.Sprintf("mission:%d:%d:%s:completed", userID, m.ID, period),
			})
			s.observe(func(mt Metrics) { mt.MissionCompleted(cadence) })
		}

		if err := s.repo.SaveProgress(ctx, *p); err != nil {
			return nil, err
		}
	}
	return completed, nil
}

// Claim pays out a completed mission for period, or for the current period
// of the mission's cadence when period is empty.
func (e *Engine) Claim(ctx context.Context, userID UserID, missionID MissionID, period string) (*MissionProgress, error) {
	var out MissionProgress
	var reward int64
	err := e.run(ctx, []UserID{userID}, func(s *session) error {
		if _, err := getUser(ctx, s.repo, userID); err != nil {
			return err
		}
		m, err := getMission(ctx, s.repo, missionID)
		if err != nil {
			return err
		}
		if period == "" {
			period = m.Cadence.Key(s.today)
		}

		p, err := s.repo.GetProgress(ctx, userID, missionID, period)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: mission %d has no progress in %s", ErrMissionNotClaimable, missionID, period)
		}
		if p.Status != ProgressCompleted {
			return fmt.Errorf("%w: mission %d is %s in %s", ErrMissionNotClaimable, missionID, p.Status, period)
		}

		err = s.points.Credit(ctx, Credit{
			UserID:    userID,
			Points:    m.RewardPoints,
			Key:       fmt.Sprintf("mission:%d:%d:%s:claim", userID, missionID, period),
			Reference: fmt.Sprintf("mission-%d", missionID),
			Reason:    "mission reward: " + m.Title,
			At:        s.today,
			By:        actor(userID),
			Metadata:  map[string]string{"period": period, "cadence": string(m.Cadence)},
		})
		if err != nil {
			return err
		}

		p.Status = ProgressClaimed
		p.UpdatedAt = s.now
		if err := s.repo.SaveProgress(ctx, *p); err != nil {
			return err
		}

		out, reward = *p, m.RewardPoints
		cadence := m.Cadence
		s.observe(func(mt Metrics) {
			mt.MissionClaimed(cadence)
			mt.PointsCredited("mission", reward)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{
		"user_id":    userID,
		"mission_id": missionID,
		"period":     out.Period,
		"reward":     reward,
	}).Info("mission reward claimed")
	return &out, nil
}

// MissionView is a global mission with the user's progress in the current
// period. Missing tuples show as zero and in_progress. DaysLeft counts today.
type MissionView struct {
	Mission  Mission
	Progress MissionProgress
	Period   generic.Period
	DaysLeft int
}

// MissionBoard lists the global missions a user sees today.
func (e *Engine) MissionBoard(ctx context.Context, userID UserID) ([]MissionView, error) {
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return nil, err
	}
	missions, err := e.Repo.ListMissions(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(missions, func(i, j int) bool { return missions[i].ID < missions[j].ID })

	today := e.Today()
	var views []MissionView
	for _, m := range missions {
		if !m.Global {
			continue
		}
		period := m.Cadence.Key(today)
		p, err := e.Repo.GetProgress(ctx, userID, m.ID, period)
		if err != nil {
			return nil, err
		}
		if p == nil {
			p = &MissionProgress{UserID: userID, MissionID: m.ID, Period: period, Status: ProgressInProgress}
		}
		window := m.Cadence.PeriodFor(today)
		views = append(views, MissionView{
			Mission:  m,
			Progress: *p,
			Period:   window,
			DaysLeft: len(generic.Period{Start: today, End: window.End}.Days()),
		})
	}
	return views, nil
}
