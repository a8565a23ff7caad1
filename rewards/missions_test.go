package rewards_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

const collab = "Colaboração e Desenvolvimento"

func (f *fixture) mission(cadence generic.Cadence, category string, count int, reward int64) rewards.Mission {
	f.t.Helper()
	m, err := f.engine.SaveMission(f.ctx, rewards.Mission{
		Title:        "Mission " + string(cadence),
		Cadence:      cadence,
		Goal:         rewards.MissionGoal{Type: rewards.GoalLogActionCategory, Category: category, Count: count},
		RewardPoints: reward,
		Global:       true,
	})
	require.NoError(f.t, err)
	return *m
}

func (f *fixture) progress(userID rewards.UserID, m rewards.Mission, period string) *rewards.MissionProgress {
	f.t.Helper()
	p, err := f.store.GetProgress(f.ctx, userID, m.ID, period)
	require.NoError(f.t, err)
	return p
}

func TestMissions_WeeklyLifecycle(t *testing.T) {
	f := newFixture(t)
	m := f.mission(generic.CadenceWeekly, collab, 2, 50)
	a := f.action(collab, 30)
	const week = "2024-W30"

	// GIVEN: No progress row until the first qualifying validation
	assert.Nil(t, f.progress(f.analyst.ID, m, week))

	d := f.validated(f.analyst.ID, a.ID)
	assert.Empty(t, d.Completed)
	p := f.progress(f.analyst.ID, m, week)
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Progress)
	assert.Equal(t, rewards.ProgressInProgress, p.Status)

	// WHEN: The second qualifying action is validated
	d = f.validated(f.analyst.ID, a.ID)

	// THEN: The mission completes and the user is told
	require.Len(t, d.Completed, 1)
	assert.Equal(t, rewards.ProgressCompleted, d.Completed[0].Status)
	p = f.progress(f.analyst.ID, m, week)
	assert.Equal(t, 2, p.Progress)
	assert.Equal(t, rewards.ProgressCompleted, p.Status)
	assert.Len(t, f.notifications(f.analyst.ID, rewards.NotifyMissionCompleted), 1)

	// WHEN: The reward is claimed
	claimed, err := f.engine.Claim(f.ctx, f.analyst.ID, m.ID, "")
	require.NoError(t, err)
	assert.Equal(t, rewards.ProgressClaimed, claimed.Status)
	assert.Equal(t, week, claimed.Period)
	assert.Equal(t, int64(60+50), f.balance(f.analyst.ID))

	// WHEN: A third matching action is validated in the same week
	f.validated(f.analyst.ID, a.ID)

	// THEN: The claimed tuple is frozen
	p = f.progress(f.analyst.ID, m, week)
	assert.Equal(t, 2, p.Progress)
	assert.Equal(t, rewards.ProgressClaimed, p.Status)
	assert.Equal(t, int64(90+50), f.balance(f.analyst.ID))

	assert.Equal(t, 1, f.metrics.completed[generic.CadenceWeekly])
	assert.Equal(t, 1, f.metrics.claimed[generic.CadenceWeekly])
	assert.Equal(t, int64(50), f.metrics.credited["mission"])
}

func TestMissions_CompletedIsFrozenUntilClaim(t *testing.T) {
	f := newFixture(t)
	m := f.mission(generic.CadenceDaily, collab, 1, 20)
	a := f.action(collab, 10)

	f.validated(f.analyst.ID, a.ID)
	f.validated(f.analyst.ID, a.ID)

	p := f.progress(f.analyst.ID, m, "2024-07-24")
	require.NotNil(t, p)
	assert.Equal(t, 1, p.Progress)
	assert.Equal(t, rewards.ProgressCompleted, p.Status)
	assert.Len(t, f.notifications(f.analyst.ID, rewards.NotifyMissionCompleted), 1)
}

func TestMissions_NewPeriodStartsFresh(t *testing.T) {
	f := newFixture(t)
	m := f.mission(generic.CadenceWeekly, collab, 2, 50)
	a := f.action(collab, 30)

	f.validated(f.analyst.ID, a.ID)

	// WHEN: The clock moves to the following Sunday
	f.now = time.Date(2024, 7, 28, 9, 0, 0, 0, time.UTC)
	f.validated(f.analyst.ID, a.ID)

	// THEN: Each week has its own counter
	assert.Equal(t, 1, f.progress(f.analyst.ID, m, "2024-W30").Progress)
	assert.Equal(t, 1, f.progress(f.analyst.ID, m, "2024-W31").Progress)
}

func TestMissions_OnlyMatchingGlobalMissionsCount(t *testing.T) {
	f := newFixture(t)
	monthly := f.mission(generic.CadenceMonthly, collab, 3, 100)
	other := f.mission(generic.CadenceMonthly, "Inovação", 1, 100)
	hidden, err := f.engine.SaveMission(f.ctx, rewards.Mission{
		Title:   "Private",
		Cadence: generic.CadenceMonthly,
		Goal:    rewards.MissionGoal{Type: rewards.GoalLogActionCategory, Category: collab, Count: 1},
		Global:  false,
	})
	require.NoError(t, err)

	f.validated(f.analyst.ID, f.action(collab, 10).ID)

	assert.Equal(t, 1, f.progress(f.analyst.ID, monthly, "2024-07").Progress)
	assert.Nil(t, f.progress(f.analyst.ID, other, "2024-07"))
	assert.Nil(t, f.progress(f.analyst.ID, *hidden, "2024-07"))
}

func TestClaim_Refusals(t *testing.T) {
	f := newFixture(t)
	m := f.mission(generic.CadenceWeekly, collab, 2, 50)
	a := f.action(collab, 30)

	t.Run("no progress", func(t *testing.T) {
		_, err := f.engine.Claim(f.ctx, f.analyst.ID, m.ID, "")
		assert.ErrorIs(t, err, rewards.ErrMissionNotClaimable)
	})

	t.Run("in progress", func(t *testing.T) {
		f.validated(f.analyst.ID, a.ID)
		_, err := f.engine.Claim(f.ctx, f.analyst.ID, m.ID, "2024-W30")
		assert.ErrorIs(t, err, rewards.ErrMissionNotClaimable)
	})

	t.Run("already claimed", func(t *testing.T) {
		f.validated(f.analyst.ID, a.ID)
		_, err := f.engine.Claim(f.ctx, f.analyst.ID, m.ID, "2024-W30")
		require.NoError(t, err)

		_, err = f.engine.Claim(f.ctx, f.analyst.ID, m.ID, "2024-W30")
		assert.ErrorIs(t, err, rewards.ErrMissionNotClaimable)
		assert.Equal(t, int64(60+50), f.balance(f.analyst.ID))
	})

	t.Run("unknown mission", func(t *testing.T) {
		_, err := f.engine.Claim(f.ctx, f.analyst.ID, 999, "")
		assert.ErrorIs(t, err, rewards.ErrMissionNotFound)
	})
}

func TestClaim_PastPeriod(t *testing.T) {
	f := newFixture(t)
	m := f.mission(generic.CadenceDaily, collab, 1, 20)
	f.validated(f.analyst.ID, f.action(collab, 10).ID)

	// GIVEN: The day the mission completed has passed
	f.now = f.now.Add(48 * time.Hour)

	// THEN: It can still be claimed by naming the period
	_, err := f.engine.Claim(f.ctx, f.analyst.ID, m.ID, "")
	assert.ErrorIs(t, err, rewards.ErrMissionNotClaimable)

	p, err := f.engine.Claim(f.ctx, f.analyst.ID, m.ID, "2024-07-24")
	require.NoError(t, err)
	assert.Equal(t, rewards.ProgressClaimed, p.Status)
	assert.Equal(t, int64(30), f.balance(f.analyst.ID))
}

func TestMissionBoard(t *testing.T) {
	f := newFixture(t)
	weekly := f.mission(generic.CadenceWeekly, collab, 2, 50)
	monthly := f.mission(generic.CadenceMonthly, "Inovação", 5, 200)
	f.validated(f.analyst.ID, f.action(collab, 30).ID)

	board, err := f.engine.MissionBoard(f.ctx, f.analyst.ID)
	require.NoError(t, err)
	require.Len(t, board, 2)

	assert.Equal(t, weekly.ID, board[0].Mission.ID)
	assert.Equal(t, "2024-W30", board[0].Progress.Period)
	assert.Equal(t, 1, board[0].Progress.Progress)

	assert.Equal(t, "2024-07-21", board[0].Period.Start.String())
	assert.Equal(t, "2024-07-27", board[0].Period.End.String())
	assert.Equal(t, 4, board[0].DaysLeft)

	assert.Equal(t, monthly.ID, board[1].Mission.ID)
	assert.Equal(t, "2024-07", board[1].Progress.Period)
	assert.Zero(t, board[1].Progress.Progress)
	assert.Equal(t, rewards.ProgressInProgress, board[1].Progress.Status)
	assert.Equal(t, "2024-07-01", board[1].Period.Start.String())
	assert.Equal(t, "2024-07-31", board[1].Period.End.String())
	assert.Equal(t, 8, board[1].DaysLeft)
}

func TestMissionBoard_WeekEndsWithTheYear(t *testing.T) {
	// GIVEN: Tuesday 2024-12-31, whose Sunday week runs into 2025
	f := newFixture(t)
	f.mission(generic.CadenceWeekly, collab, 2, 50)
	f.now = time.Date(2024, 12, 31, 9, 0, 0, 0, time.UTC)

	// WHEN: The board is read
	board, err := f.engine.MissionBoard(f.ctx, f.analyst.ID)
	require.NoError(t, err)
	require.Len(t, board, 1)

	// THEN: The window stops where the week key changes
	assert.Equal(t, "2024-W53", board[0].Progress.Period)
	assert.Equal(t, "2024-12-29", board[0].Period.Start.String())
	assert.Equal(t, "2024-12-31", board[0].Period.End.String())
	assert.Equal(t, 1, board[0].DaysLeft)
}
