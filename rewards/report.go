package rewards

import (
	"context"
	"sort"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// READ MODELS - derived on every call, never cached
// =============================================================================

// MonthlyPoints is the validated base total that drives the medal.
func (e *Engine) MonthlyPoints(ctx context.Context, userID UserID, month string) (int64, error) {
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return 0, err
	}
	return monthlyBasePoints(ctx, e.Repo, userID, month)
}

// LeaderboardEntry is one ranked analyst.
type LeaderboardEntry struct {
	Rank          int
	User          User
	MonthlyPoints int64
	Medal         Medal
}

// Leaderboard ranks analysts by validated base points in month (the
// current month when empty), highest first, ties by ascending user id.
func (e *Engine) Leaderboard(ctx context.Context, month string) ([]LeaderboardEntry, error) {
	if month == "" {
		month = e.Today().MonthKey()
	}
	if _, err := generic.ParseMonth(month); err != nil {
		return nil, err
	}

	users, err := e.Repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := e.Repo.ListLogs(ctx, LogFilter{Status: LogValidated, Month: month})
	if err != nil {
		return nil, err
	}
	totals := make(map[UserID]int64)
	for _, l := range logs {
		totals[l.UserID] += l.BasePoints
	}

	var board []LeaderboardEntry
	for _, u := range users {
		if u.Role != RoleAnalyst {
			continue
		}
		pts := totals[u.ID]
		board = append(board, LeaderboardEntry{User: u, MonthlyPoints: pts, Medal: MedalFor(pts)})
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].MonthlyPoints != board[j].MonthlyPoints {
			return board[i].MonthlyPoints > board[j].MonthlyPoints
		}
		return board[i].User.ID < board[j].User.ID
	})
	for i := range board {
		board[i].Rank = i + 1
	}
	return board, nil
}

// HistoryEntry summarizes one month of a user's activity.
type HistoryEntry struct {
	Month    string
	Earned   int64 // validated base points for logs of this month
	Redeemed int64 // approved prize cost requested this month
	Medal    Medal
}

// History lists every month touched by the user's logs or redemptions,
// oldest first.
func (e *Engine) History(ctx context.Context, userID UserID) ([]HistoryEntry, error) {
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return nil, err
	}
	logs, err := e.Repo.ListLogs(ctx, LogFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	redemptions, err := e.Repo.ListRedemptions(ctx, RedemptionFilter{UserID: userID})
	if err != nil {
		return nil, err
	}

	byMonth := make(map[string]*HistoryEntry)
	entry := func(month string) *HistoryEntry {
		h, ok := byMonth[month]
		if !ok {
			h = &HistoryEntry{Month: month}
			byMonth[month] = h
		}
		return h
	}
	for _, l := range logs {
		h := entry(l.Month)
		if l.Status == LogValidated {
			h.Earned += l.BasePoints
		}
	}
	for _, r := range redemptions {
		h := entry(r.RequestDate.MonthKey())
		if r.Status == RedemptionApproved {
			h.Redeemed += r.Cost
		}
	}

	history := make([]HistoryEntry, 0, len(byMonth))
	for _, h := range byMonth {
		h.Medal = MedalFor(h.Earned)
		history = append(history, *h)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Month < history[j].Month })
	return history, nil
}

// Profile is the dashboard view of one user.
type Profile struct {
	User          User
	Points        int64
	Summary       generic.BalanceSummary
	Month         string
	MonthlyPoints int64
	Tier          TierProgress
	Unread        int
}

func (e *Engine) Profile(ctx context.Context, userID UserID) (*Profile, error) {
	u, err := getUser(ctx, e.Repo, userID)
	if err != nil {
		return nil, err
	}
	_, summary, err := NewPointLedger(e.Repo).Statement(ctx, userID)
	if err != nil {
		return nil, err
	}
	month := e.Today().MonthKey()
	monthly, err := monthlyBasePoints(ctx, e.Repo, userID, month)
	if err != nil {
		return nil, err
	}
	notes, err := e.Repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread := 0
	for _, n := range notes {
		if !n.Read {
			unread++
		}
	}

	return &Profile{
		User:          *u,
		Points:        summary.Balance.IntPart(),
		Summary:       summary,
		Month:         month,
		MonthlyPoints: monthly,
		Tier:          NextTier(monthly),
		Unread:        unread,
	}, nil
}

// Balance is the user's replayed point balance.
func (e *Engine) Balance(ctx context.Context, userID UserID) (int64, error) {
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return 0, err
	}
	return NewPointLedger(e.Repo).Balance(ctx, userID)
}

// Statement returns the user's ledger transactions, oldest first.
func (e *Engine) Statement(ctx context.Context, userID UserID) ([]generic.Transaction, generic.BalanceSummary, error) {
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return nil, generic.BalanceSummary{}, err
	}
	return NewPointLedger(e.Repo).Statement(ctx, userID)
}

// StatementBetween returns the user's ledger transactions effective in
// [from, to] with the net change over that range.
func (e *Engine) StatementBetween(ctx context.Context, userID UserID, from, to generic.TimePoint) ([]generic.Transaction, generic.BalanceSummary, error) {
	p, err := generic.NewPeriod(from, to)
	if err != nil {
		return nil, generic.BalanceSummary{}, err
	}
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return nil, generic.BalanceSummary{}, err
	}
	return NewPointLedger(e.Repo).StatementIn(ctx, userID, p)
}
