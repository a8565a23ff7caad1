package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/recognition-engine/rewards"
)

// insertOrUpsert runs insert when id is zero and returns the new rowid, or
// runs upsert with id bound first and returns id unchanged.
func (s *Store) insertOrUpsert(ctx context.Context, id int64, insert, upsert string, args ...any) (int64, error) {
	if id != 0 {
		_, err := s.q.ExecContext(ctx, upsert, append([]any{id}, args...)...)
		return id, err
	}
	res, err := s.q.ExecContext(ctx, insert, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// =============================================================================
// USERS (rewards.UserStore)
// =============================================================================

const userColumns = `id, name, username, password, role`

// CreateUser inserts u. A non-zero ID is kept.
func (s *Store) CreateUser(ctx context.Context, u *rewards.User) error {
	var err error
	if u.ID != 0 {
		_, err = s.q.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Username, u.Password, u.Role)
	} else {
		var res sql.Result
		res, err = s.q.ExecContext(ctx,
			`INSERT INTO users (name, username, password, role) VALUES (?, ?, ?, ?)`,
			u.Name, u.Username, u.Password, u.Role)
		if err == nil {
			var id int64
			id, err = res.LastInsertId()
			u.ID = rewards.UserID(id)
		}
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", rewards.ErrUsernameTaken, u.Username)
	}
	return err
}

func (s *Store) UpdateUser(ctx context.Context, u rewards.User) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE users SET name = ?, username = ?, password = ?, role = ? WHERE id = ?`,
		u.Name, u.Username, u.Password, u.Role, u.ID)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s", rewards.ErrUsernameTaken, u.Username)
	}
	return err
}

func (s *Store) DeleteUser(ctx context.Context, id rewards.UserID) error {
	return s.WithTx(ctx, func(r rewards.Repository) error {
		view := r.(*Store)
		for _, stmt := range []string{
			`DELETE FROM notification_reads WHERE user_id = ?`,
			`DELETE FROM notifications WHERE recipient_id = ?`,
			`DELETE FROM users WHERE id = ?`,
		} {
			if _, err := view.q.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, id rewards.UserID) (*rewards.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*rewards.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*rewards.User, error) {
	var u rewards.User
	err := s.q.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Username, &u.Password, &u.Role)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]rewards.User, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []rewards.User
	for rows.Next() {
		var u rewards.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Password, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// ACTIONS
// =============================================================================

func (s *Store) SaveAction(ctx context.Context, a *rewards.Action) error {
	id, err := s.insertOrUpsert(ctx, int64(a.ID),
		`INSERT INTO actions (category, description, points, validator) VALUES (?, ?, ?, ?)`,
		`INSERT INTO actions (id, category, description, points, validator) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			description = excluded.description,
			points = excluded.points,
			validator = excluded.validator`,
		a.Category, a.Description, a.Points, nullString(a.Validator))
	if err != nil {
		return fmt.Errorf("failed to save action: %w", err)
	}
	a.ID = rewards.ActionID(id)
	return nil
}

func (s *Store) GetAction(ctx context.Context, id rewards.ActionID) (*rewards.Action, error) {
	actions, err := s.queryActions(ctx, `WHERE id = ?`, id)
	if err != nil || len(actions) == 0 {
		return nil, err
	}
	return &actions[0], nil
}

func (s *Store) ListActions(ctx context.Context) ([]rewards.Action, error) {
	return s.queryActions(ctx, `ORDER BY category, id`)
}

func (s *Store) DeleteAction(ctx context.Context, id rewards.ActionID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM actions WHERE id = ?`, id)
	return err
}

func (s *Store) queryActions(ctx context.Context, clause string, args ...any) ([]rewards.Action, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, category, description, points, validator FROM actions `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []rewards.Action
	for rows.Next() {
		var a rewards.Action
		var validator sql.NullString
		if err := rows.Scan(&a.ID, &a.Category, &a.Description, &a.Points, &validator); err != nil {
			return nil, err
		}
		a.Validator = validator.String
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// =============================================================================
// PRIZES
// =============================================================================

func (s *Store) SavePrize(ctx context.Context, p *rewards.Prize) error {
	id, err := s.insertOrUpsert(ctx, int64(p.ID),
		`INSERT INTO prizes (category, description, cost, benefit, icon, image_url) VALUES (?, ?, ?, ?, ?, ?)`,
		`INSERT INTO prizes (id, category, description, cost, benefit, icon, image_url) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			description = excluded.description,
			cost = excluded.cost,
			benefit = excluded.benefit,
			icon = excluded.icon,
			image_url = excluded.image_url`,
		nullString(p.Category), p.Description, p.Cost, nullString(p.Benefit), nullString(p.Icon), nullString(p.ImageURL))
	if err != nil {
		return fmt.Errorf("failed to save prize: %w", err)
	}
	p.ID = rewards.PrizeID(id)
	return nil
}

func (s *Store) GetPrize(ctx context.Context, id rewards.PrizeID) (*rewards.Prize, error) {
	prizes, err := s.queryPrizes(ctx, `WHERE id = ?`, id)
	if err != nil || len(prizes) == 0 {
		return nil, err
	}
	return &prizes[0], nil
}

func (s *Store) ListPrizes(ctx context.Context) ([]rewards.Prize, error) {
	return s.queryPrizes(ctx, `ORDER BY cost, id`)
}

func (s *Store) DeletePrize(ctx context.Context, id rewards.PrizeID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM prizes WHERE id = ?`, id)
	return err
}

func (s *Store) queryPrizes(ctx context.Context, clause string, args ...any) ([]rewards.Prize, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, category, description, cost, benefit, icon, image_url FROM prizes `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prizes []rewards.Prize
	for rows.Next() {
		var p rewards.Prize
		var category, benefit, icon, imageURL sql.NullString
		if err := rows.Scan(&p.ID, &category, &p.Description, &p.Cost, &benefit, &icon, &imageURL); err != nil {
			return nil, err
		}
		p.Category, p.Benefit, p.Icon, p.ImageURL = category.String, benefit.String, icon.String, imageURL.String
		prizes = append(prizes, p)
	}
	return prizes, rows.Err()
}

// =============================================================================
// MISSIONS
// =============================================================================

func (s *Store) SaveMission(ctx context.Context, m *rewards.Mission) error {
	id, err := s.insertOrUpsert(ctx, int64(m.ID),
		`INSERT INTO missions (title, description, cadence, goal_type, goal_category, goal_count, reward_points, global)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		`INSERT INTO missions (id, title, description, cadence, goal_type, goal_category, goal_count, reward_points, global)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			cadence = excluded.cadence,
			goal_type = excluded.goal_type,
			goal_category = excluded.goal_category,
			goal_count = excluded.goal_count,
			reward_points = excluded.reward_points,
			global = excluded.global`,
		m.Title, nullString(m.Description), m.Cadence, m.Goal.Type, m.Goal.Category, m.Goal.Count, m.RewardPoints, m.Global)
	if err != nil {
		return fmt.Errorf("failed to save mission: %w", err)
	}
	m.ID = rewards.MissionID(id)
	return nil
}

func (s *Store) GetMission(ctx context.Context, id rewards.MissionID) (*rewards.Mission, error) {
	missions, err := s.queryMissions(ctx, `WHERE id = ?`, id)
	if err != nil || len(missions) == 0 {
		return nil, err
	}
	return &missions[0], nil
}

func (s *Store) ListMissions(ctx context.Context) ([]rewards.Mission, error) {
	return s.queryMissions(ctx, `ORDER BY id`)
}

func (s *Store) DeleteMission(ctx context.Context, id rewards.MissionID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM missions WHERE id = ?`, id)
	return err
}

func (s *Store) queryMissions(ctx context.Context, clause string, args ...any) ([]rewards.Mission, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, title, description, cadence, goal_type, goal_category, goal_count, reward_points, global
		FROM missions `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missions []rewards.Mission
	for rows.Next() {
		var m rewards.Mission
		var description sql.NullString
		if err := rows.Scan(&m.ID, &m.Title, &description, &m.Cadence,
			&m.Goal.Type, &m.Goal.Category, &m.Goal.Count, &m.RewardPoints, &m.Global); err != nil {
			return nil, err
		}
		m.Description = description.String
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// =============================================================================
// SPECIAL EVENTS
// =============================================================================

func (s *Store) SaveEvent(ctx context.Context, ev *rewards.SpecialEvent) error {
	config, err := json.Marshal(ev.Config)
	if err != nil {
		return err
	}
	id, err := s.insertOrUpsert(ctx, int64(ev.ID),
		`INSERT INTO special_events (name, description, event_type, config_json, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		`INSERT INTO special_events (id, name, description, event_type, config_json, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			event_type = excluded.event_type,
			config_json = excluded.config_json,
			start_date = excluded.start_date,
			end_date = excluded.end_date`,
		ev.Name, nullString(ev.Description), ev.Type, string(config), formatDate(ev.Start), formatDate(ev.End))
	if err != nil {
		return fmt.Errorf("failed to save special event: %w", err)
	}
	ev.ID = rewards.EventID(id)
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id rewards.EventID) (*rewards.SpecialEvent, error) {
	events, err := s.queryEvents(ctx, `WHERE id = ?`, id)
	if err != nil || len(events) == 0 {
		return nil, err
	}
	return &events[0], nil
}

// ListEvents returns events ordered by ID ascending.
func (s *Store) ListEvents(ctx context.Context) ([]rewards.SpecialEvent, error) {
	return s.queryEvents(ctx, `ORDER BY id`)
}

func (s *Store) DeleteEvent(ctx context.Context, id rewards.EventID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM special_events WHERE id = ?`, id)
	return err
}

func (s *Store) queryEvents(ctx context.Context, clause string, args ...any) ([]rewards.SpecialEvent, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, description, event_type, config_json, start_date, end_date FROM special_events `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []rewards.SpecialEvent
	for rows.Next() {
		var (
			ev          rewards.SpecialEvent
			description sql.NullString
			config      string
			start, end  string
		)
		if err := rows.Scan(&ev.ID, &ev.Name, &description, &ev.Type, &config, &start, &end); err != nil {
			return nil, err
		}
		ev.Description = description.String
		if err := json.Unmarshal([]byte(config), &ev.Config); err != nil {
			return nil, fmt.Errorf("event %d config: %w", ev.ID, err)
		}
		ev.Start, ev.End = parseDate(start), parseDate(end)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// LOGGED ACTIONS (rewards.LogStore)
// =============================================================================

func (s *Store) SaveLog(ctx context.Context, l *rewards.LoggedAction) error {
	id, err := s.insertOrUpsert(ctx, int64(l.ID),
		`INSERT INTO logged_actions (user_id, action_id, month, notes, status, validation_date, validated_by,
			base_points, bonus_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		`INSERT INTO logged_actions (id, user_id, action_id, month, notes, status, validation_date, validated_by,
			base_points, bonus_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			notes = excluded.notes,
			status = excluded.status,
			validation_date = excluded.validation_date,
			validated_by = excluded.validated_by,
			base_points = excluded.base_points,
			bonus_points = excluded.bonus_points`,
		l.UserID, l.ActionID, l.Month, nullString(l.Notes), l.Status, nullDate(l.ValidationDate),
		nullInt(int64(l.ValidatedBy)), l.BasePoints, l.BonusPoints, formatTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save logged action: %w", err)
	}
	l.ID = rewards.LogID(id)
	return nil
}

func (s *Store) GetLog(ctx context.Context, id rewards.LogID) (*rewards.LoggedAction, error) {
	logs, err := s.queryLogs(ctx, `WHERE id = ?`, id)
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	return &logs[0], nil
}

// ListLogs returns matching logs, oldest first.
func (s *Store) ListLogs(ctx context.Context, f rewards.LogFilter) ([]rewards.LoggedAction, error) {
	var conds []string
	var args []any
	if f.UserID != 0 {
		conds, args = append(conds, "user_id = ?"), append(args, f.UserID)
	}
	if f.ActionID != 0 {
		conds, args = append(conds, "action_id = ?"), append(args, f.ActionID)
	}
	if f.Status != "" {
		conds, args = append(conds, "status = ?"), append(args, f.Status)
	}
	if f.Month != "" {
		conds, args = append(conds, "month = ?"), append(args, f.Month)
	}
	return s.queryLogs(ctx, where(conds)+` ORDER BY id`, args...)
}

func (s *Store) queryLogs(ctx context.Context, clause string, args ...any) ([]rewards.LoggedAction, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, action_id, month, notes, status, validation_date, validated_by,
			base_points, bonus_points, created_at
		FROM logged_actions `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []rewards.LoggedAction
	for rows.Next() {
		var (
			l              rewards.LoggedAction
			notes          sql.NullString
			validationDate sql.NullString
			validatedBy    sql.NullInt64
			createdAt      string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.ActionID, &l.Month, &notes, &l.Status,
			&validationDate, &validatedBy, &l.BasePoints, &l.BonusPoints, &createdAt); err != nil {
			return nil, err
		}
		l.Notes = notes.String
		l.ValidationDate = scanDate(validationDate)
		l.ValidatedBy = rewards.UserID(validatedBy.Int64)
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// =============================================================================
// REDEMPTIONS (rewards.RedemptionStore)
// =============================================================================

func (s *Store) SaveRedemption(ctx context.Context, r *rewards.Redemption) error {
	id, err := s.insertOrUpsert(ctx, int64(r.ID),
		`INSERT INTO redemptions (user_id, prize_id, cost, request_date, status, approval_date, resolved_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		`INSERT INTO redemptions (id, user_id, prize_id, cost, request_date, status, approval_date, resolved_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			approval_date = excluded.approval_date,
			resolved_by = excluded.resolved_by`,
		r.UserID, r.PrizeID, r.Cost, formatDate(r.RequestDate), r.Status,
		nullDate(r.ApprovalDate), nullInt(int64(r.ResolvedBy)))
	if err != nil {
		return fmt.Errorf("failed to save redemption: %w", err)
	}
	r.ID = rewards.RedemptionID(id)
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, id rewards.RedemptionID) (*rewards.Redemption, error) {
	rs, err := s.queryRedemptions(ctx, `WHERE id = ?`, id)
	if err != nil || len(rs) == 0 {
		return nil, err
	}
	return &rs[0], nil
}

// ListRedemptions returns matching redemptions, oldest first.
func (s *Store) ListRedemptions(ctx context.Context, f rewards.RedemptionFilter) ([]rewards.Redemption, error) {
	var conds []string
	var args []any
	if f.UserID != 0 {
		conds, args = append(conds, "user_id = ?"), append(args, f.UserID)
	}
	if f.PrizeID != 0 {
		conds, args = append(conds, "prize_id = ?"), append(args, f.PrizeID)
	}
	if f.Status != "" {
		conds, args = append(conds, "status = ?"), append(args, f.Status)
	}
	return s.queryRedemptions(ctx, where(conds)+` ORDER BY id`, args...)
}

func (s *Store) queryRedemptions(ctx context.Context, clause string, args ...any) ([]rewards.Redemption, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, prize_id, cost, request_date, status, approval_date, resolved_by
		FROM redemptions `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rs []rewards.Redemption
	for rows.Next() {
		var (
			r            rewards.Redemption
			requestDate  string
			approvalDate sql.NullString
			resolvedBy   sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.PrizeID, &r.Cost, &requestDate, &r.Status,
			&approvalDate, &resolvedBy); err != nil {
			return nil, err
		}
		r.RequestDate = parseDate(requestDate)
		r.ApprovalDate = scanDate(approvalDate)
		r.ResolvedBy = rewards.UserID(resolvedBy.Int64)
		rs = append(rs, r)
	}
	return rs, rows.Err()
}

// =============================================================================
// MISSION PROGRESS (rewards.ProgressStore)
// =============================================================================

func (s *Store) GetProgress(ctx context.Context, userID rewards.UserID, missionID rewards.MissionID, period string) (*rewards.MissionProgress, error) {
	ps, err := s.queryProgress(ctx, `WHERE user_id = ? AND mission_id = ? AND period = ?`, userID, missionID, period)
	if err != nil || len(ps) == 0 {
		return nil, err
	}
	return &ps[0], nil
}

func (s *Store) SaveProgress(ctx context.Context, p rewards.MissionProgress) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO mission_progress (user_id, mission_id, period, progress, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, mission_id, period) DO UPDATE SET
			progress = excluded.progress,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		p.UserID, p.MissionID, p.Period, p.Progress, p.Status, formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save mission progress: %w", err)
	}
	return nil
}

func (s *Store) ListProgress(ctx context.Context, userID rewards.UserID) ([]rewards.MissionProgress, error) {
	return s.queryProgress(ctx, `WHERE user_id = ? ORDER BY mission_id, period`, userID)
}

func (s *Store) queryProgress(ctx context.Context, clause string, args ...any) ([]rewards.MissionProgress, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id, mission_id, period, progress, status, updated_at FROM mission_progress `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ps []rewards.MissionProgress
	for rows.Next() {
		var p rewards.MissionProgress
		var updatedAt string
		if err := rows.Scan(&p.UserID, &p.MissionID, &p.Period, &p.Progress, &p.Status, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt = parseTime(updatedAt)
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

// =============================================================================
// SETTINGS (rewards.SettingsStore)
// =============================================================================

// GetSettings returns the zero settings until some are saved.
func (s *Store) GetSettings(ctx context.Context) (rewards.AdminSettings, error) {
	var lockedUntil sql.NullString
	var settings rewards.AdminSettings
	err := s.q.QueryRowContext(ctx,
		`SELECT actions_locked_until, prizes_locked FROM admin_settings WHERE id = 1`,
	).Scan(&lockedUntil, &settings.PrizesLocked)
	if noRows(err) {
		return rewards.AdminSettings{}, nil
	}
	if err != nil {
		return rewards.AdminSettings{}, err
	}
	settings.ActionsLockedUntil = scanDate(lockedUntil)
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings rewards.AdminSettings) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO admin_settings (id, actions_locked_until, prizes_locked) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			actions_locked_until = excluded.actions_locked_until,
			prizes_locked = excluded.prizes_locked`,
		nullDate(settings.ActionsLockedUntil), settings.PrizesLocked)
	return err
}

// =============================================================================
// NOTIFICATIONS (rewards.NotificationStore)
// =============================================================================

// AddNotification stores n. A duplicate dedupe key is skipped and reported
// as false. n.Read marks it read for a direct recipient.
func (s *Store) AddNotification(ctx context.Context, n rewards.Notification) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO notifications (id, kind, sender_id, recipient_id, message, medal, dedupe_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedupe_key) DO NOTHING`,
		n.ID, n.Kind, n.SenderID, n.RecipientID, n.Message, nullString(string(n.Medal)),
		nullString(n.Key), formatTime(n.Timestamp))
	if err != nil {
		return false, fmt.Errorf("failed to add notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if n.Read && n.RecipientID != rewards.Broadcast {
		if _, err := s.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO notification_reads (notification_id, user_id) VALUES (?, ?)`,
			n.ID, n.RecipientID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// ListNotifications returns the user's and broadcast notifications, newest
// first, with Read resolved for that user.
func (s *Store) ListNotifications(ctx context.Context, userID rewards.UserID) ([]rewards.Notification, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT n.id, n.kind, n.sender_id, n.recipient_id, n.message, n.medal, n.dedupe_key, n.created_at,
			EXISTS (SELECT 1 FROM notification_reads r WHERE r.notification_id = n.id AND r.user_id = ?)
		FROM notifications n
		WHERE n.recipient_id = ? OR n.recipient_id = ?
		ORDER BY n.created_at DESC, n.rowid DESC`,
		userID, userID, rewards.Broadcast)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ns []rewards.Notification
	for rows.Next() {
		var (
			n         rewards.Notification
			medal     sql.NullString
			key       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.Kind, &n.SenderID, &n.RecipientID, &n.Message,
			&medal, &key, &createdAt, &n.Read); err != nil {
			return nil, err
		}
		n.Medal = rewards.Medal(medal.String)
		n.Key = key.String
		n.Timestamp = parseTime(createdAt)
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

func (s *Store) MarkNotificationsRead(ctx context.Context, userID rewards.UserID) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO notification_reads (notification_id, user_id)
		SELECT id, ? FROM notifications WHERE recipient_id = ? OR recipient_id = ?`,
		userID, userID, rewards.Broadcast)
	return err
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}
