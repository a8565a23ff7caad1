package rewards

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// ACTIONS
// =============================================================================

func (a Action) validate() error {
	switch {
	case strings.TrimSpace(a.Category) == "":
		return fmt.Errorf("%w: action category is required", ErrInvalidCatalog)
	case strings.TrimSpace(a.Description) == "":
		return fmt.Errorf("%w: action description is required", ErrInvalidCatalog)
	case a.Points < 0:
		return fmt.Errorf("%w: action points must not be negative", ErrInvalidCatalog)
	}
	return nil
}

func (e *Engine) Actions(ctx context.Context) ([]Action, error) {
	return e.Repo.ListActions(ctx)
}

func (e *Engine) Action(ctx context.Context, id ActionID) (*Action, error) {
	return getAction(ctx, e.Repo, id)
}

// SaveAction creates the action when its ID is zero and updates it
// otherwise. Already validated logs keep the base points they were
// credited.
func (e *Engine) SaveAction(ctx context.Context, a Action) (*Action, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	if a.ID != 0 {
		if _, err := getAction(ctx, e.Repo, a.ID); err != nil {
			return nil, err
		}
	}
	if err := e.Repo.SaveAction(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAction refuses actions that logs still reference. The check and
// the delete share one transaction, so a concurrent Submit either lands
// first and blocks the delete or finds the action gone.
func (e *Engine) DeleteAction(ctx context.Context, id ActionID) error {
	return e.run(ctx, nil, func(s *session) error {
		if _, err := getAction(ctx, s.repo, id); err != nil {
			return err
		}
		logs, err := s.repo.ListLogs(ctx, LogFilter{ActionID: id})
		if err != nil {
			return err
		}
		if len(logs) > 0 {
			return fmt.Errorf("%w: action %d has %d logged entries", ErrInUse, id, len(logs))
		}
		return s.repo.DeleteAction(ctx, id)
	})
}

// =============================================================================
// PRIZES
// =============================================================================

func (p Prize) validate() error {
	switch {
	case strings.TrimSpace(p.Description) == "":
		return fmt.Errorf("%w: prize description is required", ErrInvalidCatalog)
	case p.Cost <= 0:
		return fmt.Errorf("%w: prize cost must be positive", ErrInvalidCatalog)
	}
	return nil
}

func (e *Engine) Prizes(ctx context.Context) ([]Prize, error) {
	return e.Repo.ListPrizes(ctx)
}

func (e *Engine) Prize(ctx context.Context, id PrizeID) (*Prize, error) {
	return getPrize(ctx, e.Repo, id)
}

// SavePrize creates or updates a prize. Pending redemptions keep the cost
// they held.
func (e *Engine) SavePrize(ctx context.Context, p Prize) (*Prize, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.ID != 0 {
		if _, err := getPrize(ctx, e.Repo, p.ID); err != nil {
			return nil, err
		}
	}
	if err := e.Repo.SavePrize(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePrize refuses prizes with redemptions, checked in the same
// transaction as the delete.
func (e *Engine) DeletePrize(ctx context.Context, id PrizeID) error {
	return e.run(ctx, nil, func(s *session) error {
		if _, err := getPrize(ctx, s.repo, id); err != nil {
			return err
		}
		rs, err := s.repo.ListRedemptions(ctx, RedemptionFilter{PrizeID: id})
		if err != nil {
			return err
		}
		if len(rs) > 0 {
			return fmt.Errorf("%w: prize %d has %d redemptions", ErrInUse, id, len(rs))
		}
		return s.repo.DeletePrize(ctx, id)
	})
}

// =============================================================================
// MISSIONS
// =============================================================================

func (m Mission) validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: mission title is required", ErrInvalidCatalog)
	}
	if _, err := generic.ParseCadence(string(m.Cadence)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if m.Goal.Type != GoalLogActionCategory {
		return fmt.Errorf("%w: unknown goal type %q", ErrInvalidCatalog, m.Goal.Type)
	}
	if strings.TrimSpace(m.Goal.Category) == "" {
		return fmt.Errorf("%w: goal category is required", ErrInvalidCatalog)
	}
	if m.Goal.Count < 1 {
		return fmt.Errorf("%w: goal count must be at least 1", ErrInvalidCatalog)
	}
	if m.RewardPoints < 0 {
		return fmt.Errorf("%w: reward must not be negative", ErrInvalidCatalog)
	}
	return nil
}

func (e *Engine) Missions(ctx context.Context) ([]Mission, error) {
	return e.Repo.ListMissions(ctx)
}

func (e *Engine) Mission(ctx context.Context, id MissionID) (*Mission, error) {
	return getMission(ctx, e.Repo, id)
}

func (e *Engine) SaveMission(ctx context.Context, m Mission) (*Mission, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}
	if m.ID != 0 {
		if _, err := getMission(ctx, e.Repo, m.ID); err != nil {
			return nil, err
		}
	}
	if err := e.Repo.SaveMission(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMission removes the mission. Progress tuples stay for history.
func (e *Engine) DeleteMission(ctx context.Context, id MissionID) error {
	if _, err := getMission(ctx, e.Repo, id); err != nil {
		return err
	}
	return e.Repo.DeleteMission(ctx, id)
}

// =============================================================================
// SPECIAL EVENTS
// =============================================================================

func (ev SpecialEvent) validate() error {
	switch {
	case strings.TrimSpace(ev.Name) == "":
		return fmt.Errorf("%w: event name is required", ErrInvalidCatalog)
	case !KnownEventType(ev.Type):
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidCatalog, ev.Type)
	case ev.Type == EventDoublePointsCategory && strings.TrimSpace(ev.Config.Category) == "":
		return fmt.Errorf("%w: double points events need a category", ErrInvalidCatalog)
	case ev.Start.IsZero() || ev.End.IsZero():
		return fmt.Errorf("%w: event dates are required", ErrInvalidCatalog)
	case ev.End.Before(ev.Start):
		return fmt.Errorf("%w: event ends before it starts", ErrInvalidCatalog)
	}
	return nil
}

func (e *Engine) Events(ctx context.Context) ([]SpecialEvent, error) {
	return e.Repo.ListEvents(ctx)
}

func (e *Engine) Event(ctx context.Context, id EventID) (*SpecialEvent, error) {
	ev, err := e.Repo.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func (e *Engine) SaveEvent(ctx context.Context, ev SpecialEvent) (*SpecialEvent, error) {
	if err := ev.validate(); err != nil {
		return nil, err
	}
	if ev.ID != 0 {
		if _, err := e.Event(ctx, ev.ID); err != nil {
			return nil, err
		}
	}
	if err := e.Repo.SaveEvent(ctx, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (e *Engine) DeleteEvent(ctx context.Context, id EventID) error {
	if _, err := e.Event(ctx, id); err != nil {
		return err
	}
	return e.Repo.DeleteEvent(ctx, id)
}

// ActiveEventToday returns the event bonus evaluation consults today.
func (e *Engine) ActiveEventToday(ctx context.Context) (*SpecialEvent, error) {
	events, err := e.Repo.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	return ActiveEvent(events, e.Today()), nil
}

// AnnounceEvents broadcasts a start message for every event active today
// that was not announced before. It returns how many were new.
func (e *Engine) AnnounceEvents(ctx context.Context) (int, error) {
	events, err := e.Repo.ListEvents(ctx)
	if err != nil {
		return 0, err
	}

	today := e.Today()
	announced := 0
	for _, ev := range events {
		if !ev.ActiveOn(today) {
			continue
		}
		n := Notification{
			ID:          newNotificationID(),
			Kind:        NotifyEventStarted,
			RecipientID: Broadcast,
			Message:     fmt.Sprintf("%s is live until %s: %s", ev.Name, ev.End, ev.Description),
			Timestamp:   e.now(),
			Key:         fmt.Sprintf("event:%d:start", ev.ID),
		}
		added, err := e.Repo.AddNotification(ctx, n)
		if err != nil {
			return announced, err
		}
		if added {
			announced++
			e.logger().WithField("event_id", ev.ID).Info("special event announced")
		}
	}
	return announced, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (e *Engine) Settings(ctx context.Context) (AdminSettings, error) {
	return e.Repo.GetSettings(ctx)
}

func (e *Engine) UpdateSettings(ctx context.Context, s AdminSettings) (AdminSettings, error) {
	if err := e.Repo.SaveSettings(ctx, s); err != nil {
		return AdminSettings{}, err
	}
	e.logger().WithFields(logrus.Fields{
		"actions_locked_until": s.ActionsLockedUntil,
		"prizes_locked":        s.PrizesLocked,
	}).Info("admin settings updated")
	return s, nil
}

// =============================================================================
// USERS
// =============================================================================

func (u User) validate() error {
	switch {
	case strings.TrimSpace(u.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidCatalog)
	case strings.TrimSpace(u.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalidCatalog)
	case !u.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrInvalidCatalog, u.Role)
	}
	return nil
}

func (e *Engine) Users(ctx context.Context) ([]User, error) {
	return e.Repo.ListUsers(ctx)
}

func (e *Engine) User(ctx context.Context, id UserID) (*User, error) {
	return getUser(ctx, e.Repo, id)
}

// CreateUser stores a new user and credits an opening balance when
// opening is positive.
func (e *Engine) CreateUser(ctx context.Context, u User, opening int64) (*User, error) {
	u.ID = 0
	if err := u.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(u.Password) == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidCatalog)
	}
	if opening < 0 {
		return nil, fmt.Errorf("%w: opening balance must not be negative", ErrInvalidCatalog)
	}

	err := e.run(ctx, nil, func(s *session) error {
		taken, err := s.repo.GetUserByUsername(ctx, u.Username)
		if err != nil {
			return err
		}
		if taken != nil {
			return fmt.Errorf("%w: %s", ErrUsernameTaken, u.Username)
		}
		if err := s.repo.CreateUser(ctx, &u); err != nil {
			return err
		}
		return s.points.Credit(ctx, openingCredit(u.ID, opening, s.today))
	})
	if err != nil {
		return nil, err
	}

	e.logger().WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user created")
	return &u, nil
}

func openingCredit(id UserID, points int64, at generic.TimePoint) Credit {
	return Credit{
		UserID: id,
		Points: points,
		Type:   generic.TxAdjustment,
		Key:    fmt.Sprintf("opening:%d", id),
		Reason: "opening balance",
		At:     at,
		By:     "system",
	}
}

// UpdateUser changes name, username and role. An empty password keeps the
// current one.
func (e *Engine) UpdateUser(ctx context.Context, u User) (*User, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	current, err := getUser(ctx, e.Repo, u.ID)
	if err != nil {
		return nil, err
	}
	if u.Username != current.Username {
		taken, err := e.Repo.GetUserByUsername(ctx, u.Username)
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, u.Username)
		}
	}
	if u.Password == "" {
		u.Password = current.Password
	}
	if err := e.Repo.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (e *Engine) ChangePassword(ctx context.Context, id UserID, current, next string) error {
	u, err := getUser(ctx, e.Repo, id)
	if err != nil {
		return err
	}
	if u.Password != current {
		return ErrBadCredentials
	}
	if strings.TrimSpace(next) == "" {
		return fmt.Errorf("%w: new password must not be blank", ErrInvalidCatalog)
	}
	u.Password = next
	return e.Repo.UpdateUser(ctx, *u)
}

// DeleteUser removes a user that has no history. Ledger entries are
// append-only, so anyone who ever held points, logged an action, redeemed
// a prize or progressed on a mission stays. Admins cannot delete
// themselves.
func (e *Engine) DeleteUser(ctx context.Context, adminID, userID UserID) error {
	err := e.run(ctx, []UserID{userID}, func(s *session) error {
		if _, err := getAdmin(ctx, s.repo, adminID); err != nil {
			return err
		}
		if adminID == userID {
			return ErrSelfDelete
		}
		if _, err := getUser(ctx, s.repo, userID); err != nil {
			return err
		}

		txs, _, err := s.points.Statement(ctx, userID)
		if err != nil {
			return err
		}
		if len(txs) > 0 {
			return fmt.Errorf("%w: user %d has %d ledger entries", ErrInUse, userID, len(txs))
		}
		logs, err := s.repo.ListLogs(ctx, LogFilter{UserID: userID})
		if err != nil {
			return err
		}
		if len(logs) > 0 {
			return fmt.Errorf("%w: user %d has %d logged actions", ErrInUse, userID, len(logs))
		}
		rs, err := s.repo.ListRedemptions(ctx, RedemptionFilter{UserID: userID})
		if err != nil {
			return err
		}
		if len(rs) > 0 {
			return fmt.Errorf("%w: user %d has %d redemptions", ErrInUse, userID, len(rs))
		}
		progress, err := s.repo.ListProgress(ctx, userID)
		if err != nil {
			return err
		}
		if len(progress) > 0 {
			return fmt.Errorf("%w: user %d has mission progress", ErrInUse, userID)
		}
		return s.repo.DeleteUser(ctx, userID)
	})
	if err != nil {
		return err
	}

	e.logger().WithFields(logrus.Fields{"user_id": userID, "admin_id": adminID}).Info("user deleted")
	return nil
}

// Authenticate compares plain-text credentials.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := e.Repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Password != password {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// SendMessage stores an admin message for one user, or for everyone when
// recipient is Broadcast.
func (e *Engine) SendMessage(ctx context.Context, senderID, recipient UserID, message string) (*Notification, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidCatalog)
	}
	if _, err := getAdmin(ctx, e.Repo, senderID); err != nil {
		return nil, err
	}
	if recipient != Broadcast {
		if _, err := getUser(ctx, e.Repo, recipient); err != nil {
			return nil, err
		}
	}

	n := Notification{
		ID:          newNotificationID(),
		Kind:        NotifyMessage,
		SenderID:    senderID,
		RecipientID: recipient,
		Message:     message,
		Timestamp:   e.now(),
	}
	if _, err := e.Repo.AddNotification(ctx, n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (e *Engine) Notifications(ctx context.Context, userID UserID) ([]Notification, error) {
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return nil, err
	}
	return e.Repo.ListNotifications(ctx, userID)
}

func (e *Engine) MarkRead(ctx context.Context, userID UserID) error {
	if _, err := getUser(ctx, e.Repo, userID); err != nil {
		return err
	}
	return e.Repo.MarkNotificationsRead(ctx, userID)
}
