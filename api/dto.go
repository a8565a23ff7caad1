/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry `validate` tags checked by RequestValidator before
  a handler touches the engine. Cross-entity rules (locks, balances,
  states) stay in the engine.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Custom tags (yearmonth, date)
*/
package api

import (
	"time"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=Admin Analyst"`
	Points   int64  `json:"points" validate:"gte=0"`
}

// UpdateUserRequest keeps the stored password when Password is empty.
type UpdateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"required,oneof=Admin Analyst"`
}

// DeleteUserRequest names the admin performing the delete.
type DeleteUserRequest struct {
	AdminID int64 `json:"admin_id" validate:"required,gt=0"`
}

type ChangePasswordRequest struct {
	Current string `json:"current" validate:"required"`
	Next    string `json:"next" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TierDTO is the way to the next medal.
type TierDTO struct {
	Current      string  `json:"current"`
	Next         string  `json:"next,omitempty"`
	PointsNeeded int64   `json:"points_needed"`
	Percent      float64 `json:"percent"`
}

// ProfileDTO is a user with balance and medal progress.
type ProfileDTO struct {
	UserDTO
	Points        int64   `json:"points"`
	Earned        int64   `json:"earned"`
	Adjustments   int64   `json:"adjustments"`
	Pending       int64   `json:"pending"`
	Consumed      int64   `json:"consumed"`
	Month         string  `json:"month"`
	MonthlyPoints int64   `json:"monthly_points"`
	Medal         string  `json:"medal"`
	Tier          TierDTO `json:"tier"`
	Unread        int     `json:"unread"`
}

// =============================================================================
// CATALOG
// =============================================================================

type ActionDTO struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Points      int64  `json:"points"`
	Validator   string `json:"validator,omitempty"`
}

type ActionRequest struct {
	Category    string `json:"category" validate:"required"`
	Description string `json:"description" validate:"required"`
	Points      int64  `json:"points" validate:"gte=0"`
	Validator   string `json:"validator"`
}

type PrizeDTO struct {
	ID          int64  `json:"id"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Cost        int64  `json:"cost"`
	Benefit     string `json:"benefit,omitempty"`
	Icon        string `json:"icon,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type PrizeRequest struct {
	Category    string `json:"category"`
	Description string `json:"description" validate:"required"`
	Cost        int64  `json:"cost" validate:"gt=0"`
	Benefit     string `json:"benefit"`
	Icon        string `json:"icon"`
	ImageURL    string `json:"image_url"`
}

type GoalDTO struct {
	Type     string `json:"type" validate:"required,oneof=log_action_category"`
	Category string `json:"category" validate:"required"`
	Count    int    `json:"count" validate:"gt=0"`
}

type MissionDTO struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Cadence      string  `json:"cadence"`
	Goal         GoalDTO `json:"goal"`
	RewardPoints int64   `json:"reward_points"`
	Global       bool    `json:"global"`
}

type MissionRequest struct {
	Title        string  `json:"title" validate:"required"`
	Description  string  `json:"description"`
	Cadence      string  `json:"cadence" validate:"required,oneof=daily weekly monthly"`
	Goal         GoalDTO `json:"goal"`
	RewardPoints int64   `json:"reward_points" validate:"gte=0"`
	Global       *bool   `json:"global"`
}

type EventDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type EventRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Type        string `json:"type" validate:"required,oneof=double_points_category"`
	Category    string `json:"category" validate:"required"`
	StartDate   string `json:"start_date" validate:"required,date"`
	EndDate     string `json:"end_date" validate:"required,date"`
}

type SettingsDTO struct {
	ActionsLockedUntil *string `json:"actions_locked_until"`
	PrizesLocked       bool    `json:"prizes_locked"`
}

type SettingsRequest struct {
	ActionsLockedUntil *string `json:"actions_locked_until" validate:"omitempty,date"`
	PrizesLocked       bool    `json:"prizes_locked"`
}

// =============================================================================
// LOGGED ACTIONS
// =============================================================================

type LogDTO struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	ActionID       int64      `json:"action_id"`
	Month          string     `json:"month"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status"`
	ValidationDate *string    `json:"validation_date,omitempty"`
	ValidatedBy    int64      `json:"validated_by,omitempty"`
	BasePoints     int64      `json:"base_points"`
	BonusPoints    int64      `json:"bonus_points"`
	Action         *ActionDTO `json:"action,omitempty"`
	CreatedAt      string     `json:"created_at,omitempty"`
}

type SubmitLogRequest struct {
	ActionID int64  `json:"action_id" validate:"required,gt=0"`
	Notes    string `json:"notes"`
}

type DecisionRequest struct {
	ValidatorID int64  `json:"validator_id" validate:"required,gt=0"`
	Decision    string `json:"decision" validate:"required,oneof=validated rejected"`
}

type AdminLogRequest struct {
	AdminID  int64  `json:"admin_id" validate:"required,gt=0"`
	UserID   int64  `json:"user_id" validate:"required,gt=0"`
	ActionID int64  `json:"action_id" validate:"required,gt=0"`
	Notes    string `json:"notes"`
}

type MedalChangeDTO struct {
	Month string `json:"month"`
	From  string `json:"from"`
	To    string `json:"to"`
}

type DecisionDTO struct {
	Log       LogDTO               `json:"log"`
	Credited  int64                `json:"credited"`
	Event     *EventDTO            `json:"event,omitempty"`
	Completed []MissionProgressDTO `json:"completed_missions"`
	Promotion *MedalChangeDTO      `json:"promotion,omitempty"`
}

type BulkResultDTO struct {
	UserID    int64           `json:"user_id"`
	Status    string          `json:"status"`
	Count     int             `json:"count"`
	Credited  int64           `json:"credited"`
	Decisions []DecisionDTO   `json:"decisions"`
	Promotion *MedalChangeDTO `json:"promotion,omitempty"`
}

// =============================================================================
// MISSIONS
// =============================================================================

type MissionProgressDTO struct {
	UserID    int64  `json:"user_id"`
	MissionID int64  `json:"mission_id"`
	Period    string `json:"period"`
	Progress  int    `json:"progress"`
	Status    string `json:"status"`
}

type MissionViewDTO struct {
	Mission     MissionDTO         `json:"mission"`
	Progress    MissionProgressDTO `json:"progress"`
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
	DaysLeft    int                `json:"days_left"`
}

// ClaimRequest names the period to claim; empty claims the current one.
type ClaimRequest struct {
	Period string `json:"period"`
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

type RedemptionDTO struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	PrizeID      int64     `json:"prize_id"`
	Cost         int64     `json:"cost"`
	RequestDate  string    `json:"request_date"`
	Status       string    `json:"status"`
	ApprovalDate *string   `json:"approval_date,omitempty"`
	ResolvedBy   int64     `json:"resolved_by,omitempty"`
	Prize        *PrizeDTO `json:"prize,omitempty"`
}

type RedemptionRequest struct {
	PrizeID int64 `json:"prize_id" validate:"required,gt=0"`
}

type RedemptionDecisionRequest struct {
	AdminID  int64  `json:"admin_id" validate:"required,gt=0"`
	Decision string `json:"decision" validate:"required,oneof=approved refused"`
}

// =============================================================================
// REPORTS AND LEDGER
// =============================================================================

type LeaderboardEntryDTO struct {
	Rank          int     `json:"rank"`
	User          UserDTO `json:"user"`
	MonthlyPoints int64   `json:"monthly_points"`
	Medal         string  `json:"medal"`
}

type HistoryEntryDTO struct {
	Month    string `json:"month"`
	Earned   int64  `json:"earned"`
	Redeemed int64  `json:"redeemed"`
	Medal    string `json:"medal"`
}

// TransactionDTO represents a ledger entry with the running balance after it.
type TransactionDTO struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Delta        int64  `json:"delta"`
	EffectiveAt  string `json:"effective_at"`
	ReferenceID  string `json:"reference_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CreatedBy    string `json:"created_by,omitempty"`
	BalanceAfter int64  `json:"balance_after"`
}

type LedgerDTO struct {
	UserID       int64            `json:"user_id"`
	Balance      int64            `json:"balance"`
	Earned       int64            `json:"earned"`
	Adjustments  int64            `json:"adjustments"`
	Pending      int64            `json:"pending"`
	Consumed     int64            `json:"consumed"`
	Transactions []TransactionDTO `json:"transactions"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	SenderID  int64  `json:"sender_id"`
	Recipient any    `json:"recipient"` // user id or "all"
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

// SendMessageRequest addresses one user by id or everyone with "all".
type SendMessageRequest struct {
	SenderID  int64  `json:"sender_id" validate:"required,gt=0"`
	Recipient string `json:"recipient" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u rewards.User) UserDTO {
	return UserDTO{ID: int64(u.ID), Name: u.Name, Username: u.Username, Role: string(u.Role)}
}

func toProfileDTO(p *rewards.Profile) ProfileDTO {
	percent, _ := p.Tier.Percent.Float64()
	return ProfileDTO{
		UserDTO:       toUserDTO(p.User),
		Points:        p.Points,
		Earned:        p.Summary.Earned.IntPart(),
		Adjustments:   p.Summary.Adjustments.IntPart(),
		Pending:       p.Summary.Pending.IntPart(),
		Consumed:      p.Summary.Consumed.IntPart(),
		Month:         p.Month,
		MonthlyPoints: p.MonthlyPoints,
		Medal:         string(p.Tier.Current),
		Tier: TierDTO{
			Current:      string(p.Tier.Current),
			Next:         string(p.Tier.Next),
			PointsNeeded: p.Tier.PointsNeeded,
			Percent:      percent,
		},
		Unread: p.Unread,
	}
}

func toActionDTO(a rewards.Action) ActionDTO {
	return ActionDTO{
		ID:          int64(a.ID),
		Category:    a.Category,
		Description: a.Description,
		Points:      a.Points,
		Validator:   a.Validator,
	}
}

func (r ActionRequest) toAction(id rewards.ActionID) rewards.Action {
	return rewards.Action{
		ID:          id,
		Category:    r.Category,
		Description: r.Description,
		Points:      r.Points,
		Validator:   r.Validator,
	}
}

func toPrizeDTO(p rewards.Prize) PrizeDTO {
	return PrizeDTO{
		ID:          int64(p.ID),
		Category:    p.Category,
		Description: p.Description,
		Cost:        p.Cost,
		Benefit:     p.Benefit,
		Icon:        p.Icon,
		ImageURL:    p.ImageURL,
	}
}

func (r PrizeRequest) toPrize(id rewards.PrizeID) rewards.Prize {
	return rewards.Prize{
		ID:          id,
		Category:    r.Category,
		Description: r.Description,
		Cost:        r.Cost,
		Benefit:     r.Benefit,
		Icon:        r.Icon,
		ImageURL:    r.ImageURL,
	}
}

func toMissionDTO(m rewards.Mission) MissionDTO {
	return MissionDTO{
		ID:          int64(m.ID),
		Title:       m.Title,
		Description: m.Description,
		Cadence:     string(m.Cadence),
		Goal: GoalDTO{
			Type:     string(m.Goal.Type),
			Category: m.Goal.Category,
			Count:    m.Goal.Count,
		},
		RewardPoints: m.RewardPoints,
		Global:       m.Global,
	}
}

func (r MissionRequest) toMission(id rewards.MissionID) rewards.Mission {
	global := true
	if r.Global != nil {
		global = *r.Global
	}
	return rewards.Mission{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Cadence:     generic.Cadence(r.Cadence),
		Goal: rewards.MissionGoal{
			Type:     rewards.GoalType(r.Goal.Type),
			Category: r.Goal.Category,
			Count:    r.Goal.Count,
		},
		RewardPoints: r.RewardPoints,
		Global:       global,
	}
}

func toEventDTO(ev rewards.SpecialEvent) EventDTO {
	return EventDTO{
		ID:          int64(ev.ID),
		Name:        ev.Name,
		Description: ev.Description,
		Type:        string(ev.Type),
		Category:    ev.Config.Category,
		StartDate:   ev.Start.String(),
		EndDate:     ev.End.String(),
	}
}

// toEvent assumes the dates passed the date rule.
func (r EventRequest) toEvent(id rewards.EventID) rewards.SpecialEvent {
	start, _ := generic.ParseDate(r.StartDate)
	end, _ := generic.ParseDate(r.EndDate)
	return rewards.SpecialEvent{
		ID:          id,
		Name:        r.Name,
		Description: r.Description,
		Type:        rewards.EventType(r.Type),
		Config:      rewards.EventConfig{Category: r.Category},
		Start:       start,
		End:         end,
	}
}

func toSettingsDTO(s rewards.AdminSettings) SettingsDTO {
	return SettingsDTO{ActionsLockedUntil: datePtr(s.ActionsLockedUntil), PrizesLocked: s.PrizesLocked}
}

func (r SettingsRequest) toSettings() rewards.AdminSettings {
	s := rewards.AdminSettings{PrizesLocked: r.PrizesLocked}
	if r.ActionsLockedUntil != nil && *r.ActionsLockedUntil != "" {
		day, _ := generic.ParseDate(*r.ActionsLockedUntil)
		s.ActionsLockedUntil = &day
	}
	return s
}

func toLogDTO(l rewards.LoggedAction) LogDTO {
	dto := LogDTO{
		ID:             int64(l.ID),
		UserID:         int64(l.UserID),
		ActionID:       int64(l.ActionID),
		Month:          l.Month,
		Notes:          l.Notes,
		Status:         string(l.Status),
		ValidationDate: datePtr(l.ValidationDate),
		ValidatedBy:    int64(l.ValidatedBy),
		BasePoints:     l.BasePoints,
		BonusPoints:    l.BonusPoints,
	}
	if !l.CreatedAt.IsZero() {
		dto.CreatedAt = l.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toMedalChangeDTO(c *rewards.MedalChange) *MedalChangeDTO {
	if c == nil {
		return nil
	}
	return &MedalChangeDTO{Month: c.Month, From: string(c.From), To: string(c.To)}
}

func toDecisionDTO(d rewards.Decision) DecisionDTO {
	dto := DecisionDTO{
		Log:       toLogDTO(d.Log),
		Credited:  d.Credited,
		Completed: make([]MissionProgressDTO, 0, len(d.Completed)),
		Promotion: toMedalChangeDTO(d.Promotion),
	}
	action := toActionDTO(d.Action)
	dto.Log.Action = &action
	if d.Event != nil {
		ev := toEventDTO(*d.Event)
		dto.Event = &ev
	}
	for _, p := range d.Completed {
		dto.Completed = append(dto.Completed, toProgressDTO(p))
	}
	return dto
}

func toBulkResultDTO(b *rewards.BulkResult) BulkResultDTO {
	dto := BulkResultDTO{
		UserID:    int64(b.UserID),
		Status:    string(b.Status),
		Count:     len(b.Decisions),
		Credited:  b.Credited,
		Decisions: make([]DecisionDTO, 0, len(b.Decisions)),
		Promotion: toMedalChangeDTO(b.Promotion),
	}
	for _, d := range b.Decisions {
		dto.Decisions = append(dto.Decisions, toDecisionDTO(d))
	}
	return dto
}

func toProgressDTO(p rewards.MissionProgress) MissionProgressDTO {
	return MissionProgressDTO{
		UserID:    int64(p.UserID),
		MissionID: int64(p.MissionID),
		Period:    p.Period,
		Progress:  p.Progress,
		Status:    string(p.Status),
	}
}

func toRedemptionDTO(r rewards.Redemption) RedemptionDTO {
	return RedemptionDTO{
		ID:           int64(r.ID),
		UserID:       int64(r.UserID),
		PrizeID:      int64(r.PrizeID),
		Cost:         r.Cost,
		RequestDate:  r.RequestDate.String(),
		Status:       string(r.Status),
		ApprovalDate: datePtr(r.ApprovalDate),
		ResolvedBy:   int64(r.ResolvedBy),
	}
}

func toNotificationDTO(n rewards.Notification) NotificationDTO {
	var recipient any = int64(n.RecipientID)
	if n.RecipientID == rewards.Broadcast {
		recipient = "all"
	}
	return NotificationDTO{
		ID:        n.ID,
		Kind:      string(n.Kind),
		SenderID:  int64(n.SenderID),
		Recipient: recipient,
		Message:   n.Message,
		Timestamp: n.Timestamp.Format(time.RFC3339),
		Read:      n.Read,
	}
}

// toTransactionDTOs renders a ledger oldest first with running balances.
func toTransactionDTOs(txs []generic.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	var running int64
	for _, tx := range txs {
		delta := tx.Delta.IntPart()
		running += delta
		dtos = append(dtos, TransactionDTO{
			ID:           string(tx.ID),
			Type:         string(tx.Type),
			Delta:        delta,
			EffectiveAt:  tx.EffectiveAt.String(),
			ReferenceID:  tx.ReferenceID,
			Reason:       tx.Reason,
			CreatedBy:    tx.CreatedBy,
			BalanceAfter: running,
		})
	}
	return dtos
}

func datePtr(tp *generic.TimePoint) *string {
	if tp == nil {
		return nil
	}
	s := tp.String()
	return &s
}
