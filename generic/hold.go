/*
hold.go - Pending hold lifecycle (optimistic debit with compensation)

PURPOSE:
  A hold reserves part of a balance before a final decision is made:
  1. Place: Record a TxPending debit (balance drops immediately)
  2. Settle: Convert the pending debit into a confirmed consumption
  3. Release: Reverse the pending debit (balance restored)

HOLD FLOW:
  ┌─────────────────────────────────────────────────────────────────┐
  │                                                                 │
  │  Request     Check funds      Record pending       Decision     │
  │  placed ──▶  (balance)   ──▶  TxPending -N   ──▶   workflow     │
  │                                                                 │
  │                                         │                       │
  │                                   ┌──────────┐                  │
  │                                   │ Settled  │──▶ TxReversal +N │
  │                                   └──────────┘    TxConsumption │
  │                                         │              -N       │
  │                                   ┌──────────┐                  │
  │                                   │ Released │──▶ TxReversal +N │
  │                                   └──────────┘                  │
  │                                                                 │
  └─────────────────────────────────────────────────────────────────┘

BALANCE TIMING:
  The user-visible balance drops when the hold is placed. Settling leaves
  it unchanged (reversal and consumption cancel out); releasing gives the
  amount back. Every step carries an idempotency key derived from the hold
  ID, so a second settle or release of the same hold cannot post twice.

EXAMPLE:
  svc := &HoldService{Ledger: ledger}
  hold, err := svc.Place(ctx, Hold{ID: "redemption-7", EntityID: "1", ...}, today, "user:1")
  err = svc.Release(ctx, hold, today, "admin:2", "prize refused")

SEE ALSO:
  - ledger.go: Where the transactions land
  - rewards/redemption.go: Prize redemptions built on holds
*/
package generic

import (
	"context"
	"fmt"
)

// =============================================================================
// HOLD - A reserved amount awaiting a decision
// =============================================================================

type HoldStatus string

const (
	HoldPending  HoldStatus = "pending"
	HoldSettled  HoldStatus = "settled"
	HoldReleased HoldStatus = "released"
)

type Hold struct {
	ID           string
	EntityID     EntityID
	AccountID    AccountID
	ResourceType ResourceType
	Amount       Amount // positive
	Status       HoldStatus
	Reason       string
}

// =============================================================================
// HOLD SERVICE
// =============================================================================

type HoldService struct {
	Ledger Ledger

	// AllowNegative skips the funds check on Place.
	AllowNegative bool
}

// Place debits the hold amount as a pending transaction.
func (hs *HoldService) Place(ctx context.Context, hold Hold, at TimePoint, by string) (*Hold, error) {
	if !hold.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if !hs.AllowNegative {
		available, err := hs.Ledger.Balance(ctx, hold.EntityID, hold.AccountID, hold.Amount.Unit)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate balance: %w", err)
		}
		if available.LessThan(hold.Amount) {
			return nil, &InsufficientBalanceError{
				EntityID:  hold.EntityID,
				AccountID: hold.AccountID,
				Available: available,
				Requested: hold.Amount,
			}
		}
	}

	tx := hs.tx(hold, at, by, "hold", TxPending, hold.Amount.Neg(), hold.Reason)
	if err := hs.Ledger.Append(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record pending transaction: %w", err)
	}

	hold.Status = HoldPending
	return &hold, nil
}

// Settle turns a pending hold into a consumption. The balance does not move.
func (hs *HoldService) Settle(ctx context.Context, hold *Hold, at TimePoint, by string) error {
	if hold.Status != HoldPending {
		return &HoldStateError{HoldID: hold.ID, Status: hold.Status, Action: "settle"}
	}

	txs := []Transaction{
		hs.tx(*hold, at, by, "settle-reverse", TxReversal, hold.Amount, "pending reversed on settlement"),
		hs.tx(*hold, at, by, "consume", TxConsumption, hold.Amount.Neg(), hold.Reason),
	}
	if err := hs.Ledger.AppendBatch(ctx, txs); err != nil {
		return fmt.Errorf("failed to record settlement transactions: %w", err)
	}

	hold.Status = HoldSettled
	return nil
}

// Release reverses a pending hold, crediting the amount back.
func (hs *HoldService) Release(ctx context.Context, hold *Hold, at TimePoint, by, reason string) error {
	if hold.Status != HoldPending {
		return &HoldStateError{HoldID: hold.ID, Status: hold.Status, Action: "release"}
	}

	tx := hs.tx(*hold, at, by, "release", TxReversal, hold.Amount, "pending reversed on release: "+reason)
	if err := hs.Ledger.Append(ctx, tx); err != nil {
		return fmt.Errorf("failed to record release transaction: %w", err)
	}

	hold.Status = HoldReleased
	return nil
}

func (hs *HoldService) tx(hold Hold, at TimePoint, by, step string, typ TransactionType, delta Amount, reason string) Transaction {
	key := fmt.Sprintf("%s:%s", hold.ID, step)
	return Transaction{
		ID:             TransactionID(key),
		EntityID:       hold.EntityID,
		AccountID:      hold.AccountID,
		ResourceType:   hold.ResourceType,
		EffectiveAt:    at,
		Delta:          delta,
		Type:           typ,
		ReferenceID:    hold.ID,
		Reason:         reason,
		IdempotencyKey: key,
		CreatedBy:      by,
		CreatedAt:      at,
	}
}
