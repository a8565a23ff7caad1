/*
ledger.go - Point Ledger with recognition-specific keys

PURPOSE:
  Wraps the generic ledger with the rules of the points domain. It is the
  only component that moves a user's balance; everything else reads.

CREDITS (TxGrant / TxAdjustment):
  action:<logID>:credit                    validated action, base + bonus
  mission:<user>:<mission>:<period>:claim  mission reward
  opening:<user>                           imported starting balance

DEBITS (holds):
  redemption-<id>:hold            optimistic debit when requested
  redemption-<id>:settle-reverse  \ approval: pending becomes consumption,
  redemption-<id>:consume         / balance unchanged
  redemption-<id>:release         refusal: cost credited back

DOUBLE-CREDIT GUARD:
  Engine status checks stop a second validation/claim/refusal first. The
  idempotency keys above stop it again at the ledger if a status check is
  ever bypassed.

SEE ALSO:
  - generic/ledger.go: Append-only log
  - generic/hold.go: Pending holds
*/
package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/recognition-engine/generic"
)

// PointLedger is the point balance of every user.
type PointLedger struct {
	ledger generic.Ledger
	holds  *generic.HoldService
}

func NewPointLedger(store generic.Store) *PointLedger {
	l := generic.NewLedger(store)
	return &PointLedger{ledger: l, holds: &generic.HoldService{Ledger: l}}
}

// EntityFor maps a user to its ledger entity.
func EntityFor(id UserID) generic.EntityID {
	return generic.EntityID(fmt.Sprintf("user-%d", id))
}

// Credit is a positive balance change.
type Credit struct {
	UserID    UserID
	Points    int64
	Type      generic.TransactionType // TxGrant unless set
	Key       string
	Reference string
	Reason    string
	At        generic.TimePoint
	By        string
	Metadata  map[string]string
}

// Balance replays the user's transactions.
func (pl *PointLedger) Balance(ctx context.Context, id UserID) (int64, error) {
	bal, err := pl.ledger.Balance(ctx, EntityFor(id), PointsAccount, generic.UnitPoints)
	if err != nil {
		return 0, err
	}
	return bal.IntPart(), nil
}

// Credit appends a credit. A zero credit is a no-op.
func (pl *PointLedger) Credit(ctx context.Context, c Credit) error {
	if c.Points == 0 {
		return nil
	}
	if c.Points < 0 {
		return generic.ErrInvalidAmount
	}
	typ := c.Type
	if typ == "" {
		typ = generic.TxGrant
	}

	err := pl.ledger.Append(ctx, generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		EntityID:       EntityFor(c.UserID),
		AccountID:      PointsAccount,
		ResourceType:   ResourcePoints,
		EffectiveAt:    c.At,
		Delta:          generic.NewAmountFromInt(c.Points, generic.UnitPoints),
		Type:           typ,
		ReferenceID:    c.Reference,
		Reason:         c.Reason,
		IdempotencyKey: c.Key,
		Metadata:       c.Metadata,
		CreatedBy:      c.By,
		CreatedAt:      c.At,
	})
	if err != nil {
		return fmt.Errorf("credit %s: %w", c.Key, err)
	}
	return nil
}

func redemptionHold(r Redemption) *generic.Hold {
	return &generic.Hold{
		ID:           fmt.Sprintf("redemption-%d", r.ID),
		EntityID:     EntityFor(r.UserID),
		AccountID:    PointsAccount,
		ResourceType: ResourcePoints,
		Amount:       generic.NewAmountFromInt(r.Cost, generic.UnitPoints),
		Status:       generic.HoldPending,
		Reason:       fmt.Sprintf("prize %d", r.PrizeID),
	}
}

// Hold debits a redemption's cost until it is resolved.
func (pl *PointLedger) Hold(ctx context.Context, r Redemption, at generic.TimePoint, by string) error {
	_, err := pl.holds.Place(ctx, *redemptionHold(r), at, by)
	var short *generic.InsufficientBalanceError
	if errors.As(err, &short) {
		return &InsufficientPointsError{UserID: r.UserID, Available: short.Available.IntPart(), Cost: r.Cost}
	}
	return err
}

// Settle makes a held debit final.
func (pl *PointLedger) Settle(ctx context.Context, r Redemption, at generic.TimePoint, by string) error {
	return pl.holds.Settle(ctx, redemptionHold(r), at, by)
}

// Release credits a held debit back.
func (pl *PointLedger) Release(ctx context.Context, r Redemption, at generic.TimePoint, by, reason string) error {
	return pl.holds.Release(ctx, redemptionHold(r), at, by, reason)
}

// Statement returns the user's transactions and their summary.
func (pl *PointLedger) Statement(ctx context.Context, id UserID) ([]generic.Transaction, generic.BalanceSummary, error) {
	txs, err := pl.ledger.Transactions(ctx, EntityFor(id), PointsAccount)
	if err != nil {
		return nil, generic.BalanceSummary{}, err
	}
	return txs, generic.Summarize(txs, generic.UnitPoints), nil
}

// StatementIn returns the transactions effective within p. The summary
// covers only those transactions, so its Balance is the net change over p.
func (pl *PointLedger) StatementIn(ctx context.Context, id UserID, p generic.Period) ([]generic.Transaction, generic.BalanceSummary, error) {
	txs, err := pl.ledger.TransactionsInRange(ctx, EntityFor(id), PointsAccount, p.Start, p.End)
	if err != nil {
		return nil, generic.BalanceSummary{}, err
	}
	return txs, generic.Summarize(txs, generic.UnitPoints), nil
}
