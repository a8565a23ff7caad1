/*
balance.go - Balance summaries from transactions

PURPOSE:
  Folds a list of transactions into the figures a user sees: the current
  balance and what it is made of. Nothing here is stored; the summary is
  recomputed from the ledger every time.

BALANCE COMPONENTS:
  Earned:      Grants (validated actions, mission rewards)
  Adjustments: Opening balances and manual corrections
  Pending:     Holds still open (negative, already deducted)
  Consumed:    Settled holds
  Balance:     Sum of every delta

  Balance = Earned + Adjustments + Pending - Consumed

EXAMPLE:
  Opening 300, validated +120, prize hold -300 still open:
    Earned 120, Adjustments 300, Pending -300, Consumed 0, Balance 120

SEE ALSO:
  - hold.go: Creates the pending/reversal/consumption triples
*/
package generic

// =============================================================================
// BALANCE SUMMARY
// =============================================================================

type BalanceSummary struct {
	Balance     Amount
	Earned      Amount
	Adjustments Amount
	Pending     Amount
	Consumed    Amount
}

// Summarize folds transactions into a BalanceSummary. Pending amounts are
// matched to their reversals through ReferenceID.
func Summarize(txs []Transaction, unit Unit) BalanceSummary {
	zero := NewAmountFromInt(0, unit)
	s := BalanceSummary{Balance: zero, Earned: zero, Adjustments: zero, Pending: zero, Consumed: zero}

	open := make(map[string]Amount)
	var order []string

	for _, tx := range txs {
		s.Balance = s.Balance.Add(tx.Delta)

		switch tx.Type {
		case TxGrant:
			s.Earned = s.Earned.Add(tx.Delta)
		case TxAdjustment:
			s.Adjustments = s.Adjustments.Add(tx.Delta)
		case TxConsumption:
			s.Consumed = s.Consumed.Sub(tx.Delta)
		case TxPending, TxReversal:
			if _, ok := open[tx.ReferenceID]; !ok {
				open[tx.ReferenceID] = zero
				order = append(order, tx.ReferenceID)
			}
			open[tx.ReferenceID] = open[tx.ReferenceID].Add(tx.Delta)
		}
	}

	for _, ref := range order {
		s.Pending = s.Pending.Add(open[ref])
	}
	return s
}
