package rewards

import "github.com/shopspring/decimal"

// =============================================================================
// MEDAL TIERS
// =============================================================================

type Medal string

const (
	MedalBronze  Medal = "Bronze"
	MedalSilver  Medal = "Silver"
	MedalGold    Medal = "Gold"
	MedalDiamond Medal = "Diamond"
)

// MedalTier is an inclusive lower bound on monthly base points.
type MedalTier struct {
	Medal     Medal
	Threshold int64
}

// MedalTiers is ordered highest first.
var MedalTiers = []MedalTier{
	{MedalDiamond, 1401},
	{MedalGold, 901},
	{MedalSilver, 551},
	{MedalBronze, 0},
}

// MedalFor maps a monthly point total to its tier.
func MedalFor(points int64) Medal {
	for _, t := range MedalTiers {
		if points >= t.Threshold {
			return t.Medal
		}
	}
	return MedalBronze
}

// Rank orders medals, Bronze lowest. Unknown medals rank below Bronze.
func (m Medal) Rank() int {
	for i, t := range MedalTiers {
		if t.Medal == m {
			return len(MedalTiers) - 1 - i
		}
	}
	return -1
}

func (m Medal) threshold() int64 {
	for _, t := range MedalTiers {
		if t.Medal == m {
			return t.Threshold
		}
	}
	return 0
}

// TierProgress describes the way to the next medal.
type TierProgress struct {
	Points       int64
	Current      Medal
	Next         Medal // empty at Diamond
	PointsNeeded int64
	Percent      decimal.Decimal // within the current band, 0..100
}

// NextTier computes progress from points toward the next tier. At the top
// tier Next is empty and Percent is 100.
func NextTier(points int64) TierProgress {
	current := MedalFor(points)
	p := TierProgress{Points: points, Current: current, Percent: decimal.NewFromInt(100)}

	idx := -1
	for i, t := range MedalTiers {
		if t.Medal == current {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return p
	}

	next := MedalTiers[idx-1]
	low := current.threshold()
	p.Next = next.Medal
	p.PointsNeeded = next.Threshold - points

	band := decimal.NewFromInt(next.Threshold - low)
	into := decimal.NewFromInt(points - low)
	if into.IsNegative() {
		into = decimal.Zero
	}
	p.Percent = into.Mul(decimal.NewFromInt(100)).Div(band).Round(2)
	return p
}
