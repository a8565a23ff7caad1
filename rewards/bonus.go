package rewards

import (
	"sort"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// BONUS RULES
// =============================================================================

// BonusRule computes the extra points an event grants for an action.
type BonusRule interface {
	Bonus(ev SpecialEvent, a Action) int64
}

type BonusRuleFunc func(ev SpecialEvent, a Action) int64

func (f BonusRuleFunc) Bonus(ev SpecialEvent, a Action) int64 { return f(ev, a) }

// doublePoints grants the base value again when the category matches.
var doublePoints = BonusRuleFunc(func(ev SpecialEvent, a Action) int64 {
	if ev.Config.Category == a.Category {
		return a.Points
	}
	return 0
})

var bonusRules = map[EventType]BonusRule{
	EventDoublePointsCategory: doublePoints,
}

// KnownEventType reports whether a rule exists for t.
func KnownEventType(t EventType) bool {
	_, ok := bonusRules[t]
	return ok
}

// ActiveEvent returns the single event consulted on day: the active event
// with the lowest ID. Nil when none is active.
func ActiveEvent(events []SpecialEvent, day generic.TimePoint) *SpecialEvent {
	sorted := make([]SpecialEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		if sorted[i].ActiveOn(day) {
			return &sorted[i]
		}
	}
	return nil
}

// BonusFor evaluates the consulted event against the action. Other active
// events are ignored even if they would match.
func BonusFor(events []SpecialEvent, a Action, day generic.TimePoint) (int64, *SpecialEvent) {
	ev := ActiveEvent(events, day)
	if ev == nil {
		return 0, nil
	}
	rule, ok := bonusRules[ev.Type]
	if !ok {
		return 0, ev
	}
	return rule.Bonus(*ev, a), ev
}
