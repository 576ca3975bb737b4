package parse

// TransitionKind tags a semantic change between two consecutive snapshots.
type TransitionKind int

// Transition kinds, in the fixed priority order diff emits them.
const (
	CombatStarted TransitionKind = iota
	CombatEnded
	TargetChanged
	TargetConditionChanged
	OwnConditionChanged
	ExperienceGained
)

// String returns the transition kind name.
func (k TransitionKind) String() string {
	switch k {
	case CombatStarted:
		return "combat_started"
	case CombatEnded:
		return "combat_ended"
	case TargetChanged:
		return "target_changed"
	case TargetConditionChanged:
		return "target_condition_changed"
	case OwnConditionChanged:
		return "own_condition_changed"
	case ExperienceGained:
		return "experience_gained"
	default:
		return "unknown"
	}
}

// Transition is one semantic change derived from snapshot diffing.
type Transition struct {
	Kind TransitionKind
	// Target is the combat target involved, when relevant.
	Target string
	// Condition is the new qualitative condition, when relevant.
	Condition string
	// Amount is the experience gained for ExperienceGained.
	Amount int
}

// diff compares two snapshots and returns transitions in fixed priority
// order: combat started, combat ended, target changed, target condition
// changed, own condition changed, then experience gained.
//
// Postcondition: Returns nil when prev is nil (nothing to diff against).
func diff(prev, cur *Stats) []Transition {
	if prev == nil || cur == nil {
		return nil
	}

	var out []Transition

	switch {
	case !prev.InCombat && cur.InCombat:
		out = append(out, Transition{Kind: CombatStarted, Target: cur.Target, Condition: cur.TargetCondition})
	case prev.InCombat && !cur.InCombat:
		out = append(out, Transition{Kind: CombatEnded, Target: prev.Target})
	case cur.InCombat && prev.Target != cur.Target:
		out = append(out, Transition{Kind: TargetChanged, Target: cur.Target, Condition: cur.TargetCondition})
	}

	if cur.InCombat && prev.InCombat && prev.Target == cur.Target &&
		cur.TargetCondition != "" && prev.TargetCondition != cur.TargetCondition {
		out = append(out, Transition{Kind: TargetConditionChanged, Target: cur.Target, Condition: cur.TargetCondition})
	}

	if cur.OwnCondition != "" && prev.OwnCondition != cur.OwnCondition {
		out = append(out, Transition{Kind: OwnConditionChanged, Condition: cur.OwnCondition})
	}

	// ExpToLevel counts down toward the next level: a decrease is gained
	// experience. A reset or increase signals a level-up, which the caller
	// detects separately; it is not reported here.
	if prev.ExpToLevel != nil && cur.ExpToLevel != nil && *cur.ExpToLevel < *prev.ExpToLevel {
		out = append(out, Transition{Kind: ExperienceGained, Amount: *prev.ExpToLevel - *cur.ExpToLevel})
	}

	return out
}
