// Package achievement holds the declarative achievement catalog and the
// evaluator that tests its conditions against user metrics. Conditions are
// data interpreted by a closed operator dispatch; nothing in a catalog file
// is ever executed.
package achievement

import "fmt"

// Operator is the closed set of condition operators.
type Operator string

const (
	OpSum           Operator = "sum"
	OpCount         Operator = "count"
	OpMax           Operator = "max"
	OpStreak        Operator = "streak"
	OpPRImprovement Operator = "pr-improvement"
	OpSingleEvent   Operator = "single-event-threshold"
)

// knownOperators guards catalog validation.
var knownOperators = map[Operator]struct{}{
	OpSum: {}, OpCount: {}, OpMax: {}, OpStreak: {}, OpPRImprovement: {}, OpSingleEvent: {},
}

// Condition is a declarative unlock rule.
type Condition struct {
	Operator Operator `toml:"operator" json:"operator"`
	// Metric names the aggregate, record, or derived event metric compared
	// against Target. Meaning depends on the operator.
	Metric string `toml:"metric" json:"metric"`
	// Category optionally restricts the condition to one exercise category.
	Category string  `toml:"category" json:"category,omitempty"`
	Target   float64 `toml:"target" json:"target"`
	// LessThan flips the comparison for time-based "lower is better" targets.
	LessThan bool `toml:"less_than" json:"less_than,omitempty"`
	// UseBestStreak compares against the best streak instead of the current one.
	UseBestStreak bool `toml:"use_best_streak" json:"use_best_streak,omitempty"`
}

// recordKey resolves the personal-record key a max or pr-improvement
// condition refers to.
func (c Condition) recordKey() string {
	if c.Category != "" {
		return c.Category + ":" + c.Metric
	}
	return c.Metric
}

// Definition is one immutable catalog entry.
type Definition struct {
	Key          string    `toml:"key" json:"key"`
	Name         string    `toml:"name" json:"name"`
	Description  string    `toml:"description" json:"description,omitempty"`
	Category     string    `toml:"category" json:"category"`
	Tier         string    `toml:"tier" json:"tier"`
	RewardPoints int64     `toml:"reward_points" json:"reward_points"`
	Condition    Condition `toml:"condition" json:"condition"`
}

// CatalogError marks a malformed catalog entry. Any CatalogError at load
// time is fatal: a catalog never partially loads.
type CatalogError struct {
	Key    string
	Reason string
}

func (e CatalogError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid achievement catalog: %s", e.Reason)
	}
	return fmt.Sprintf("invalid achievement %q: %s", e.Key, e.Reason)
}

// Validate checks the whole definition set.
func Validate(defs []Definition) error {
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		if def.Key == "" {
			return CatalogError{Reason: "missing key"}
		}
		if _, dup := seen[def.Key]; dup {
			return CatalogError{Key: def.Key, Reason: "duplicate key"}
		}
		seen[def.Key] = struct{}{}

		if def.Name == "" {
			return CatalogError{Key: def.Key, Reason: "missing name"}
		}
		if _, ok := knownOperators[def.Condition.Operator]; !ok {
			return CatalogError{Key: def.Key, Reason: fmt.Sprintf("unknown operator %q", def.Condition.Operator)}
		}
		if def.Condition.Target <= 0 {
			return CatalogError{Key: def.Key, Reason: "target must be positive"}
		}
		if def.RewardPoints < 0 {
			return CatalogError{Key: def.Key, Reason: "negative reward"}
		}
		switch def.Condition.Operator {
		case OpSum, OpMax, OpPRImprovement, OpSingleEvent:
			if def.Condition.Metric == "" {
				return CatalogError{Key: def.Key, Reason: "missing metric"}
			}
		}
		if def.Condition.LessThan && def.Condition.Operator != OpSingleEvent && def.Condition.Operator != OpMax {
			return CatalogError{Key: def.Key, Reason: "less_than requires a max or single-event condition"}
		}
	}
	return nil
}
