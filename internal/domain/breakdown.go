package domain

// Bonus is one itemized line of a point breakdown.
type Bonus struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Points float64 `json:"points"`
}

// MultiplierFactor names one contribution to the final multiplier.
type MultiplierFactor struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// PointBreakdown is the full, auditable explanation of one calculation.
// Invariant: Total = floor(min(hard cap, (Base + sum of bonuses) * Multiplier))
// after the soft-cap discount, and Total is never negative.
type PointBreakdown struct {
	Category          string             `json:"category"`
	FormulaVersion    string             `json:"formula_version"`
	Base              float64            `json:"base"`
	Bonuses           []Bonus            `json:"bonuses"`
	Multiplier        float64            `json:"multiplier"`
	MultiplierFactors []MultiplierFactor `json:"multiplier_factors"`
	Precap            float64            `json:"precap"`
	CapApplied        bool               `json:"cap_applied"`
	CapRemoved        float64            `json:"cap_removed"`
	Total             int64              `json:"total"`
}

// BonusTotal sums the itemized bonus points.
func (b PointBreakdown) BonusTotal() float64 {
	var sum float64
	for _, bonus := range b.Bonuses {
		sum += bonus.Points
	}
	return sum
}

// HasBonus reports whether the breakdown contains a bonus with the given id.
func (b PointBreakdown) HasBonus(id string) bool {
	for _, bonus := range b.Bonuses {
		if bonus.ID == id {
			return true
		}
	}
	return false
}
