// Package formula contains the pure scoring functions, one per exercise
// category group. This package is the single source of truth for base scores
// and bonuses: it holds no state and performs no I/O, so the same inputs
// always produce the same result. Version identifies the active rule set;
// superseded versions are retained only for re-deriving historical
// breakdowns, never for new calculations.
package formula

import (
	"example.com/gamification/internal/domain"
)

// Version tags every breakdown produced by this rule set.
const Version = "v2"

// Kind selects the scoring function for a category.
type Kind string

const (
	KindResistance Kind = "resistance"
	KindDistance   Kind = "distance"
	KindTimed      Kind = "timed"
	KindReps       Kind = "reps"
)

// Category describes one registered exercise category. Categories are data:
// adding a category never requires a new scoring function.
type Category struct {
	Key              string
	Kind             Kind
	Coefficient      float64
	ReferencePaceSec float64 // distance only: reference seconds per km
	MilestoneKM      float64 // distance only: weekly milestone distance
	HardCap          int64
}

// Tunables are the product-decision constants. They are configuration, not
// literals baked into formulas.
type Tunables struct {
	SetCompletionBonus  float64
	SetRepThreshold     int
	OverloadFactor      float64
	RecordBonus         float64
	ElevationIncrementM float64
	ZoneBonus           float64
	ZoneMinHR           int
	ZoneMaxHR           int
	MilestoneBonus      float64
	PaceFactorMin       float64
	PaceFactorMax       float64
}

// DefaultTunables returns the production constants.
func DefaultTunables() Tunables {
	return Tunables{
		SetCompletionBonus:  2,
		SetRepThreshold:     5,
		OverloadFactor:      0.10,
		RecordBonus:         15,
		ElevationIncrementM: 40,
		ZoneBonus:           10,
		ZoneMinHR:           120,
		ZoneMaxHR:           160,
		MilestoneBonus:      25,
		PaceFactorMin:       0.6,
		PaceFactorMax:       1.4,
	}
}

// Context carries the caller-derived slice of user history a formula may
// consult. Supplying it explicitly keeps the functions pure.
type Context struct {
	// TrailingAvgVolume is the average resistance volume over the trailing
	// completed weeks for this category; zero when no history exists.
	TrailingAvgVolume float64
	// Records holds the user's stored personal records by key.
	Records map[string]float64
	// MilestoneAwarded is true when the weekly distance milestone was already
	// granted in the current week.
	MilestoneAwarded bool
}

// Result is the output of one formula application.
type Result struct {
	Base    float64
	Bonuses []domain.Bonus
}

// RecordCandidate is a personal-record value an event may establish.
type RecordCandidate struct {
	Key           string
	Value         float64
	LowerIsBetter bool
}

// Registry is the closed set of scorable categories.
type Registry struct {
	categories map[string]Category
	tun        Tunables
}

// NewRegistry builds a registry from the provided categories.
func NewRegistry(tun Tunables, categories ...Category) *Registry {
	r := &Registry{
		categories: make(map[string]Category, len(categories)),
		tun:        tun,
	}
	for _, cat := range categories {
		r.categories[cat.Key] = cat
	}
	return r
}

// DefaultCategories returns the built-in category set.
func DefaultCategories() []Category {
	return []Category{
		{Key: "bench_press", Kind: KindResistance, Coefficient: 0.1, HardCap: 1000},
		{Key: "squat", Kind: KindResistance, Coefficient: 0.1, HardCap: 1000},
		{Key: "deadlift", Kind: KindResistance, Coefficient: 0.1, HardCap: 1000},
		{Key: "overhead_press", Kind: KindResistance, Coefficient: 0.1, HardCap: 1000},
		{Key: "running", Kind: KindDistance, Coefficient: 40, ReferencePaceSec: 360, MilestoneKM: 10, HardCap: 800},
		{Key: "cycling", Kind: KindDistance, Coefficient: 15, ReferencePaceSec: 110, MilestoneKM: 40, HardCap: 800},
		{Key: "rowing", Kind: KindDistance, Coefficient: 30, ReferencePaceSec: 240, MilestoneKM: 5, HardCap: 800},
		{Key: "plank", Kind: KindTimed, Coefficient: 0.5, HardCap: 400},
		{Key: "wall_sit", Kind: KindTimed, Coefficient: 0.4, HardCap: 400},
		{Key: "push_up", Kind: KindReps, Coefficient: 1, HardCap: 400},
		{Key: "sit_up", Kind: KindReps, Coefficient: 0.8, HardCap: 400},
		{Key: "pull_up", Kind: KindReps, Coefficient: 2, HardCap: 400},
	}
}

// Lookup returns the category for key.
func (r *Registry) Lookup(key string) (Category, bool) {
	cat, ok := r.categories[key]
	return cat, ok
}

// Categories returns the registered categories (order unspecified).
func (r *Registry) Categories() []Category {
	out := make([]Category, 0, len(r.categories))
	for _, cat := range r.categories {
		out = append(out, cat)
	}
	return out
}

// Tunables exposes the active constants.
func (r *Registry) Tunables() Tunables {
	return r.tun
}

// Score dispatches to the category's scoring function. Zero or missing
// measurements yield a zero base with no bonuses; that is not an error.
func (r *Registry) Score(cat Category, m domain.Measurements, ctx Context) Result {
	switch cat.Kind {
	case KindResistance:
		return scoreResistance(cat, m, ctx, r.tun)
	case KindDistance:
		return scoreDistance(cat, m, ctx, r.tun)
	case KindTimed, KindReps:
		return scoreCore(cat, m, ctx, r.tun)
	default:
		return Result{}
	}
}

// RecordCandidates derives the personal-record values the event may set.
func (r *Registry) RecordCandidates(cat Category, m domain.Measurements) []RecordCandidate {
	switch cat.Kind {
	case KindResistance:
		if orm := OneRepMax(m.MassKG, m.Reps); orm > 0 {
			return []RecordCandidate{{Key: cat.Key + ":one_rep_max_kg", Value: orm}}
		}
	case KindDistance:
		var out []RecordCandidate
		if m.DistanceKM > 0 {
			out = append(out, RecordCandidate{Key: cat.Key + ":longest_distance_km", Value: m.DistanceKM})
		}
		if pace := PaceSecPerKM(m); pace > 0 {
			out = append(out, RecordCandidate{Key: cat.Key + ":best_pace_sec_per_km", Value: pace, LowerIsBetter: true})
		}
		return out
	case KindTimed:
		if m.DurationSec > 0 {
			return []RecordCandidate{{Key: cat.Key + ":longest_hold_sec", Value: m.DurationSec}}
		}
	case KindReps:
		if m.Reps > 0 {
			return []RecordCandidate{{Key: cat.Key + ":most_reps", Value: float64(m.Reps)}}
		}
	}
	return nil
}

// OneRepMax estimates a one-rep max with the Epley formula.
func OneRepMax(massKG float64, reps int) float64 {
	if massKG <= 0 || reps <= 0 {
		return 0
	}
	return massKG * (1 + float64(reps)/30)
}

// PaceSecPerKM derives the pace of a distance event, zero when underspecified.
func PaceSecPerKM(m domain.Measurements) float64 {
	if m.DistanceKM <= 0 || m.DurationSec <= 0 {
		return 0
	}
	return m.DurationSec / m.DistanceKM
}
