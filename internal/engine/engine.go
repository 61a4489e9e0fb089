// Package engine implements the point calculation engine: it orchestrates
// the formula library and the user's metrics snapshot into a single
// deterministic, capped, fully itemized point total.
package engine

import (
	"fmt"
	"math"

	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/formula"
)

// StreakTier maps a minimum streak length to a multiplier.
type StreakTier struct {
	MinDays    int
	Multiplier float64
}

// Config carries the engine's product constants.
type Config struct {
	SoftCapThreshold    float64
	SoftCapDiscount     float64
	MultiplierCeiling   float64
	DefaultHardCap      int64
	OverloadWindowWeeks int
	// StreakTiers must be ordered by descending MinDays.
	StreakTiers []StreakTier
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		SoftCapThreshold:    500,
		SoftCapDiscount:     0.5,
		MultiplierCeiling:   1.25,
		DefaultHardCap:      1000,
		OverloadWindowWeeks: 4,
		StreakTiers: []StreakTier{
			{MinDays: 14, Multiplier: 1.10},
			{MinDays: 7, Multiplier: 1.05},
			{MinDays: 3, Multiplier: 1.02},
		},
	}
}

// Engine computes point breakdowns. It is safe for concurrent use: every
// calculation is a pure function of the event and metrics snapshot, with no
// wall-clock reads and no hidden state.
type Engine struct {
	registry *formula.Registry
	cfg      Config
}

// New constructs an Engine over the given formula registry.
func New(registry *formula.Registry, cfg Config) *Engine {
	return &Engine{registry: registry, cfg: cfg}
}

// Calculate implements domain.Calculator. Malformed input is rejected before
// anything else happens; an unknown category is an error, never a zero score.
func (e *Engine) Calculate(event domain.ActivityEvent, metrics domain.UserMetrics, challengeMultiplier float64) (domain.PointBreakdown, error) {
	if err := event.Validate(); err != nil {
		return domain.PointBreakdown{}, err
	}

	cat, ok := e.registry.Lookup(event.Category)
	if !ok {
		return domain.PointBreakdown{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, event.Category)
	}

	fctx := formula.Context{
		TrailingAvgVolume: e.trailingAvgVolume(metrics, event),
		Records:           metrics.Records,
		MilestoneAwarded:  metrics.MilestonesAwarded[cat.Key].Equal(domain.WeekStartOf(event.Day())),
	}

	result := e.registry.Score(cat, event.Measurements, fctx)

	multiplier, factors := e.multiplier(metrics.CurrentStreak, challengeMultiplier)

	subtotal := result.Base
	for _, bonus := range result.Bonuses {
		subtotal += bonus.Points
	}
	precap := subtotal * multiplier

	hardCap := cat.HardCap
	if hardCap <= 0 {
		hardCap = e.cfg.DefaultHardCap
	}

	capped := precap
	if e.cfg.SoftCapThreshold > 0 && capped > e.cfg.SoftCapThreshold {
		capped = e.cfg.SoftCapThreshold + (capped-e.cfg.SoftCapThreshold)*(1-e.cfg.SoftCapDiscount)
	}
	if capped > float64(hardCap) {
		capped = float64(hardCap)
	}

	total := int64(math.Floor(capped))
	if total < 0 {
		total = 0
	}

	return domain.PointBreakdown{
		Category:          cat.Key,
		FormulaVersion:    formula.Version,
		Base:              result.Base,
		Bonuses:           result.Bonuses,
		Multiplier:        multiplier,
		MultiplierFactors: factors,
		Precap:            precap,
		CapApplied:        capped < precap,
		CapRemoved:        precap - capped,
		Total:             total,
	}, nil
}

// multiplier combines the streak tier with any externally supplied challenge
// or seasonal multiplier, capped at the global ceiling.
func (e *Engine) multiplier(currentStreak int, challenge float64) (float64, []domain.MultiplierFactor) {
	streak := 1.0
	for _, tier := range e.cfg.StreakTiers {
		if currentStreak >= tier.MinDays {
			streak = tier.Multiplier
			break
		}
	}
	factors := []domain.MultiplierFactor{{ID: "streak", Value: streak}}

	combined := streak
	if challenge > 0 && challenge != 1 {
		factors = append(factors, domain.MultiplierFactor{ID: "challenge", Value: challenge})
		combined *= challenge
	}

	if combined > e.cfg.MultiplierCeiling {
		combined = e.cfg.MultiplierCeiling
	}
	return combined, factors
}

// trailingAvgVolume averages the completed-week volumes for the event's
// category inside the overload window. The week the event falls in is
// excluded so an event never competes against itself.
func (e *Engine) trailingAvgVolume(metrics domain.UserMetrics, event domain.ActivityEvent) float64 {
	history := metrics.VolumeHistory[event.Category]
	if len(history) == 0 {
		return 0
	}

	week := domain.WeekStartOf(event.Day())
	var sum float64
	var count int
	for i := len(history) - 1; i >= 0 && count < e.cfg.OverloadWindowWeeks; i-- {
		entry := history[i]
		if !entry.WeekStart.Before(week) {
			continue
		}
		sum += entry.Volume
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
