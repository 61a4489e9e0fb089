// Package tracker maintains the per-user running state: streaks with a grace
// allowance, rolling sums, and personal records. It is the single writer of
// UserMetrics; callers serialize invocations per user.
package tracker

import (
	"fmt"
	"time"

	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/formula"
)

// Config carries the tracker's product constants.
type Config struct {
	// GraceAllowance is how many missed-day tokens a user holds per
	// replenishment period. Tokens replenish to this level once per period.
	GraceAllowance int
	// ReplenishPeriod truncates a date to the start of its replenishment
	// period. The cadence is a product decision; monthly by default.
	ReplenishPeriod func(time.Time) time.Time
	// OverloadWindowWeeks bounds the retained weekly volume history.
	OverloadWindowWeeks int
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		GraceAllowance:      1,
		ReplenishPeriod:     domain.MonthStart,
		OverloadWindowWeeks: 4,
	}
}

// Tracker applies scored events to user metrics.
type Tracker struct {
	registry *formula.Registry
	cfg      Config
}

// New constructs a Tracker over the given formula registry.
func New(registry *formula.Registry, cfg Config) *Tracker {
	if cfg.ReplenishPeriod == nil {
		cfg.ReplenishPeriod = domain.MonthStart
	}
	return &Tracker{registry: registry, cfg: cfg}
}

// Apply implements domain.MetricsTracker. It never mutates the supplied
// snapshot; the updated copy is returned alongside a report of what changed.
// Stored state that violates an invariant is refused, not silently repaired.
func (t *Tracker) Apply(event domain.ActivityEvent, breakdown domain.PointBreakdown, metrics domain.UserMetrics) (domain.UserMetrics, domain.ApplyReport, error) {
	if err := metrics.CheckConsistent(); err != nil {
		return domain.UserMetrics{}, domain.ApplyReport{}, fmt.Errorf("refusing delta for user %s: %w", event.UserID, err)
	}

	cat, ok := t.registry.Lookup(event.Category)
	if !ok {
		return domain.UserMetrics{}, domain.ApplyReport{}, fmt.Errorf("%w: %q", domain.ErrUnknownCategory, event.Category)
	}

	updated := metrics.Clone()
	report := domain.ApplyReport{Records: make(map[string]domain.RecordChange)}

	t.applyStreak(event, &updated, &report)
	t.applyAggregates(event, cat, breakdown, &updated)
	t.applyRecords(event, cat, &updated, &report)

	// A device or user can flag an event as a personal record; the stored
	// records decide. An unconfirmed claim is reported, never trusted.
	if event.Measurements.ClaimedRecord && len(report.Records) == 0 {
		report.RecordClaimUnconfirmed = true
	}

	updated.UpdatedAt = event.StartedAt.UTC()
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = updated.UpdatedAt
	}

	return updated, report, nil
}

// applyStreak runs the streak state machine. Day gaps are measured on UTC
// dates; concurrent events on the same date never double-increment.
func (t *Tracker) applyStreak(event domain.ActivityEvent, m *domain.UserMetrics, report *domain.ApplyReport) {
	day := event.Day()

	// Tokens replenish once per period regardless of streak state.
	if period := t.cfg.ReplenishPeriod(day); period.After(m.GracePeriod) {
		m.GraceTokens = t.cfg.GraceAllowance
		m.GracePeriod = period
		report.GraceReplenished = true
	}

	switch {
	case m.LastActiveDate.IsZero():
		m.CurrentStreak = 1
		report.StreakExtended = true
	case day.Equal(m.LastActiveDate):
		report.SameDay = true
	case day.Before(m.LastActiveDate):
		// Backfilled event: aggregates still apply, streak state does not.
		report.SameDay = true
	default:
		gapDays := int(day.Sub(m.LastActiveDate).Hours() / 24)
		switch {
		case gapDays == 1:
			m.CurrentStreak++
			report.StreakExtended = true
		case m.GraceTokens > 0:
			m.GraceTokens--
			m.CurrentStreak++
			report.GraceConsumed = true
			report.StreakExtended = true
		default:
			m.CurrentStreak = 1
			m.GraceTokens = t.cfg.GraceAllowance
			report.StreakReset = true
		}
	}

	if day.After(m.LastActiveDate) {
		m.LastActiveDate = day
	}
	if m.CurrentStreak > m.BestStreak {
		m.BestStreak = m.CurrentStreak
	}
}

// applyAggregates adds the event's measurements and points to the lifetime
// and rolling sums. Windows only ever advance: a backfilled event from a
// closed week or month contributes to lifetime sums but never rewinds the
// current rolling window.
func (t *Tracker) applyAggregates(event domain.ActivityEvent, cat formula.Category, breakdown domain.PointBreakdown, m *domain.UserMetrics) {
	day := event.Day()
	week := domain.WeekStartOf(day)
	month := domain.MonthStart(day)

	if week.After(m.WeekStart) {
		m.WeeklyPoints = 0
		m.WeekStart = week
	}
	if month.After(m.MonthStart) {
		m.MonthlyPoints = 0
		m.MonthStart = month
	}

	m.LifetimePoints += breakdown.Total
	if week.Equal(m.WeekStart) {
		m.WeeklyPoints += breakdown.Total
	}
	if month.Equal(m.MonthStart) {
		m.MonthlyPoints += breakdown.Total
	}
	m.EventCount++
	m.EventCounts[cat.Key]++

	meas := event.Measurements
	if meas.DistanceKM > 0 {
		m.DistanceKM[cat.Key] += meas.DistanceKM
	}
	if volume := event.Volume(); volume > 0 {
		m.VolumeKG[cat.Key] += volume
		t.appendVolume(cat.Key, week, volume, m)
	}
	if meas.Reps > 0 {
		sets := meas.Sets
		if sets < 1 {
			sets = 1
		}
		m.Reps[cat.Key] += int64(meas.Reps * sets)
	}

	if breakdown.HasBonus("milestone") {
		if awarded, ok := m.MilestonesAwarded[cat.Key]; !ok || week.After(awarded) {
			m.MilestonesAwarded[cat.Key] = week
		}
	}
}

// appendVolume folds the event's volume into the per-week history and trims
// it to the overload window plus the in-progress week. Entries are kept in
// week order so the trailing-average scan stays newest-last even when an
// older week arrives late.
func (t *Tracker) appendVolume(category string, week time.Time, volume float64, m *domain.UserMetrics) {
	history := m.VolumeHistory[category]

	idx := len(history)
	for idx > 0 && history[idx-1].WeekStart.After(week) {
		idx--
	}
	if idx > 0 && history[idx-1].WeekStart.Equal(week) {
		history[idx-1].Volume += volume
	} else {
		history = append(history, domain.PeriodVolume{})
		copy(history[idx+1:], history[idx:])
		history[idx] = domain.PeriodVolume{WeekStart: week, Volume: volume}
	}

	if keep := t.cfg.OverloadWindowWeeks + 1; len(history) > keep {
		history = history[len(history)-keep:]
	}
	m.VolumeHistory[category] = history
}

// applyRecords merges the event's record candidates into the stored personal
// records. A value replaces the stored one only if strictly better in the
// metric's declared direction.
func (t *Tracker) applyRecords(event domain.ActivityEvent, cat formula.Category, m *domain.UserMetrics, report *domain.ApplyReport) {
	for _, cand := range t.registry.RecordCandidates(cat, event.Measurements) {
		stored, ok := m.Records[cand.Key]
		if !ok {
			m.Records[cand.Key] = cand.Value
			report.Records[cand.Key] = domain.RecordChange{Current: cand.Value, First: true}
			continue
		}

		better := cand.Value > stored
		if cand.LowerIsBetter {
			better = cand.Value < stored
		}
		if better {
			m.Records[cand.Key] = cand.Value
			report.Records[cand.Key] = domain.RecordChange{Previous: stored, Current: cand.Value}
		}
	}
}
