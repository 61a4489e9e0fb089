package achievement

import (
	"example.com/gamification/internal/domain"
	"example.com/gamification/internal/formula"
)

// Evaluator tests catalog conditions against updated user metrics. It holds
// no per-user state; idempotence comes from the alreadyUnlocked guard plus
// the store's uniqueness constraint.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator constructs an Evaluator over the given catalog.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate implements domain.UnlockEvaluator. Conditions are independent
// predicates, so evaluation order is irrelevant; every newly satisfied
// definition is reported exactly once and already-unlocked keys are never
// re-emitted.
func (e *Evaluator) Evaluate(metrics domain.UserMetrics, report domain.ApplyReport, event domain.ActivityEvent, breakdown domain.PointBreakdown, already map[string]struct{}) []domain.UserAchievementUnlock {
	var unlocks []domain.UserAchievementUnlock

	for _, def := range e.catalog.Definitions() {
		if _, done := already[def.Key]; done {
			continue
		}

		value, satisfied := e.test(def.Condition, metrics, report, event, breakdown)
		if !satisfied {
			continue
		}

		unlocks = append(unlocks, domain.UserAchievementUnlock{
			UserID:         metrics.UserID,
			AchievementKey: def.Key,
			TriggerValue:   value,
			RewardPoints:   def.RewardPoints,
		})
	}

	return unlocks
}

// test dispatches on the closed operator set and returns the metric value
// that triggered the condition.
func (e *Evaluator) test(c Condition, metrics domain.UserMetrics, report domain.ApplyReport, event domain.ActivityEvent, breakdown domain.PointBreakdown) (float64, bool) {
	switch c.Operator {
	case OpSum:
		value, ok := aggregate(c, metrics)
		return value, ok && value >= c.Target

	case OpCount:
		value := float64(metrics.TotalEvents(c.Category))
		return value, value >= c.Target

	case OpMax:
		value, ok := metrics.Records[c.recordKey()]
		if !ok {
			return 0, false
		}
		if c.LessThan {
			return value, value < c.Target
		}
		return value, value >= c.Target

	case OpStreak:
		streak := metrics.CurrentStreak
		if c.UseBestStreak {
			streak = metrics.BestStreak
		}
		return float64(streak), float64(streak) >= c.Target

	case OpPRImprovement:
		key := c.recordKey()
		if !report.ImprovedRecord(key) {
			return 0, false
		}
		return report.Records[key].Current, true

	case OpSingleEvent:
		if c.Category != "" && event.Category != c.Category {
			return 0, false
		}
		value, ok := eventMetric(c.Metric, event, breakdown)
		if !ok {
			return 0, false
		}
		if c.LessThan {
			return value, value < c.Target
		}
		return value, value >= c.Target
	}

	return 0, false
}

// aggregate resolves a sum condition's metric against the lifetime sums.
func aggregate(c Condition, metrics domain.UserMetrics) (float64, bool) {
	switch c.Metric {
	case "points":
		return float64(metrics.LifetimePoints), true
	case "distance_km":
		return metrics.TotalDistanceKM(c.Category), true
	case "volume_kg":
		return metrics.TotalVolumeKG(c.Category), true
	case "reps":
		return float64(metrics.TotalReps(c.Category)), true
	default:
		return 0, false
	}
}

// eventMetric derives a single-event metric from the just-processed event.
func eventMetric(metric string, event domain.ActivityEvent, breakdown domain.PointBreakdown) (float64, bool) {
	m := event.Measurements
	switch metric {
	case "distance_km":
		return m.DistanceKM, m.DistanceKM > 0
	case "duration_sec":
		return m.DurationSec, m.DurationSec > 0
	case "reps":
		return float64(m.Reps), m.Reps > 0
	case "points":
		return float64(breakdown.Total), true
	case "pace_sec_per_km":
		pace := formula.PaceSecPerKM(m)
		return pace, pace > 0
	case "time_for_5k_sec":
		if m.DistanceKM < 5 {
			return 0, false
		}
		pace := formula.PaceSecPerKM(m)
		return pace * 5, pace > 0
	default:
		return 0, false
	}
}
