package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gamification/internal/domain"
)

func newEvaluator(t *testing.T, defs ...Definition) *Evaluator {
	t.Helper()
	if len(defs) == 0 {
		defs = Default()
	}
	catalog, err := NewCatalog(defs)
	require.NoError(t, err)
	return NewEvaluator(catalog)
}

func metricsFor(userID string) domain.UserMetrics {
	return domain.NewUserMetrics(userID, 1, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
}

func runningEvent(distanceKM, durationSec float64) domain.ActivityEvent {
	return domain.ActivityEvent{
		ID:           "evt-1",
		UserID:       "user-1",
		Category:     "running",
		Measurements: domain.Measurements{DistanceKM: distanceKM, DurationSec: durationSec},
		StartedAt:    time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC),
	}
}

func unlockKeys(unlocks []domain.UserAchievementUnlock) map[string]struct{} {
	out := make(map[string]struct{}, len(unlocks))
	for _, u := range unlocks {
		out[u.AchievementKey] = struct{}{}
	}
	return out
}

func TestSumConditionCrossesThresholdOnce(t *testing.T) {
	ev := newEvaluator(t)

	metrics := metricsFor("user-1")
	metrics.DistanceKM["running"] = 100.6 // just crossed from 99.4

	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(1.2, 420), domain.PointBreakdown{}, nil)
	keys := unlockKeys(unlocks)
	require.Contains(t, keys, "century_runner")

	for _, u := range unlocks {
		if u.AchievementKey == "century_runner" {
			require.InDelta(t, 100.6, u.TriggerValue, 1e-9)
			require.Equal(t, int64(250), u.RewardPoints)
			require.Equal(t, "user-1", u.UserID)
		}
	}

	// The next event must not re-unlock a key the user already holds.
	metrics.DistanceKM["running"] = 105
	again := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(4.4, 1500), domain.PointBreakdown{}, map[string]struct{}{
		"century_runner": {},
	})
	require.NotContains(t, unlockKeys(again), "century_runner")
}

func TestSumConditionBelowThreshold(t *testing.T) {
	ev := newEvaluator(t)

	metrics := metricsFor("user-1")
	metrics.DistanceKM["running"] = 99.4

	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
	require.NotContains(t, unlockKeys(unlocks), "century_runner")
}

func TestSumWithoutCategorySpansAllCategories(t *testing.T) {
	ev := newEvaluator(t)

	metrics := metricsFor("user-1")
	metrics.DistanceKM["running"] = 600
	metrics.DistanceKM["cycling"] = 450

	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
	require.Contains(t, unlockKeys(unlocks), "globe_trotter")
}

func TestCountCondition(t *testing.T) {
	ev := newEvaluator(t)

	metrics := metricsFor("user-1")
	metrics.EventCount = 1
	metrics.EventCounts["running"] = 1

	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
	require.Contains(t, unlockKeys(unlocks), "first_steps")
	require.NotContains(t, unlockKeys(unlocks), "regular")
}

func TestStreakConditions(t *testing.T) {
	ev := newEvaluator(t)

	metrics := metricsFor("user-1")
	metrics.CurrentStreak = 7
	metrics.BestStreak = 15

	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
	keys := unlockKeys(unlocks)

	require.Contains(t, keys, "week_warrior")   // current streak 7
	require.Contains(t, keys, "comeback")       // best streak 15
	require.NotContains(t, keys, "iron_month")  // needs 30
}

func TestMaxConditionReadsStoredRecord(t *testing.T) {
	ev := newEvaluator(t)

	metrics := metricsFor("user-1")
	metrics.Records["bench_press:one_rep_max_kg"] = 102.5

	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
	require.Contains(t, unlockKeys(unlocks), "hundred_club")
}

func TestPRImprovementRequiresActualImprovement(t *testing.T) {
	ev := newEvaluator(t)
	metrics := metricsFor("user-1")

	t.Run("first record set is not an improvement", func(t *testing.T) {
		report := domain.ApplyReport{Records: map[string]domain.RecordChange{
			"squat:one_rep_max_kg": {Current: 120, First: true},
		}}
		unlocks := ev.Evaluate(metrics, report, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
		require.NotContains(t, unlockKeys(unlocks), "stronger_than_yesterday")
	})

	t.Run("beating a previous record unlocks", func(t *testing.T) {
		report := domain.ApplyReport{Records: map[string]domain.RecordChange{
			"squat:one_rep_max_kg": {Previous: 120, Current: 125},
		}}
		unlocks := ev.Evaluate(metrics, report, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
		require.Contains(t, unlockKeys(unlocks), "stronger_than_yesterday")

		for _, u := range unlocks {
			if u.AchievementKey == "stronger_than_yesterday" {
				require.InDelta(t, 125, u.TriggerValue, 1e-9)
			}
		}
	})
}

func TestSingleEventThresholdLessThan(t *testing.T) {
	ev := newEvaluator(t)
	metrics := metricsFor("user-1")

	t.Run("fast 5k unlocks", func(t *testing.T) {
		unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(5, 1400), domain.PointBreakdown{}, nil)
		require.Contains(t, unlockKeys(unlocks), "swift_five")
	})

	t.Run("slow 5k does not", func(t *testing.T) {
		unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(5, 1800), domain.PointBreakdown{}, nil)
		require.NotContains(t, unlockKeys(unlocks), "swift_five")
	})

	t.Run("short run cannot qualify however fast", func(t *testing.T) {
		unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(3, 600), domain.PointBreakdown{}, nil)
		require.NotContains(t, unlockKeys(unlocks), "swift_five")
	})

	t.Run("longer runs qualify on projected 5k time", func(t *testing.T) {
		// 10 km in 2700 s is a 1350 s 5k split.
		unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(10, 2700), domain.PointBreakdown{}, nil)
		require.Contains(t, unlockKeys(unlocks), "swift_five")
	})

	t.Run("category restriction holds", func(t *testing.T) {
		event := runningEvent(5, 1200)
		event.Category = "cycling"
		unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, event, domain.PointBreakdown{}, nil)
		require.NotContains(t, unlockKeys(unlocks), "swift_five")
	})
}

func TestRewardPointsVisibleOnNextEvaluation(t *testing.T) {
	// point_collector triggers on lifetime points, which include earlier
	// achievement rewards by the time the next event is evaluated.
	ev := newEvaluator(t)

	metrics := metricsFor("user-1")
	metrics.LifetimePoints = 10050

	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(3, 1100), domain.PointBreakdown{}, nil)
	require.Contains(t, unlockKeys(unlocks), "point_collector")
}

func TestEvaluateWithCustomCatalog(t *testing.T) {
	ev := newEvaluator(t, Definition{
		Key: "sprinter", Name: "Sprinter", Category: "distance", Tier: "bronze", RewardPoints: 5,
		Condition: Condition{Operator: OpSingleEvent, Metric: "pace_sec_per_km", Category: "running", Target: 240, LessThan: true},
	})

	metrics := metricsFor("user-1")
	unlocks := ev.Evaluate(metrics, domain.ApplyReport{}, runningEvent(2, 400), domain.PointBreakdown{}, nil)
	require.Contains(t, unlockKeys(unlocks), "sprinter")
}
