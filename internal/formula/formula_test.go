package formula

import (
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/gamification/internal/domain"
)

func testRegistry() *Registry {
	return NewRegistry(DefaultTunables(), DefaultCategories()...)
}

func mustLookup(t *testing.T, r *Registry, key string) Category {
	t.Helper()
	cat, ok := r.Lookup(key)
	require.True(t, ok, "category %s must be registered", key)
	return cat
}

func bonusPoints(res Result, id string) (float64, bool) {
	for _, b := range res.Bonuses {
		if b.ID == id {
			return b.Points, true
		}
	}
	return 0, false
}

func TestResistanceBaseAndSetCompletion(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "squat")

	// 3 sets x 10 reps x 50 kg: base 150, set completion +6.
	res := r.Score(cat, domain.Measurements{MassKG: 50, Reps: 10, Sets: 3}, Context{})
	require.InDelta(t, 150, res.Base, 1e-9)

	points, ok := bonusPoints(res, "set_completion")
	require.True(t, ok)
	require.InDelta(t, 6, points, 1e-9)
	require.Len(t, res.Bonuses, 1)
}

func TestResistanceSetCompletionRequiresRepThreshold(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "bench_press")

	res := r.Score(cat, domain.Measurements{MassKG: 80, Reps: 4, Sets: 3}, Context{})
	require.Greater(t, res.Base, 0.0)
	_, ok := bonusPoints(res, "set_completion")
	require.False(t, ok)
}

func TestResistanceZeroVolumeScoresZero(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "deadlift")

	res := r.Score(cat, domain.Measurements{MassKG: 100}, Context{})
	require.Zero(t, res.Base)
	require.Empty(t, res.Bonuses)
}

func TestResistanceProgressiveOverload(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "squat")
	m := domain.Measurements{MassKG: 100, Reps: 5, Sets: 3} // volume 1500

	t.Run("no history means no bonus", func(t *testing.T) {
		res := r.Score(cat, m, Context{})
		_, ok := bonusPoints(res, "progressive_overload")
		require.False(t, ok)
	})

	t.Run("beating the trailing average adds ten percent of base", func(t *testing.T) {
		res := r.Score(cat, m, Context{TrailingAvgVolume: 1200})
		points, ok := bonusPoints(res, "progressive_overload")
		require.True(t, ok)
		require.InDelta(t, res.Base*0.10, points, 1e-9)
	})

	t.Run("matching the trailing average is not enough", func(t *testing.T) {
		res := r.Score(cat, m, Context{TrailingAvgVolume: 1500})
		_, ok := bonusPoints(res, "progressive_overload")
		require.False(t, ok)
	})
}

func TestResistancePersonalRecordBonus(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "bench_press")
	m := domain.Measurements{MassKG: 90, Reps: 5, Sets: 1} // ORM 105

	t.Run("no stored record means no bonus", func(t *testing.T) {
		res := r.Score(cat, m, Context{})
		_, ok := bonusPoints(res, "personal_record")
		require.False(t, ok)
	})

	t.Run("beating the stored record pays the bonus", func(t *testing.T) {
		res := r.Score(cat, m, Context{Records: map[string]float64{"bench_press:one_rep_max_kg": 100}})
		points, ok := bonusPoints(res, "personal_record")
		require.True(t, ok)
		require.InDelta(t, 15, points, 1e-9)
	})

	t.Run("falling short of the record pays nothing", func(t *testing.T) {
		res := r.Score(cat, m, Context{Records: map[string]float64{"bench_press:one_rep_max_kg": 120}})
		_, ok := bonusPoints(res, "personal_record")
		require.False(t, ok)
	})
}

func TestDistancePaceFactorClamping(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "running")

	t.Run("reference pace yields factor one", func(t *testing.T) {
		res := r.Score(cat, domain.Measurements{DistanceKM: 5, DurationSec: 1800}, Context{})
		require.InDelta(t, 5*40.0, res.Base, 1e-9)
	})

	t.Run("fast pace is clamped at the ceiling", func(t *testing.T) {
		// 5 km in 600 s would be factor 3.0 unclamped.
		res := r.Score(cat, domain.Measurements{DistanceKM: 5, DurationSec: 600}, Context{})
		require.InDelta(t, 5*1.4*40.0, res.Base, 1e-9)
	})

	t.Run("slow pace is clamped at the floor", func(t *testing.T) {
		// 5 km in 2 hours would be factor 0.25 unclamped.
		res := r.Score(cat, domain.Measurements{DistanceKM: 5, DurationSec: 7200}, Context{})
		require.InDelta(t, 5*0.6*40.0, res.Base, 1e-9)
	})

	t.Run("missing duration defaults the factor to one", func(t *testing.T) {
		res := r.Score(cat, domain.Measurements{DistanceKM: 5}, Context{})
		require.InDelta(t, 5*40.0, res.Base, 1e-9)
	})
}

func TestDistanceBonuses(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "running")

	m := domain.Measurements{
		DistanceKM:     10,
		DurationSec:    3600,
		ElevationGainM: 95,
		AvgHeartRate:   140,
	}
	res := r.Score(cat, m, Context{})

	elevation, ok := bonusPoints(res, "elevation")
	require.True(t, ok)
	require.InDelta(t, 2, elevation, 1e-9) // floor(95/40)

	zone, ok := bonusPoints(res, "heart_zone")
	require.True(t, ok)
	require.InDelta(t, 10, zone, 1e-9)

	milestone, ok := bonusPoints(res, "milestone")
	require.True(t, ok)
	require.InDelta(t, 25, milestone, 1e-9)
}

func TestDistanceHeartZoneBounds(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "running")

	for _, tc := range []struct {
		name string
		hr   int
		want bool
	}{
		{"below zone", 119, false},
		{"lower bound", 120, true},
		{"upper bound", 160, true},
		{"above zone", 161, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Score(cat, domain.Measurements{DistanceKM: 3, AvgHeartRate: tc.hr}, Context{})
			_, ok := bonusPoints(res, "heart_zone")
			require.Equal(t, tc.want, ok)
		})
	}
}

func TestDistanceMilestoneOncePerWeek(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "running")
	m := domain.Measurements{DistanceKM: 12}

	res := r.Score(cat, m, Context{MilestoneAwarded: true})
	_, ok := bonusPoints(res, "milestone")
	require.False(t, ok)
}

func TestTimedAndRepScoring(t *testing.T) {
	r := testRegistry()

	t.Run("plank scores duration times coefficient", func(t *testing.T) {
		cat := mustLookup(t, r, "plank")
		res := r.Score(cat, domain.Measurements{DurationSec: 120}, Context{})
		require.InDelta(t, 60, res.Base, 1e-9)
	})

	t.Run("push ups score reps times coefficient", func(t *testing.T) {
		cat := mustLookup(t, r, "push_up")
		res := r.Score(cat, domain.Measurements{Reps: 30}, Context{})
		require.InDelta(t, 30, res.Base, 1e-9)
	})

	t.Run("timed category ignores reps", func(t *testing.T) {
		cat := mustLookup(t, r, "wall_sit")
		res := r.Score(cat, domain.Measurements{Reps: 50}, Context{})
		require.Zero(t, res.Base)
	})

	t.Run("rep record bonus requires a stored record", func(t *testing.T) {
		cat := mustLookup(t, r, "pull_up")
		res := r.Score(cat, domain.Measurements{Reps: 15}, Context{
			Records: map[string]float64{"pull_up:most_reps": 12},
		})
		points, ok := bonusPoints(res, "personal_record")
		require.True(t, ok)
		require.InDelta(t, 15, points, 1e-9)
	})
}

func TestRecordCandidates(t *testing.T) {
	r := testRegistry()

	t.Run("resistance proposes a one rep max", func(t *testing.T) {
		cat := mustLookup(t, r, "bench_press")
		candidates := r.RecordCandidates(cat, domain.Measurements{MassKG: 90, Reps: 6})
		require.Len(t, candidates, 1)
		require.Equal(t, "bench_press:one_rep_max_kg", candidates[0].Key)
		require.InDelta(t, 90*(1+6.0/30), candidates[0].Value, 1e-9)
		require.False(t, candidates[0].LowerIsBetter)
	})

	t.Run("distance proposes distance and pace", func(t *testing.T) {
		cat := mustLookup(t, r, "running")
		candidates := r.RecordCandidates(cat, domain.Measurements{DistanceKM: 8, DurationSec: 2400})
		require.Len(t, candidates, 2)
		require.Equal(t, "running:longest_distance_km", candidates[0].Key)
		require.Equal(t, "running:best_pace_sec_per_km", candidates[1].Key)
		require.True(t, candidates[1].LowerIsBetter)
		require.InDelta(t, 300, candidates[1].Value, 1e-9)
	})

	t.Run("no measurements propose nothing", func(t *testing.T) {
		cat := mustLookup(t, r, "plank")
		require.Empty(t, r.RecordCandidates(cat, domain.Measurements{}))
	})
}

func TestOneRepMaxEpley(t *testing.T) {
	require.InDelta(t, 100*(1+10.0/30), OneRepMax(100, 10), 1e-9)
	require.Zero(t, OneRepMax(0, 10))
	require.Zero(t, OneRepMax(100, 0))
}

func TestScoreIsDeterministic(t *testing.T) {
	r := testRegistry()
	cat := mustLookup(t, r, "running")
	m := domain.Measurements{DistanceKM: 7.3, DurationSec: 2555, ElevationGainM: 130, AvgHeartRate: 150}
	ctx := Context{Records: map[string]float64{"running:best_pace_sec_per_km": 340}}

	first := r.Score(cat, m, ctx)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, r.Score(cat, m, ctx))
	}
}
