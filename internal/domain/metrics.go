package domain

import "time"

// PeriodVolume records the resistance volume lifted in one completed or
// in-progress week, used for the progressive-overload comparison.
type PeriodVolume struct {
	WeekStart time.Time `json:"week_start"`
	Volume    float64   `json:"volume"`
}

// UserMetrics is the per-user running state that scoring, streak tracking,
// and achievement evaluation all read. The tracker is its only writer.
type UserMetrics struct {
	UserID         string `json:"user_id"`
	LifetimePoints int64  `json:"lifetime_points"`
	EventCount     int64  `json:"event_count"`

	// Lifetime per-category sums.
	DistanceKM  map[string]float64 `json:"distance_km"`
	VolumeKG    map[string]float64 `json:"volume_kg"`
	Reps        map[string]int64   `json:"reps"`
	EventCounts map[string]int64   `json:"event_counts"`

	CurrentStreak  int       `json:"current_streak"`
	BestStreak     int       `json:"best_streak"`
	GraceTokens    int       `json:"grace_tokens"`
	GracePeriod    time.Time `json:"grace_period"`
	LastActiveDate time.Time `json:"last_active_date"`

	// Records maps metric key ("category:metric") to best-ever value.
	// Direction (higher or lower is better) is declared by the formula layer
	// when it proposes a record, not inferred from the stored value.
	Records map[string]float64 `json:"records"`

	WeeklyPoints  int64     `json:"weekly_points"`
	WeekStart     time.Time `json:"week_start"`
	MonthlyPoints int64     `json:"monthly_points"`
	MonthStart    time.Time `json:"month_start"`

	// VolumeHistory keeps the most recent weekly volume entries per resistance
	// category, newest last, trimmed to the overload window plus the current week.
	VolumeHistory map[string][]PeriodVolume `json:"volume_history"`

	// MilestonesAwarded maps category to the week start in which the distance
	// milestone bonus was last granted.
	MilestonesAwarded map[string]time.Time `json:"milestones_awarded"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserMetrics initialises empty metrics for a first-time user.
func NewUserMetrics(userID string, graceAllowance int, now time.Time) UserMetrics {
	return UserMetrics{
		UserID:            userID,
		DistanceKM:        make(map[string]float64),
		VolumeKG:          make(map[string]float64),
		Reps:              make(map[string]int64),
		EventCounts:       make(map[string]int64),
		Records:           make(map[string]float64),
		VolumeHistory:     make(map[string][]PeriodVolume),
		MilestonesAwarded: make(map[string]time.Time),
		GraceTokens:       graceAllowance,
		GracePeriod:       MonthStart(now),
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}
}

// CheckConsistent verifies the invariants the tracker relies on. A violation
// means the stored state is corrupt and no delta may be applied on top of it.
func (m UserMetrics) CheckConsistent() error {
	if m.LifetimePoints < 0 || m.WeeklyPoints < 0 || m.MonthlyPoints < 0 {
		return ErrInconsistentState
	}
	if m.CurrentStreak < 0 || m.BestStreak < m.CurrentStreak {
		return ErrInconsistentState
	}
	if m.GraceTokens < 0 {
		return ErrInconsistentState
	}
	for _, v := range m.DistanceKM {
		if v < 0 {
			return ErrInconsistentState
		}
	}
	for _, v := range m.VolumeKG {
		if v < 0 {
			return ErrInconsistentState
		}
	}
	for _, v := range m.Reps {
		if v < 0 {
			return ErrInconsistentState
		}
	}
	return nil
}

// Clone returns a deep copy so the tracker can build the updated state
// without mutating the snapshot the engine calculated from.
func (m UserMetrics) Clone() UserMetrics {
	out := m
	out.DistanceKM = copyMap(m.DistanceKM)
	out.VolumeKG = copyMap(m.VolumeKG)
	out.Reps = copyMap(m.Reps)
	out.EventCounts = copyMap(m.EventCounts)
	out.Records = copyMap(m.Records)
	out.MilestonesAwarded = copyMap(m.MilestonesAwarded)
	out.VolumeHistory = make(map[string][]PeriodVolume, len(m.VolumeHistory))
	for k, v := range m.VolumeHistory {
		out.VolumeHistory[k] = append([]PeriodVolume(nil), v...)
	}
	return out
}

// TotalDistanceKM sums lifetime distance, optionally filtered to one category.
func (m UserMetrics) TotalDistanceKM(category string) float64 {
	if category != "" {
		return m.DistanceKM[category]
	}
	var sum float64
	for _, v := range m.DistanceKM {
		sum += v
	}
	return sum
}

// TotalVolumeKG sums lifetime volume, optionally filtered to one category.
func (m UserMetrics) TotalVolumeKG(category string) float64 {
	if category != "" {
		return m.VolumeKG[category]
	}
	var sum float64
	for _, v := range m.VolumeKG {
		sum += v
	}
	return sum
}

// TotalReps sums lifetime repetitions, optionally filtered to one category.
func (m UserMetrics) TotalReps(category string) int64 {
	if category != "" {
		return m.Reps[category]
	}
	var sum int64
	for _, v := range m.Reps {
		sum += v
	}
	return sum
}

// TotalEvents counts lifetime events, optionally filtered to one category.
func (m UserMetrics) TotalEvents(category string) int64 {
	if category != "" {
		return m.EventCounts[category]
	}
	return m.EventCount
}

// WeekStartOf truncates t to the Monday of its ISO week, UTC.
func WeekStartOf(t time.Time) time.Time {
	day := t.UTC().Truncate(24 * time.Hour)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// MonthStart truncates t to the first day of its month, UTC.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
