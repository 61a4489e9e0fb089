package domain

import "time"

// RecordChange describes a personal record that the tracker replaced.
type RecordChange struct {
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	// First is true when no prior value existed. A first-time record is not
	// an improvement for pr-improvement achievement purposes.
	First bool `json:"first"`
}

// ApplyReport summarises what one tracker application changed, beyond the
// metric values themselves. The achievement evaluator needs "did this update
// change the record", not just the new value.
type ApplyReport struct {
	StreakExtended   bool                    `json:"streak_extended"`
	StreakReset      bool                    `json:"streak_reset"`
	GraceConsumed    bool                    `json:"grace_consumed"`
	GraceReplenished bool                    `json:"grace_replenished"`
	SameDay          bool                    `json:"same_day"`
	Records          map[string]RecordChange `json:"records"`
	// RecordClaimUnconfirmed is set when the event carried a personal-record
	// claim that the strict record merge did not bear out.
	RecordClaimUnconfirmed bool `json:"record_claim_unconfirmed,omitempty"`
}

// ImprovedRecord reports whether the given record key was strictly improved
// (not merely set for the first time) by this application.
func (r ApplyReport) ImprovedRecord(key string) bool {
	change, ok := r.Records[key]
	return ok && !change.First
}

// UserAchievementUnlock records that a user satisfied an achievement
// definition. Created exactly once per (user, definition) pair.
type UserAchievementUnlock struct {
	UserID         string    `json:"user_id"`
	AchievementKey string    `json:"achievement_key"`
	UnlockedAt     time.Time `json:"unlocked_at"`
	TriggerValue   float64   `json:"trigger_value"`
	RewardPoints   int64     `json:"reward_points"`
}
