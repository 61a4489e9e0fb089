// Package events defines the wire payloads shared by the outbox producer and
// the Kafka consumer.
package events

import (
	"time"

	"example.com/gamification/internal/domain"
)

// ActivityLogged is the message the logging surface publishes for each
// recorded exercise occurrence. The consumer scores it asynchronously.
type ActivityLogged struct {
	EventID             string              `json:"event_id"`
	UserID              string              `json:"user_id"`
	Category            string              `json:"category"`
	Measurements        domain.Measurements `json:"measurements"`
	StartedAt           time.Time           `json:"started_at"`
	EndedAt             time.Time           `json:"ended_at,omitempty"`
	Source              string              `json:"source"`
	ChallengeMultiplier float64             `json:"challenge_multiplier,omitempty"`
}

// PointsAwarded is emitted after a scoring pass commits.
type PointsAwarded struct {
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	Category       string    `json:"category"`
	Points         int64     `json:"points"`
	FormulaVersion string    `json:"formula_version"`
	AwardedAt      time.Time `json:"awarded_at"`
}

// AchievementUnlocked is emitted once per (user, achievement) pair, ever.
type AchievementUnlocked struct {
	UserID         string    `json:"user_id"`
	AchievementKey string    `json:"achievement_key"`
	RewardPoints   int64     `json:"reward_points"`
	TriggerValue   float64   `json:"trigger_value"`
	UnlockedAt     time.Time `json:"unlocked_at"`
}
