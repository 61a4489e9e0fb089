// Package domain defines the scoring types and business logic for the gamification service.
package domain

import (
	"math"
	"strings"
	"time"
)

// EventSource distinguishes manually logged events from device-sourced ones.
type EventSource string

const (
	SourceManual EventSource = "manual"
	SourceDevice EventSource = "device"
)

// Measurements carries the typed quantities recorded for one activity event.
// Zero values mean "not recorded"; the formula layer treats them as absent.
type Measurements struct {
	Reps           int     `json:"reps,omitempty"`
	Sets           int     `json:"sets,omitempty"`
	MassKG         float64 `json:"mass_kg,omitempty"`
	DistanceKM     float64 `json:"distance_km,omitempty"`
	DurationSec    float64 `json:"duration_sec,omitempty"`
	ElevationGainM float64 `json:"elevation_gain_m,omitempty"`
	AvgHeartRate   int     `json:"avg_heart_rate,omitempty"`
	ClaimedRecord  bool    `json:"claimed_record,omitempty"`
}

// ActivityEvent is one logged exercise occurrence. Immutable once created;
// the logging surface produces it and the scoring pipeline consumes it exactly once.
type ActivityEvent struct {
	ID           string
	UserID       string
	Category     string
	Measurements Measurements
	StartedAt    time.Time
	EndedAt      time.Time
	Source       EventSource
}

// Volume returns the resistance training volume (mass x reps x sets) in kilograms.
func (e ActivityEvent) Volume() float64 {
	return e.Measurements.MassKG * float64(e.Measurements.Reps) * float64(e.Measurements.Sets)
}

// Validate rejects malformed events before any state is read or written.
func (e ActivityEvent) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ValidationError{Field: "user_id", Reason: "required"}
	}
	if strings.TrimSpace(e.Category) == "" {
		return ValidationError{Field: "category", Reason: "required"}
	}
	if e.StartedAt.IsZero() {
		return ValidationError{Field: "started_at", Reason: "required"}
	}
	if !e.EndedAt.IsZero() && e.EndedAt.Before(e.StartedAt) {
		return ValidationError{Field: "ended_at", Reason: "precedes started_at"}
	}

	m := e.Measurements
	if m.Reps < 0 {
		return ValidationError{Field: "reps", Reason: "negative"}
	}
	if m.Sets < 0 {
		return ValidationError{Field: "sets", Reason: "negative"}
	}
	for field, value := range map[string]float64{
		"mass_kg":          m.MassKG,
		"distance_km":      m.DistanceKM,
		"duration_sec":     m.DurationSec,
		"elevation_gain_m": m.ElevationGainM,
	} {
		if value < 0 {
			return ValidationError{Field: field, Reason: "negative"}
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return ValidationError{Field: field, Reason: "not finite"}
		}
	}
	if m.AvgHeartRate < 0 {
		return ValidationError{Field: "avg_heart_rate", Reason: "negative"}
	}
	return nil
}

// Day returns the event's activity date truncated to UTC midnight. Streak
// arithmetic operates on days, never on raw timestamps.
func (e ActivityEvent) Day() time.Time {
	return e.StartedAt.UTC().Truncate(24 * time.Hour)
}
