package achievement

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/BurntSushi/toml"
)

// Catalog is the immutable-at-runtime definition set. Reload swaps the whole
// slice atomically, so readers never observe a half-updated catalog.
type Catalog struct {
	defs atomic.Pointer[[]Definition]
}

// NewCatalog validates and wraps a definition set.
func NewCatalog(defs []Definition) (*Catalog, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}
	c := &Catalog{}
	c.defs.Store(&defs)
	return c, nil
}

// Definitions returns the current definition set. The returned slice must
// not be mutated.
func (c *Catalog) Definitions() []Definition {
	return *c.defs.Load()
}

// Reload atomically replaces the definition set. A validation failure leaves
// the previous catalog in place.
func (c *Catalog) Reload(defs []Definition) error {
	if err := Validate(defs); err != nil {
		return err
	}
	c.defs.Store(&defs)
	return nil
}

type catalogFile struct {
	Achievement []Definition `toml:"achievement"`
}

// LoadFile parses a TOML catalog file. Any malformed entry fails the whole
// load; there is no partial catalog.
func LoadFile(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file catalogFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, CatalogError{Reason: err.Error()}
	}
	if len(file.Achievement) == 0 {
		return nil, CatalogError{Reason: "no achievements defined"}
	}
	if err := Validate(file.Achievement); err != nil {
		return nil, err
	}
	return file.Achievement, nil
}

// Default returns the built-in catalog used when no file is configured.
func Default() []Definition {
	return []Definition{
		{
			Key: "first_steps", Name: "First Steps", Category: "getting_started", Tier: "bronze", RewardPoints: 10,
			Description: "Log your first activity.",
			Condition:   Condition{Operator: OpCount, Metric: "events", Target: 1},
		},
		{
			Key: "regular", Name: "Regular", Category: "getting_started", Tier: "bronze", RewardPoints: 25,
			Description: "Log 25 activities.",
			Condition:   Condition{Operator: OpCount, Metric: "events", Target: 25},
		},
		{
			Key: "week_warrior", Name: "Week Warrior", Category: "streak", Tier: "silver", RewardPoints: 50,
			Description: "Keep a 7-day streak alive.",
			Condition:   Condition{Operator: OpStreak, Target: 7},
		},
		{
			Key: "iron_month", Name: "Iron Month", Category: "streak", Tier: "gold", RewardPoints: 200,
			Description: "Keep a 30-day streak alive.",
			Condition:   Condition{Operator: OpStreak, Target: 30},
		},
		{
			Key: "comeback", Name: "Comeback", Category: "streak", Tier: "silver", RewardPoints: 75,
			Description: "Reach a best streak of 14 days.",
			Condition:   Condition{Operator: OpStreak, Target: 14, UseBestStreak: true},
		},
		{
			Key: "century_runner", Name: "Century Runner", Category: "distance", Tier: "gold", RewardPoints: 250,
			Description: "Run 100 lifetime kilometres.",
			Condition:   Condition{Operator: OpSum, Metric: "distance_km", Category: "running", Target: 100},
		},
		{
			Key: "globe_trotter", Name: "Globe Trotter", Category: "distance", Tier: "gold", RewardPoints: 500,
			Description: "Cover 1000 lifetime kilometres across all categories.",
			Condition:   Condition{Operator: OpSum, Metric: "distance_km", Target: 1000},
		},
		{
			Key: "ton_lifter", Name: "Ton Lifter", Category: "strength", Tier: "silver", RewardPoints: 100,
			Description: "Lift 10 tonnes of lifetime volume.",
			Condition:   Condition{Operator: OpSum, Metric: "volume_kg", Target: 10000},
		},
		{
			Key: "hundred_club", Name: "Hundred Club", Category: "strength", Tier: "gold", RewardPoints: 150,
			Description: "Hit a 100 kg estimated one-rep max on the bench press.",
			Condition:   Condition{Operator: OpMax, Metric: "one_rep_max_kg", Category: "bench_press", Target: 100},
		},
		{
			Key: "stronger_than_yesterday", Name: "Stronger Than Yesterday", Category: "strength", Tier: "bronze", RewardPoints: 20,
			Description: "Beat your squat one-rep max record.",
			Condition:   Condition{Operator: OpPRImprovement, Metric: "one_rep_max_kg", Category: "squat", Target: 1},
		},
		{
			Key: "swift_five", Name: "Swift Five", Category: "distance", Tier: "silver", RewardPoints: 120,
			Description: "Run 5 km in under 25 minutes in a single session.",
			Condition:   Condition{Operator: OpSingleEvent, Metric: "time_for_5k_sec", Category: "running", Target: 1500, LessThan: true},
		},
		{
			Key: "point_collector", Name: "Point Collector", Category: "points", Tier: "silver", RewardPoints: 100,
			Description: "Accumulate 10,000 lifetime points.",
			Condition:   Condition{Operator: OpSum, Metric: "points", Target: 10000},
		},
	}
}
