package formula

import (
	"math"

	"example.com/gamification/internal/domain"
)

// scoreDistance scores cardio work: base scales with distance and how the
// actual pace compares to the category reference, clamped so neither
// sandbagging nor GPS glitches can swing the score arbitrarily.
func scoreDistance(cat Category, m domain.Measurements, ctx Context, tun Tunables) Result {
	if m.DistanceKM <= 0 {
		return Result{}
	}

	factor := 1.0
	if pace := PaceSecPerKM(m); pace > 0 && cat.ReferencePaceSec > 0 {
		factor = clamp(cat.ReferencePaceSec/pace, tun.PaceFactorMin, tun.PaceFactorMax)
	}

	res := Result{Base: m.DistanceKM * factor * cat.Coefficient}

	if m.ElevationGainM > 0 && tun.ElevationIncrementM > 0 {
		increments := math.Floor(m.ElevationGainM / tun.ElevationIncrementM)
		if increments > 0 {
			res.Bonuses = append(res.Bonuses, domain.Bonus{
				ID:     "elevation",
				Label:  "Elevation gain",
				Points: increments,
			})
		}
	}

	if m.AvgHeartRate >= tun.ZoneMinHR && m.AvgHeartRate <= tun.ZoneMaxHR {
		res.Bonuses = append(res.Bonuses, domain.Bonus{
			ID:     "heart_zone",
			Label:  "Aerobic zone",
			Points: tun.ZoneBonus,
		})
	}

	if !ctx.MilestoneAwarded && cat.MilestoneKM > 0 && m.DistanceKM >= cat.MilestoneKM {
		res.Bonuses = append(res.Bonuses, domain.Bonus{
			ID:     "milestone",
			Label:  "Weekly distance milestone",
			Points: tun.MilestoneBonus,
		})
	}

	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
