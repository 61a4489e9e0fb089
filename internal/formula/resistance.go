package formula

import "example.com/gamification/internal/domain"

// scoreResistance scores strength work: base is coefficient times total
// volume (mass x reps summed over sets, with uniform set measurements).
func scoreResistance(cat Category, m domain.Measurements, ctx Context, tun Tunables) Result {
	volume := m.MassKG * float64(m.Reps) * float64(m.Sets)
	if volume <= 0 {
		return Result{}
	}

	res := Result{Base: cat.Coefficient * volume}

	if m.Reps >= tun.SetRepThreshold && m.Sets > 0 {
		res.Bonuses = append(res.Bonuses, domain.Bonus{
			ID:     "set_completion",
			Label:  "Completed sets",
			Points: tun.SetCompletionBonus * float64(m.Sets),
		})
	}

	// Progressive overload: beating the trailing average only counts once a
	// baseline of completed weeks exists.
	if ctx.TrailingAvgVolume > 0 && volume > ctx.TrailingAvgVolume {
		res.Bonuses = append(res.Bonuses, domain.Bonus{
			ID:     "progressive_overload",
			Label:  "Progressive overload",
			Points: res.Base * tun.OverloadFactor,
		})
	}

	if stored, ok := ctx.Records[cat.Key+":one_rep_max_kg"]; ok {
		if OneRepMax(m.MassKG, m.Reps) > stored {
			res.Bonuses = append(res.Bonuses, domain.Bonus{
				ID:     "personal_record",
				Label:  "Personal record",
				Points: tun.RecordBonus,
			})
		}
	}

	return res
}
