package formula

import "example.com/gamification/internal/domain"

// scoreCore scores timed holds and rep-count bodyweight work. The two modes
// are mutually exclusive per category: a timed category ignores reps and a
// rep category ignores duration.
func scoreCore(cat Category, m domain.Measurements, ctx Context, tun Tunables) Result {
	var res Result
	var recordKey string
	var candidate float64

	switch cat.Kind {
	case KindTimed:
		if m.DurationSec <= 0 {
			return Result{}
		}
		res.Base = m.DurationSec * cat.Coefficient
		recordKey = cat.Key + ":longest_hold_sec"
		candidate = m.DurationSec
	case KindReps:
		if m.Reps <= 0 {
			return Result{}
		}
		res.Base = float64(m.Reps) * cat.Coefficient
		recordKey = cat.Key + ":most_reps"
		candidate = float64(m.Reps)
	default:
		return Result{}
	}

	if stored, ok := ctx.Records[recordKey]; ok && candidate > stored {
		res.Bonuses = append(res.Bonuses, domain.Bonus{
			ID:     "personal_record",
			Label:  "Personal record",
			Points: tun.RecordBonus,
		})
	}

	return res
}
