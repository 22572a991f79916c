package detect

import (
	"time"

	"babylon/recurring/recurring/model"
)

const hoursPerDay = 24

// cadenceBand maps a mean inter-occurrence gap to a cadence. Bands are
// evaluated in order and the first match wins, so the biweekly band takes
// the overlapping 13-17 day range ahead of semimonthly.
type cadenceBand struct {
	min, max float64
	cadence  model.Cadence
}

var cadenceBands = []cadenceBand{
	{6, 9, model.CadenceWeekly},
	{12, 18, model.CadenceBiweekly},
	{13, 17, model.CadenceSemimonthly},
	{26, 35, model.CadenceMonthly},
	{80, 110, model.CadenceQuarterly},
	{330, 395, model.CadenceYearly},
}

// InferCadence classifies the mean gap between consecutive sorted
// occurrence dates into a cadence. It is pure and deterministic: the same
// date sequence always yields the same classification.
func InferCadence(dates []time.Time) model.Cadence {
	if len(dates) < 2 {
		return model.CadenceUnknown
	}

	var total float64
	for i := 1; i < len(dates); i++ {
		total += dates[i].Sub(dates[i-1]).Hours() / hoursPerDay
	}
	mean := total / float64(len(dates)-1)

	for _, band := range cadenceBands {
		if mean >= band.min && mean <= band.max {
			return band.cadence
		}
	}

	return model.CadenceUnknown
}

// maxDayOfMonth is the clamp ceiling for day-of-month scheduling, so a
// 31st-of-the-month series never skips a short month.
const maxDayOfMonth = 28

// BumpNextDue computes the next due date strictly after lastSeen for the
// given cadence. dayOfMonth, when in [1,28], pins monthly series to that
// day; zero falls back to lastSeen's day clamped to [1,28].
func BumpNextDue(lastSeen time.Time, cadence model.Cadence, dayOfMonth int) time.Time {
	switch cadence {
	case model.CadenceWeekly:
		return lastSeen.AddDate(0, 0, 7)
	case model.CadenceBiweekly:
		return lastSeen.AddDate(0, 0, 14)
	case model.CadenceSemimonthly:
		// Jump to the 15th of this month or the 1st of the next,
		// whichever comes strictly after lastSeen.
		if lastSeen.Day() < 15 {
			return time.Date(lastSeen.Year(), lastSeen.Month(), 15, 0, 0, 0, 0, lastSeen.Location())
		}
		return time.Date(lastSeen.Year(), lastSeen.Month()+1, 1, 0, 0, 0, 0, lastSeen.Location())
	case model.CadenceQuarterly:
		return lastSeen.AddDate(0, 3, 0)
	case model.CadenceYearly:
		return lastSeen.AddDate(1, 0, 0)
	default:
		// Monthly and unknown: same day-of-month next month, clamped.
		day := dayOfMonth
		if day < 1 || day > maxDayOfMonth {
			day = lastSeen.Day()
			if day > maxDayOfMonth {
				day = maxDayOfMonth
			}
		}
		return time.Date(lastSeen.Year(), lastSeen.Month()+1, day, 0, 0, 0, 0, lastSeen.Location())
	}
}
