package detect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"babylon/recurring/recurring/detect"
	"babylon/recurring/recurring/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// datesEvery builds n dates spaced gap days apart.
func datesEvery(start time.Time, gapDays, n int) []time.Time {
	dates := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, start.AddDate(0, 0, i*gapDays))
	}
	return dates
}

func TestInferCadence(t *testing.T) {
	start := day(2025, time.January, 3)

	tests := []struct {
		name  string
		dates []time.Time
		want  model.Cadence
	}{
		{"weekly", datesEvery(start, 7, 5), model.CadenceWeekly},
		{"biweekly", datesEvery(start, 14, 5), model.CadenceBiweekly},
		{"monthly", datesEvery(start, 30, 5), model.CadenceMonthly},
		{"quarterly", datesEvery(start, 91, 4), model.CadenceQuarterly},
		{"yearly", datesEvery(start, 365, 3), model.CadenceYearly},
		{"too sparse", []time.Time{start}, model.CadenceUnknown},
		{"gap outside all bands", datesEvery(start, 21, 4), model.CadenceUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, detect.InferCadence(tc.dates))
		})
	}
}

// A mean gap of 15 days sits inside both the biweekly and semimonthly
// bands; band order decides, and biweekly wins.
func TestInferCadenceBiweeklyBeatsSemimonthly(t *testing.T) {
	dates := datesEvery(day(2025, time.March, 1), 15, 5)
	assert.Equal(t, model.CadenceBiweekly, detect.InferCadence(dates))
}

func TestInferCadenceDeterministic(t *testing.T) {
	dates := []time.Time{
		day(2025, time.January, 15),
		day(2025, time.February, 14),
		day(2025, time.March, 17),
		day(2025, time.April, 15),
	}

	first := detect.InferCadence(dates)
	assert.Equal(t, model.CadenceMonthly, first)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, detect.InferCadence(dates))
	}
}

func TestBumpNextDue(t *testing.T) {
	tests := []struct {
		name       string
		lastSeen   time.Time
		cadence    model.Cadence
		dayOfMonth int
		want       time.Time
	}{
		{"weekly", day(2025, time.June, 2), model.CadenceWeekly, 0, day(2025, time.June, 9)},
		{"biweekly", day(2025, time.June, 2), model.CadenceBiweekly, 0, day(2025, time.June, 16)},
		{"semimonthly before the 15th", day(2025, time.June, 2), model.CadenceSemimonthly, 0, day(2025, time.June, 15)},
		{"semimonthly on the 15th", day(2025, time.June, 15), model.CadenceSemimonthly, 0, day(2025, time.July, 1)},
		{"monthly pinned day", day(2025, time.June, 14), model.CadenceMonthly, 15, day(2025, time.July, 15)},
		{"monthly falls back to last seen day", day(2025, time.June, 10), model.CadenceMonthly, 0, day(2025, time.July, 10)},
		{"monthly clamps the 31st", day(2025, time.January, 31), model.CadenceMonthly, 0, day(2025, time.February, 28)},
		{"quarterly", day(2025, time.June, 2), model.CadenceQuarterly, 0, day(2025, time.September, 2)},
		{"yearly", day(2025, time.June, 2), model.CadenceYearly, 0, day(2026, time.June, 2)},
		{"unknown behaves monthly", day(2025, time.June, 10), model.CadenceUnknown, 0, day(2025, time.July, 10)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := detect.BumpNextDue(tc.lastSeen, tc.cadence, tc.dayOfMonth)
			assert.Equal(t, tc.want, got)
			assert.True(t, got.After(tc.lastSeen), "next due must be strictly after last seen")
		})
	}
}
