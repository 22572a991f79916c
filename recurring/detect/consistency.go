package detect

import "math"

// Consistency filter constants.
const (
	// MinOccurrences is the minimum cluster size considered recurring.
	MinOccurrences = 3
	// AmountTolerance is the band around the representative amount.
	AmountTolerance = 0.15
	// ConsistencyRatio is the share of occurrences that must fall inside
	// the tolerance band for the cluster to survive.
	ConsistencyRatio = 0.60
)

// AmountWithin reports whether amount lies within tolerance of base,
// comparing magnitudes so income signs do not matter.
func AmountWithin(amount, base, tolerance float64) bool {
	ref := math.Abs(base)
	if ref == 0 {
		return math.Abs(amount) == 0
	}

	return math.Abs(math.Abs(amount)-ref) <= tolerance*ref
}

// Representative returns the amount at the middle index of the
// date-sorted occurrences. This is a stable positional pick, not a true
// median; it matches how clusters are scored everywhere else.
func Representative(occs []Occurrence) float64 {
	return occs[len(occs)/2].Amount
}

// Consistent decides whether a cluster's amounts support a recurring
// hypothesis: at least MinOccurrences occurrences, of which at least 60%
// fall within ±15% of the representative amount. It returns the
// representative magnitude for surviving clusters. This guards against
// same-merchant clusters that are not actually recurring, such as
// variable restaurant visits.
func Consistent(occs []Occurrence) (float64, bool) {
	if len(occs) < MinOccurrences {
		return 0, false
	}

	rep := Representative(occs)
	within := 0
	for _, occ := range occs {
		if AmountWithin(occ.Amount, rep, AmountTolerance) {
			within++
		}
	}

	if float64(within)/float64(len(occs)) < ConsistencyRatio {
		return 0, false
	}

	return math.Abs(rep), true
}
