// Package detect implements the recurring-pattern pipeline: clustering of
// the transaction feed, the amount-consistency filter, cadence inference,
// series registration and bill scheduling.
package detect

import (
	"context"
	"sort"
	"strings"
	"time"

	"babylon/recurring/appcontext"
	"babylon/recurring/recurring/model"
)

// dateLayouts are tried in order when parsing feed dates. The ledger
// writes ISO dates; bank CSV exports use the US short form.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
}

// Occurrence is one feed record that supports a cluster hypothesis.
type Occurrence struct {
	Date   time.Time
	Amount float64
	Record model.TransactionRecord
}

// ClusterKey groups occurrences by normalized label and direction.
type ClusterKey struct {
	Label string
	Type  model.TxType
}

// String renders the key in the "LABEL|type" form reported to callers.
func (k ClusterKey) String() string {
	return k.Label + "|" + string(k.Type)
}

// NormalizeLabel derives the cluster label for a record via the fallback
// chain merchant -> description -> category -> "Unknown", upper-cased with
// runs of whitespace collapsed to single spaces.
func NormalizeLabel(rec model.TransactionRecord) string {
	raw := rec.Merchant
	if strings.TrimSpace(raw) == "" {
		raw = rec.Description
	}
	if strings.TrimSpace(raw) == "" {
		raw = rec.Category
	}
	if strings.TrimSpace(raw) == "" {
		raw = "Unknown"
	}

	return strings.ToUpper(strings.Join(strings.Fields(raw), " "))
}

// ParseDate parses a feed date string, trying each supported layout.
func ParseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// Cluster groups feed records into candidate recurring clusters. Records
// with unparsable dates are dropped individually and logged; a bad record
// never aborts the run. Each cluster's occurrences come back sorted by
// date ascending.
func Cluster(ctx context.Context, records []model.TransactionRecord) map[ClusterKey][]Occurrence {
	logger := appcontext.LoggerFromContext(ctx)
	clusters := make(map[ClusterKey][]Occurrence)

	for _, rec := range records {
		date, ok := ParseDate(rec.Date)
		if !ok {
			logger.WarnContext(ctx, "Skipping record with unparsable date", "date", rec.Date, "merchant", rec.Merchant)
			continue
		}

		key := ClusterKey{Label: NormalizeLabel(rec), Type: rec.Type}
		clusters[key] = append(clusters[key], Occurrence{
			Date:   date,
			Amount: rec.Amount,
			Record: rec,
		})
	}

	for key := range clusters {
		occs := clusters[key]
		sort.Slice(occs, func(i, j int) bool { return occs[i].Date.Before(occs[j].Date) })
		clusters[key] = occs
	}

	return clusters
}

// SortedKeys returns the cluster keys in a deterministic order so repeated
// detection runs over the same feed process clusters identically.
func SortedKeys(clusters map[ClusterKey][]Occurrence) []ClusterKey {
	keys := make([]ClusterKey, 0, len(clusters))
	for key := range clusters {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	return keys
}
