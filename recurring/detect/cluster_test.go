package detect_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"babylon/recurring/recurring/detect"
	"babylon/recurring/recurring/model"
)

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		name string
		rec  model.TransactionRecord
		want string
	}{
		{
			"merchant wins",
			model.TransactionRecord{Merchant: "Netflix", Description: "NETFLIX.COM", Category: "Entertainment"},
			"NETFLIX",
		},
		{
			"falls back to description",
			model.TransactionRecord{Description: "City  Power   autopay"},
			"CITY POWER AUTOPAY",
		},
		{
			"falls back to category",
			model.TransactionRecord{Category: "Utilities"},
			"UTILITIES",
		},
		{
			"all blank",
			model.TransactionRecord{Merchant: "   "},
			"UNKNOWN",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, detect.NormalizeLabel(tc.rec))
		})
	}
}

func TestClusterDropsUnparsableDates(t *testing.T) {
	records := []model.TransactionRecord{
		{Merchant: "NETFLIX", Type: model.TxExpense, Date: "2025-06-15", Amount: 15.49},
		{Merchant: "NETFLIX", Type: model.TxExpense, Date: "not-a-date", Amount: 15.49},
		{Merchant: "NETFLIX", Type: model.TxExpense, Date: "2025-05-15", Amount: 15.49},
	}

	clusters := detect.Cluster(context.Background(), records)

	key := detect.ClusterKey{Label: "NETFLIX", Type: model.TxExpense}
	occs, ok := clusters[key]
	require.True(t, ok)
	require.Len(t, occs, 2, "the bad-date record is dropped, not fatal")
	assert.True(t, occs[0].Date.Before(occs[1].Date), "occurrences sorted ascending")
}

func TestClusterSplitsByDirection(t *testing.T) {
	records := []model.TransactionRecord{
		{Merchant: "ACME", Type: model.TxExpense, Date: "2025-06-01", Amount: 25},
		{Merchant: "ACME", Type: model.TxIncome, Date: "2025-06-01", Amount: 25},
	}

	clusters := detect.Cluster(context.Background(), records)

	assert.Len(t, clusters, 2)
	assert.Len(t, clusters[detect.ClusterKey{Label: "ACME", Type: model.TxExpense}], 1)
	assert.Len(t, clusters[detect.ClusterKey{Label: "ACME", Type: model.TxIncome}], 1)
}

func TestSortedKeysDeterministic(t *testing.T) {
	records := []model.TransactionRecord{
		{Merchant: "ZETA", Type: model.TxExpense, Date: "2025-06-01", Amount: 1},
		{Merchant: "ALPHA", Type: model.TxExpense, Date: "2025-06-01", Amount: 1},
		{Merchant: "ALPHA", Type: model.TxIncome, Date: "2025-06-01", Amount: 1},
	}

	clusters := detect.Cluster(context.Background(), records)
	keys := detect.SortedKeys(clusters)

	require.Len(t, keys, 3)
	assert.Equal(t, "ALPHA", keys[0].Label)
	assert.Equal(t, "ALPHA", keys[1].Label)
	assert.Equal(t, "ZETA", keys[2].Label)
}

func TestParseDateLayouts(t *testing.T) {
	for _, raw := range []string{"2025-06-15", "2025-06-15T10:30:00Z", "06/15/2025"} {
		parsed, ok := detect.ParseDate(raw)
		require.True(t, ok, "layout %q", raw)
		assert.Equal(t, 2025, parsed.Year())
	}

	_, ok := detect.ParseDate("June 15, 2025")
	assert.False(t, ok)
}
