package detect

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
)

// Registry upserts the canonical RecurringSeries per (user, name, kind).
type Registry struct {
	Series repository.SeriesStore
}

// NewRegistry creates a Registry over the given store.
func NewRegistry(series repository.SeriesStore) *Registry {
	return &Registry{Series: series}
}

// Register upserts the series implied by a qualified cluster. The store's
// Upsert is a single atomic conditional write, so concurrent detection
// runs for the same user converge on one series per key.
func (r *Registry) Register(
	ctx context.Context,
	userID primitive.ObjectID,
	key ClusterKey,
	kind model.SeriesKind,
	cadence model.Cadence,
	amountHint float64,
	occs []Occurrence,
) (model.RecurringSeries, error) {
	last := occs[len(occs)-1]

	series := model.RecurringSeries{
		UserID:     userID,
		Kind:       kind,
		Name:       key.Label,
		Merchant:   last.Record.Merchant,
		Cadence:    cadence,
		AmountHint: amountHint,
		Active:     true,
		LastSeen:   last.Date,
		UpdatedAt:  time.Now().UTC(),
	}

	switch cadence {
	case model.CadenceMonthly:
		if day := last.Date.Day(); day <= maxDayOfMonth {
			series.DayOfMonth = day
		}
	case model.CadenceWeekly, model.CadenceBiweekly:
		series.Weekday = int(last.Date.Weekday())
	}

	series.NextDue = BumpNextDue(series.LastSeen, cadence, series.DayOfMonth)

	stored, err := r.Series.Upsert(ctx, series)
	if err != nil {
		return model.RecurringSeries{}, fmt.Errorf("failed to upsert series %q: %w", key.String(), err)
	}

	return stored, nil
}
