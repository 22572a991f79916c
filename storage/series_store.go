package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"babylon/recurring/recurring/errs"
	"babylon/recurring/recurring/model"
)

// SeriesStore implements repository.SeriesStore over the recurring_series
// collection.
type SeriesStore struct {
	col Collection
}

// NewSeriesStore creates a SeriesStore.
func NewSeriesStore(provider CollectionProvider) *SeriesStore {
	return &SeriesStore{col: provider.Collection(SeriesCollection)}
}

// Upsert inserts or updates the one active series per (userId, name, kind)
// with a single FindOneAndUpdate upsert. The key fields live only in the
// filter, so a concurrent run either inserts first or lands on the same
// document; MongoDB never produces two.
func (s *SeriesStore) Upsert(ctx context.Context, series model.RecurringSeries) (model.RecurringSeries, error) {
	filter := bson.M{
		"userId": series.UserID,
		"name":   series.Name,
		"kind":   series.Kind,
		"active": true,
	}
	update := bson.M{
		"$set": bson.M{
			"merchant":   series.Merchant,
			"cadence":    series.Cadence,
			"dayOfMonth": series.DayOfMonth,
			"weekday":    series.Weekday,
			"amountHint": series.AmountHint,
			"lastSeen":   series.LastSeen,
			"nextDue":    series.NextDue,
			"updatedAt":  series.UpdatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored model.RecurringSeries
	if err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored); err != nil {
		return model.RecurringSeries{}, fmt.Errorf("failed to upsert series %q: %w", series.Name, err)
	}

	return stored, nil
}

// GetByID returns the series or a not-found error.
func (s *SeriesStore) GetByID(ctx context.Context, userID, id primitive.ObjectID) (model.RecurringSeries, error) {
	var series model.RecurringSeries
	err := s.col.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&series)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.RecurringSeries{}, errs.NotFoundError("series", id.Hex())
	}
	if err != nil {
		return model.RecurringSeries{}, fmt.Errorf("failed to load series %s: %w", id.Hex(), err)
	}

	return series, nil
}

// Update replaces the mutable fields of an existing series.
func (s *SeriesStore) Update(ctx context.Context, series model.RecurringSeries) error {
	filter := bson.M{"_id": series.ID, "userId": series.UserID}
	update := bson.M{"$set": bson.M{
		"merchant":   series.Merchant,
		"cadence":    series.Cadence,
		"dayOfMonth": series.DayOfMonth,
		"weekday":    series.Weekday,
		"amountHint": series.AmountHint,
		"active":     series.Active,
		"lastSeen":   series.LastSeen,
		"nextDue":    series.NextDue,
		"updatedAt":  series.UpdatedAt,
	}}

	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update series %s: %w", series.ID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return errs.NotFoundError("series", series.ID.Hex())
	}

	return nil
}
