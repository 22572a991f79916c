package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"babylon/recurring/recurring/errs"
	"babylon/recurring/recurring/model"
)

// PaycheckStore implements repository.PaycheckStore over the paychecks
// collection.
type PaycheckStore struct {
	col Collection
}

// NewPaycheckStore creates a PaycheckStore.
func NewPaycheckStore(provider CollectionProvider) *PaycheckStore {
	return &PaycheckStore{col: provider.Collection(PaychecksCollection)}
}

// Insert appends a paycheck hit and returns it with its assigned id.
func (s *PaycheckStore) Insert(ctx context.Context, h model.PaycheckHit) (model.PaycheckHit, error) {
	result, err := s.col.InsertOne(ctx, h)
	if err != nil {
		return model.PaycheckHit{}, fmt.Errorf("failed to insert paycheck hit: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		h.ID = id
	}

	return h, nil
}

// Update replaces the mutable fields of an existing hit.
func (s *PaycheckStore) Update(ctx context.Context, h model.PaycheckHit) error {
	filter := bson.M{"_id": h.ID, "userId": h.UserID}
	update := bson.M{"$set": bson.M{
		"amount":       h.Amount,
		"date":         h.Date,
		"accountId":    h.AccountID,
		"employerName": h.EmployerName,
		"txId":         h.TxID,
	}}

	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update paycheck hit %s: %w", h.ID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return errs.NotFoundError("paycheck", h.ID.Hex())
	}

	return nil
}

// FindByTx returns the hit linked to a transaction id, or nil.
func (s *PaycheckStore) FindByTx(ctx context.Context, userID primitive.ObjectID, txID string) (*model.PaycheckHit, error) {
	if txID == "" {
		return nil, nil
	}

	var hit model.PaycheckHit
	err := s.col.FindOne(ctx, bson.M{"userId": userID, "txId": txID}).Decode(&hit)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search paychecks by transaction id: %w", err)
	}

	return &hit, nil
}

// ListSince returns hits dated on or after since, newest first.
func (s *PaycheckStore) ListSince(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]model.PaycheckHit, error) {
	filter := bson.M{
		"userId": userID,
		"date":   bson.M{"$gte": since},
	}

	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list paycheck hits: %w", err)
	}

	var hits []model.PaycheckHit
	if err := cursor.All(ctx, &hits); err != nil {
		return nil, fmt.Errorf("failed to decode paycheck hits: %w", err)
	}

	return hits, nil
}
