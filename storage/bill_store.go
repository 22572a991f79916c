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
	"babylon/recurring/recurring/repository"
)

var openStatuses = bson.A{model.BillDue, model.BillPredicted}

// BillStore implements repository.BillStore over the bills collection.
type BillStore struct {
	col Collection
}

// NewBillStore creates a BillStore.
func NewBillStore(provider CollectionProvider) *BillStore {
	return &BillStore{col: provider.Collection(BillsCollection)}
}

// Insert stores a new bill and returns it with its assigned id.
func (s *BillStore) Insert(ctx context.Context, b model.Bill) (model.Bill, error) {
	result, err := s.col.InsertOne(ctx, b)
	if err != nil {
		return model.Bill{}, fmt.Errorf("failed to insert bill %q: %w", b.Name, err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		b.ID = id
	}

	return b, nil
}

// Update replaces the mutable fields of an existing bill.
func (s *BillStore) Update(ctx context.Context, b model.Bill) error {
	filter := bson.M{"_id": b.ID, "userId": b.UserID}
	update := bson.M{"$set": bson.M{
		"seriesId": b.SeriesID,
		"name":     b.Name,
		"merchant": b.Merchant,
		"amount":   b.Amount,
		"currency": b.Currency,
		"dueDate":  b.DueDate,
		"status":   b.Status,
		"txId":     b.TxID,
		"paidAt":   b.PaidAt,
	}}

	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update bill %s: %w", b.ID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return errs.NotFoundError("bill", b.ID.Hex())
	}

	return nil
}

// FindOpenNear returns one due/predicted bill inside the query window.
func (s *BillStore) FindOpenNear(ctx context.Context, q repository.OpenBillQuery) (*model.Bill, error) {
	filter := bson.M{
		"userId": q.UserID,
		"status": bson.M{"$in": openStatuses},
		"dueDate": bson.M{
			"$gte": q.Around.AddDate(0, 0, -q.WindowDays),
			"$lte": q.Around.AddDate(0, 0, q.WindowDays),
		},
	}
	if !q.SeriesID.IsZero() {
		filter["seriesId"] = q.SeriesID
	} else {
		if q.Name == "" {
			return nil, nil
		}
		filter["name"] = q.Name
	}

	var bill model.Bill
	err := s.col.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "dueDate", Value: 1}})).Decode(&bill)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search open bills: %w", err)
	}

	return &bill, nil
}

// FindByTx returns the bill linked to a transaction id, or nil.
func (s *BillStore) FindByTx(ctx context.Context, userID primitive.ObjectID, txID string) (*model.Bill, error) {
	if txID == "" {
		return nil, nil
	}

	var bill model.Bill
	err := s.col.FindOne(ctx, bson.M{"userId": userID, "txId": txID}).Decode(&bill)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search bills by transaction id: %w", err)
	}

	return &bill, nil
}

// ListUpcoming returns open bills due no later than until, ascending.
func (s *BillStore) ListUpcoming(ctx context.Context, userID primitive.ObjectID, until time.Time) ([]model.Bill, error) {
	filter := bson.M{
		"userId":  userID,
		"status":  bson.M{"$in": openStatuses},
		"dueDate": bson.M{"$lte": until},
	}

	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dueDate", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming bills: %w", err)
	}

	var bills []model.Bill
	if err := cursor.All(ctx, &bills); err != nil {
		return nil, fmt.Errorf("failed to decode upcoming bills: %w", err)
	}

	return bills, nil
}

// ListPaidSince returns paid bills confirmed on or after since.
func (s *BillStore) ListPaidSince(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]model.Bill, error) {
	filter := bson.M{
		"userId": userID,
		"status": model.BillPaid,
		"paidAt": bson.M{"$gte": since},
	}

	cursor, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "paidAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list paid bills: %w", err)
	}

	var bills []model.Bill
	if err := cursor.All(ctx, &bills); err != nil {
		return nil, fmt.Errorf("failed to decode paid bills: %w", err)
	}

	return bills, nil
}
