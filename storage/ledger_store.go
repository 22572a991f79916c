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
	"babylon/recurring/recurring/repository"
)

// LedgerStore implements repository.LedgerStore over the ledger's
// transactions collection. It only creates manual transactions and patches
// linkage fields; everything else belongs to the ledger collaborator.
type LedgerStore struct {
	col Collection
}

// NewLedgerStore creates a LedgerStore.
func NewLedgerStore(provider CollectionProvider) *LedgerStore {
	return &LedgerStore{col: provider.Collection(TransactionsCollection)}
}

// GetByRef resolves a transaction by local object id or external id.
func (s *LedgerStore) GetByRef(ctx context.Context, userID primitive.ObjectID, ref model.TxRef) (*model.LedgerTransaction, error) {
	var filter bson.M
	if ref.IsLocal() {
		filter = bson.M{"_id": ref.Local(), "userId": userID}
	} else {
		if ref.External() == "" {
			return nil, nil
		}
		filter = bson.M{"externalId": ref.External(), "userId": userID}
	}

	var tx model.LedgerTransaction
	err := s.col.FindOne(ctx, filter).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ledger transaction %q: %w", ref.String(), err)
	}

	return &tx, nil
}

// FindByLinkage returns a transaction already linked to the bill or
// paycheck id set in link, or nil.
func (s *LedgerStore) FindByLinkage(ctx context.Context, userID primitive.ObjectID, link model.Linkage) (*model.LedgerTransaction, error) {
	filter := bson.M{"userId": userID}
	switch {
	case !link.MatchedBillID.IsZero():
		filter["matchedBillId"] = link.MatchedBillID
	case !link.MatchedPaycheckID.IsZero():
		filter["matchedPaycheckId"] = link.MatchedPaycheckID
	default:
		return nil, nil
	}

	var tx model.LedgerTransaction
	err := s.col.FindOne(ctx, filter).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search ledger by linkage: %w", err)
	}

	return &tx, nil
}

// PatchLinkage overwrites the linkage fields of an existing transaction.
func (s *LedgerStore) PatchLinkage(ctx context.Context, userID, id primitive.ObjectID, link model.Linkage) error {
	filter := bson.M{"_id": id, "userId": userID}
	update := bson.M{"$set": bson.M{
		"matchedBillId":      link.MatchedBillID,
		"matchedPaycheckId":  link.MatchedPaycheckID,
		"matchedRecurringId": link.MatchedRecurringID,
		"matchConfidence":    link.MatchConfidence,
	}}

	result, err := s.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to patch ledger transaction %s: %w", id.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return errs.NotFoundError("transaction", id.Hex())
	}

	return nil
}

// Insert stores a synthesized manual transaction.
func (s *LedgerStore) Insert(ctx context.Context, tx model.LedgerTransaction) (model.LedgerTransaction, error) {
	result, err := s.col.InsertOne(ctx, tx)
	if err != nil {
		return model.LedgerTransaction{}, fmt.Errorf("failed to insert ledger transaction: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		tx.ID = id
	}

	return tx, nil
}

// FeedSource implements repository.TransactionSource by reading the same
// transactions collection the ledger writes.
type FeedSource struct {
	col Collection
}

// NewFeedSource creates a FeedSource.
func NewFeedSource(provider CollectionProvider) *FeedSource {
	return &FeedSource{col: provider.Collection(TransactionsCollection)}
}

// feedDateLayout is how transaction dates are rendered into the string
// boundary the detection pipeline consumes.
const feedDateLayout = "2006-01-02"

// Find returns feed records matching the filter.
func (s *FeedSource) Find(ctx context.Context, filter repository.TransactionFilter) ([]model.TransactionRecord, error) {
	query := bson.M{"userId": filter.UserID}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.AccountID != "" {
		query["accountId"] = filter.AccountID
	}
	if !filter.Since.IsZero() {
		query["date"] = bson.M{"$gte": filter.Since}
	}

	cursor, err := s.col.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction feed: %w", err)
	}

	var txs []model.LedgerTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode transaction feed: %w", err)
	}

	records := make([]model.TransactionRecord, 0, len(txs))
	for _, tx := range txs {
		records = append(records, model.TransactionRecord{
			UserID:      tx.UserID,
			Type:        tx.Type,
			Amount:      tx.Amount,
			Date:        tx.Date.Format(feedDateLayout),
			Merchant:    tx.Merchant,
			Category:    "",
			Description: tx.Description,
			AccountID:   tx.AccountID,
			Source:      tx.Source,
		})
	}

	return records, nil
}
