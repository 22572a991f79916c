package storage_test

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"babylon/recurring/recurring/errs"
	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
	"babylon/recurring/storage"
)

// Mock for the Collection interface.
type mockCollection struct {
	findFunc             func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	findOneFunc          func(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	findOneAndUpdateFunc func(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	insertOneFunc        func(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	updateOneFunc        func(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

func (m *mockCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, filter, opts...)
	}
	return mongo.NewCursorFromDocuments(nil, nil, nil)
}

func (m *mockCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	if m.findOneFunc != nil {
		return m.findOneFunc(ctx, filter, opts...)
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func (m *mockCollection) FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
	if m.findOneAndUpdateFunc != nil {
		return m.findOneAndUpdateFunc(ctx, filter, update, opts...)
	}
	return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
}

func (m *mockCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if m.insertOneFunc != nil {
		return m.insertOneFunc(ctx, document, opts...)
	}
	return &mongo.InsertOneResult{}, nil
}

func (m *mockCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if m.updateOneFunc != nil {
		return m.updateOneFunc(ctx, filter, update, opts...)
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

// Mock for the CollectionProvider interface.
type mockProvider struct {
	col      *mockCollection
	lastName string
}

func (m *mockProvider) Collection(name string) storage.Collection {
	m.lastName = name
	return m.col
}

func TestSeriesStoreUpsertKeysOnlyInFilter(t *testing.T) {
	userID := primitive.NewObjectID()
	stored := model.RecurringSeries{
		ID:      primitive.NewObjectID(),
		UserID:  userID,
		Kind:    model.KindBill,
		Name:    "NETFLIX",
		Cadence: model.CadenceMonthly,
		Active:  true,
	}

	col := &mockCollection{
		findOneAndUpdateFunc: func(_ context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult {
			f, ok := filter.(bson.M)
			if !ok {
				t.Fatalf("Expected bson.M filter, got %T", filter)
			}
			for _, key := range []string{"userId", "name", "kind", "active"} {
				if _, present := f[key]; !present {
					t.Errorf("Expected filter key %q", key)
				}
			}

			u, ok := update.(bson.M)
			if !ok {
				t.Fatalf("Expected bson.M update, got %T", update)
			}
			set, ok := u["$set"].(bson.M)
			if !ok {
				t.Fatalf("Expected $set update, got %v", u)
			}
			for _, key := range []string{"userId", "name", "kind", "active"} {
				if _, present := set[key]; present {
					t.Errorf("Key %q must not appear in $set; it would conflict with the upsert filter", key)
				}
			}

			if len(opts) != 1 || opts[0].Upsert == nil || !*opts[0].Upsert {
				t.Error("Expected upsert option to be set")
			}
			if opts[0].ReturnDocument == nil || *opts[0].ReturnDocument != options.After {
				t.Error("Expected ReturnDocument After")
			}

			return mongo.NewSingleResultFromDocument(stored, nil, nil)
		},
	}
	provider := &mockProvider{col: col}

	got, err := storage.NewSeriesStore(provider).Upsert(context.Background(), model.RecurringSeries{
		UserID: userID, Kind: model.KindBill, Name: "NETFLIX", Cadence: model.CadenceMonthly, Active: true,
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if got.ID != stored.ID {
		t.Errorf("Expected stored id %s, got %s", stored.ID.Hex(), got.ID.Hex())
	}
	if provider.lastName != storage.SeriesCollection {
		t.Errorf("Expected collection %q, got %q", storage.SeriesCollection, provider.lastName)
	}
}

func TestSeriesStoreGetByIDNotFound(t *testing.T) {
	provider := &mockProvider{col: &mockCollection{}}
	store := storage.NewSeriesStore(provider)

	_, err := store.GetByID(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	if !errs.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestSeriesStoreUpdateUnmatchedIsNotFound(t *testing.T) {
	col := &mockCollection{
		updateOneFunc: func(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
			return &mongo.UpdateResult{MatchedCount: 0}, nil
		},
	}
	store := storage.NewSeriesStore(&mockProvider{col: col})

	err := store.Update(context.Background(), model.RecurringSeries{ID: primitive.NewObjectID()})
	if !errs.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestBillStoreInsertAssignsID(t *testing.T) {
	id := primitive.NewObjectID()
	col := &mockCollection{
		insertOneFunc: func(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
			if _, ok := document.(model.Bill); !ok {
				t.Errorf("Expected model.Bill document, got %T", document)
			}
			return &mongo.InsertOneResult{InsertedID: id}, nil
		},
	}
	store := storage.NewBillStore(&mockProvider{col: col})

	bill, err := store.Insert(context.Background(), model.Bill{Name: "NETFLIX"})
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if bill.ID != id {
		t.Errorf("Expected assigned id %s, got %s", id.Hex(), bill.ID.Hex())
	}
}

func TestBillStoreFindOpenNearAbsent(t *testing.T) {
	store := storage.NewBillStore(&mockProvider{col: &mockCollection{}})

	bill, err := store.FindOpenNear(context.Background(), repository.OpenBillQuery{
		UserID: primitive.NewObjectID(), Name: "NETFLIX", Around: time.Now(), WindowDays: 5,
	})
	if err != nil {
		t.Fatalf("FindOpenNear returned error: %v", err)
	}
	if bill != nil {
		t.Errorf("Expected nil bill, got %+v", bill)
	}
}

func TestBillStoreFindOpenNearWithoutKeyShortCircuits(t *testing.T) {
	called := false
	col := &mockCollection{
		findOneFunc: func(context.Context, interface{}, ...*options.FindOneOptions) *mongo.SingleResult {
			called = true
			return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
		},
	}
	store := storage.NewBillStore(&mockProvider{col: col})

	bill, err := store.FindOpenNear(context.Background(), repository.OpenBillQuery{
		UserID: primitive.NewObjectID(), Around: time.Now(), WindowDays: 5,
	})
	if err != nil || bill != nil {
		t.Fatalf("Expected nil, nil; got %+v, %v", bill, err)
	}
	if called {
		t.Error("Expected no query when neither series id nor name is given")
	}
}

func TestBillStoreFindOpenNearFilterShape(t *testing.T) {
	seriesID := primitive.NewObjectID()
	col := &mockCollection{
		findOneFunc: func(_ context.Context, filter interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
			f, ok := filter.(bson.M)
			if !ok {
				t.Fatalf("Expected bson.M filter, got %T", filter)
			}
			if f["seriesId"] != seriesID {
				t.Errorf("Expected seriesId filter, got %v", f["seriesId"])
			}
			if _, present := f["name"]; present {
				t.Error("Name filter must not be set when a series id is given")
			}
			if _, present := f["dueDate"]; !present {
				t.Error("Expected dueDate window filter")
			}
			return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
		},
	}
	store := storage.NewBillStore(&mockProvider{col: col})

	if _, err := store.FindOpenNear(context.Background(), repository.OpenBillQuery{
		UserID: primitive.NewObjectID(), SeriesID: seriesID, Name: "NETFLIX", Around: time.Now(), WindowDays: 5,
	}); err != nil {
		t.Fatalf("FindOpenNear returned error: %v", err)
	}
}

func TestBillStoreFindByTxEmptyID(t *testing.T) {
	called := false
	col := &mockCollection{
		findOneFunc: func(context.Context, interface{}, ...*options.FindOneOptions) *mongo.SingleResult {
			called = true
			return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
		},
	}
	store := storage.NewBillStore(&mockProvider{col: col})

	bill, err := store.FindByTx(context.Background(), primitive.NewObjectID(), "")
	if err != nil || bill != nil {
		t.Fatalf("Expected nil, nil; got %+v, %v", bill, err)
	}
	if called {
		t.Error("Expected no query for an empty transaction id")
	}
}

func TestLedgerStoreGetByRefFilters(t *testing.T) {
	localID := primitive.NewObjectID()

	tests := []struct {
		name    string
		ref     model.TxRef
		wantKey string
	}{
		{"local ref queries by _id", model.LocalTxRef(localID), "_id"},
		{"external ref queries by externalId", model.ParseTxRef("stmt-ext-42"), "externalId"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			col := &mockCollection{
				findOneFunc: func(_ context.Context, filter interface{}, _ ...*options.FindOneOptions) *mongo.SingleResult {
					f, ok := filter.(bson.M)
					if !ok {
						t.Fatalf("Expected bson.M filter, got %T", filter)
					}
					if _, present := f[tc.wantKey]; !present {
						t.Errorf("Expected filter key %q, got %v", tc.wantKey, f)
					}
					return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
				},
			}
			store := storage.NewLedgerStore(&mockProvider{col: col})

			tx, err := store.GetByRef(context.Background(), primitive.NewObjectID(), tc.ref)
			if err != nil || tx != nil {
				t.Fatalf("Expected nil, nil; got %+v, %v", tx, err)
			}
		})
	}
}

func TestFeedSourceFormatsDates(t *testing.T) {
	userID := primitive.NewObjectID()
	doc := model.LedgerTransaction{
		ID:       primitive.NewObjectID(),
		UserID:   userID,
		Type:     model.TxExpense,
		Amount:   15.49,
		Date:     time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC),
		Merchant: "NETFLIX",
		Source:   "sync",
	}

	col := &mockCollection{
		findFunc: func(_ context.Context, filter interface{}, _ ...*options.FindOptions) (*mongo.Cursor, error) {
			f, ok := filter.(bson.M)
			if !ok {
				t.Fatalf("Expected bson.M filter, got %T", filter)
			}
			if f["userId"] != userID {
				t.Errorf("Expected userId filter, got %v", f["userId"])
			}
			return mongo.NewCursorFromDocuments([]interface{}{doc}, nil, nil)
		},
	}
	source := storage.NewFeedSource(&mockProvider{col: col})

	records, err := source.Find(context.Background(), repository.TransactionFilter{UserID: userID})
	if err != nil {
		t.Fatalf("Find returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Date != "2025-06-15" {
		t.Errorf("Expected formatted date 2025-06-15, got %q", records[0].Date)
	}
	if records[0].Merchant != "NETFLIX" {
		t.Errorf("Expected merchant NETFLIX, got %q", records[0].Merchant)
	}
}
