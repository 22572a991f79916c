// Package storage implements the repository interfaces over MongoDB.
package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"babylon/recurring/appcontext"
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "babylon"

// Collection names.
const (
	SeriesCollection       = "recurring_series"
	BillsCollection        = "bills"
	PaychecksCollection    = "paychecks"
	TransactionsCollection = "transactions"
)

// ---- Abstractions for Testability ----

// Collection defines the subset of collection operations the stores use.
// *mongo.Collection satisfies it directly; tests substitute mocks built on
// mongo.NewSingleResultFromDocument and mongo.NewCursorFromDocuments.
type Collection interface {
	Find(
		ctx context.Context,
		filter interface{},
		opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(
		ctx context.Context,
		filter interface{},
		opts ...*options.FindOneOptions) *mongo.SingleResult
	FindOneAndUpdate(
		ctx context.Context,
		filter interface{},
		update interface{},
		opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	InsertOne(
		ctx context.Context,
		document interface{},
		opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(
		ctx context.Context,
		filter interface{},
		update interface{},
		opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// CollectionProvider defines the interface for obtaining a collection.
type CollectionProvider interface {
	Collection(name string) Collection
}

// MongoProvider adapts *mongo.Client to CollectionProvider.
type MongoProvider struct {
	client *mongo.Client
	dbName string
}

// NewMongoProvider creates a new MongoProvider. An empty dbName selects
// the default database.
func NewMongoProvider(client *mongo.Client, dbName string) *MongoProvider {
	if dbName == "" {
		dbName = DefaultDatabase
	}

	return &MongoProvider{client: client, dbName: dbName}
}

// Collection returns a Collection for the given collection name.
func (p *MongoProvider) Collection(name string) Collection {
	return p.client.Database(p.dbName).Collection(name)
}

// ConnectToMongoDB establishes a connection to MongoDB.
func ConnectToMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "Attempting to connect to MongoDB", "uri", uri)

	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.InfoContext(ctx, "Successfully established connection to MongoDB")
	return client, nil
}
