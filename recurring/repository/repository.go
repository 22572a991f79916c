// Package repository defines the store interfaces injected into the
// recurring core. Implementations exist for MongoDB (storage) and in
// memory (memstore); the core never talks to a database driver directly.
//
// Convention: Find* methods return (nil, nil) when nothing matches. Get*
// methods return a not-found error for dangling references.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/recurring/model"
)

// TransactionFilter narrows the read-only transaction feed.
type TransactionFilter struct {
	UserID    primitive.ObjectID
	Type      model.TxType // empty matches both directions
	Since     time.Time    // zero means no lower bound
	AccountID string
}

// TransactionSource is the ledger's read-only transaction feed.
type TransactionSource interface {
	Find(ctx context.Context, filter TransactionFilter) ([]model.TransactionRecord, error)
}

// SeriesStore persists inferred recurring series.
type SeriesStore interface {
	// Upsert inserts or updates the one active series keyed by
	// (UserID, Name, Kind) as a single atomic conditional write, so two
	// concurrent detection runs for the same user cannot create
	// duplicates. The stored state after the write is returned.
	Upsert(ctx context.Context, s model.RecurringSeries) (model.RecurringSeries, error)

	// GetByID returns the series or a not-found error.
	GetByID(ctx context.Context, userID, id primitive.ObjectID) (model.RecurringSeries, error)

	// Update replaces the mutable fields of an existing series.
	Update(ctx context.Context, s model.RecurringSeries) error
}

// OpenBillQuery locates a due/predicted bill near a date.
type OpenBillQuery struct {
	UserID     primitive.ObjectID
	SeriesID   primitive.ObjectID // zero falls back to Name
	Name       string
	Around     time.Time
	WindowDays int
}

// BillStore persists bill occurrences.
type BillStore interface {
	Insert(ctx context.Context, b model.Bill) (model.Bill, error)
	Update(ctx context.Context, b model.Bill) error

	// FindOpenNear returns one bill in status due or predicted whose due
	// date falls within the query window, or nil.
	FindOpenNear(ctx context.Context, q OpenBillQuery) (*model.Bill, error)

	// FindByTx returns the bill already linked to the given transaction
	// id, or nil. This is the idempotency lookup.
	FindByTx(ctx context.Context, userID primitive.ObjectID, txID string) (*model.Bill, error)

	// ListUpcoming returns due/predicted bills with a due date no later
	// than until, sorted by due date ascending.
	ListUpcoming(ctx context.Context, userID primitive.ObjectID, until time.Time) ([]model.Bill, error)

	// ListPaidSince returns paid bills with PaidAt on or after since.
	ListPaidSince(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]model.Bill, error)
}

// PaycheckStore persists the append-only paycheck hit log.
type PaycheckStore interface {
	Insert(ctx context.Context, h model.PaycheckHit) (model.PaycheckHit, error)
	Update(ctx context.Context, h model.PaycheckHit) error

	// FindByTx returns the hit already linked to the given transaction
	// id, or nil.
	FindByTx(ctx context.Context, userID primitive.ObjectID, txID string) (*model.PaycheckHit, error)

	// ListSince returns hits dated on or after since, newest first.
	ListSince(ctx context.Context, userID primitive.ObjectID, since time.Time) ([]model.PaycheckHit, error)
}

// LedgerStore is the write boundary into the ledger collaborator. The core
// may create manual transactions and patch linkage fields, nothing else.
type LedgerStore interface {
	// GetByRef resolves a transaction by local or external id, nil when
	// absent.
	GetByRef(ctx context.Context, userID primitive.ObjectID, ref model.TxRef) (*model.LedgerTransaction, error)

	// FindByLinkage returns a transaction whose linkage already points at
	// the bill or paycheck id set in link, or nil.
	FindByLinkage(ctx context.Context, userID primitive.ObjectID, link model.Linkage) (*model.LedgerTransaction, error)

	// PatchLinkage overwrites the linkage fields of an existing
	// transaction.
	PatchLinkage(ctx context.Context, userID, id primitive.ObjectID, link model.Linkage) error

	Insert(ctx context.Context, tx model.LedgerTransaction) (model.LedgerTransaction, error)
}
