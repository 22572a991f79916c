// Package model holds the domain entities of the recurring-finance core.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SeriesKind classifies a recurring series.
type SeriesKind string

// Series kinds.
const (
	KindBill         SeriesKind = "bill"
	KindSubscription SeriesKind = "subscription"
	KindPaycheck     SeriesKind = "paycheck"
)

// Cadence is the inferred recurrence period of a series.
type Cadence string

// Cadence values.
const (
	CadenceWeekly      Cadence = "weekly"
	CadenceBiweekly    Cadence = "biweekly"
	CadenceSemimonthly Cadence = "semimonthly"
	CadenceMonthly     Cadence = "monthly"
	CadenceQuarterly   Cadence = "quarterly"
	CadenceYearly      Cadence = "yearly"
	CadenceUnknown     Cadence = "unknown"
)

// BillStatus is the lifecycle state of a Bill occurrence.
type BillStatus string

// Bill statuses. The core never sets skipped itself; that transition is
// left to the caller once a due date passes with no match.
const (
	BillPredicted BillStatus = "predicted"
	BillDue       BillStatus = "due"
	BillPaid      BillStatus = "paid"
	BillSkipped   BillStatus = "skipped"
)

// TxType is the direction of a ledger transaction.
type TxType string

// Transaction types.
const (
	TxIncome  TxType = "income"
	TxExpense TxType = "expense"
)

// RecurringSeries is one inferred recurring pattern per user. There is at
// most one active series per (UserID, Name, Kind); series are deactivated,
// never deleted.
type RecurringSeries struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Kind       SeriesKind         `bson:"kind" json:"kind"`
	Name       string             `bson:"name" json:"name"`
	Merchant   string             `bson:"merchant,omitempty" json:"merchant,omitempty"`
	Cadence    Cadence            `bson:"cadence" json:"cadence"`
	DayOfMonth int                `bson:"dayOfMonth,omitempty" json:"dayOfMonth,omitempty"`
	Weekday    int                `bson:"weekday,omitempty" json:"weekday,omitempty"`
	AmountHint float64            `bson:"amountHint" json:"amountHint"`
	Active     bool               `bson:"active" json:"active"`
	LastSeen   time.Time          `bson:"lastSeen" json:"lastSeen"`
	NextDue    time.Time          `bson:"nextDue" json:"nextDue"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Bill is one concrete expected or observed occurrence of a bill-kind or
// subscription-kind series. SeriesID is zero for manual bills.
type Bill struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	SeriesID primitive.ObjectID `bson:"seriesId,omitempty" json:"seriesId,omitempty"`
	Name     string             `bson:"name" json:"name"`
	Merchant string             `bson:"merchant,omitempty" json:"merchant,omitempty"`
	Amount   float64            `bson:"amount" json:"amount"`
	Currency string             `bson:"currency" json:"currency"`
	DueDate  time.Time          `bson:"dueDate" json:"dueDate"`
	Status   BillStatus         `bson:"status" json:"status"`
	TxID     string             `bson:"txId,omitempty" json:"txId,omitempty"`
	PaidAt   time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

// PaycheckHit is an append-only confirmed income event for a paycheck-kind
// series. Existence implies "occurred"; there is no status field.
type PaycheckHit struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	SeriesID     primitive.ObjectID `bson:"seriesId,omitempty" json:"seriesId,omitempty"`
	Amount       float64            `bson:"amount" json:"amount"`
	Date         time.Time          `bson:"date" json:"date"`
	AccountID    string             `bson:"accountId,omitempty" json:"accountId,omitempty"`
	EmployerName string             `bson:"employerName,omitempty" json:"employerName,omitempty"`
	TxID         string             `bson:"txId,omitempty" json:"txId,omitempty"`
}

// Linkage holds the four fields on a ledger transaction that tie it back to
// derived recurring records.
type Linkage struct {
	MatchedBillID      primitive.ObjectID `bson:"matchedBillId,omitempty" json:"matchedBillId,omitempty"`
	MatchedPaycheckID  primitive.ObjectID `bson:"matchedPaycheckId,omitempty" json:"matchedPaycheckId,omitempty"`
	MatchedRecurringID primitive.ObjectID `bson:"matchedRecurringId,omitempty" json:"matchedRecurringId,omitempty"`
	MatchConfidence    float64            `bson:"matchConfidence,omitempty" json:"matchConfidence,omitempty"`
}

// LedgerTransaction mirrors the ledger collaborator's entity. The core only
// creates manual transactions and patches Linkage; it never edits the rest.
type LedgerTransaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	ExternalID  string             `bson:"externalId,omitempty" json:"externalId,omitempty"`
	Type        TxType             `bson:"type" json:"type"`
	Amount      float64            `bson:"amount" json:"amount"`
	Date        time.Time          `bson:"date" json:"date"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Merchant    string             `bson:"merchant,omitempty" json:"merchant,omitempty"`
	AccountID   string             `bson:"accountId,omitempty" json:"accountId,omitempty"`
	AccountName string             `bson:"accountName,omitempty" json:"accountName,omitempty"`
	Source      string             `bson:"source" json:"source"`
	Linkage     `bson:",inline"`
}

// TransactionRecord is one row of the read-only transaction feed consumed
// by detection. Date stays a string at this boundary; records whose dates
// do not parse are dropped individually during clustering.
type TransactionRecord struct {
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Type        TxType             `bson:"type" json:"type"`
	Amount      float64            `bson:"amount" json:"amount"`
	Date        string             `bson:"date" json:"date"`
	Merchant    string             `bson:"merchant,omitempty" json:"merchant,omitempty"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	AccountID   string             `bson:"accountId,omitempty" json:"accountId,omitempty"`
	Source      string             `bson:"source,omitempty" json:"source,omitempty"`
}
