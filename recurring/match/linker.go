// Package match records user-confirmed occurrences (bill paid, paycheck
// hit), links them to ledger transactions, and repairs missing links via
// the backfill reconciler.
package match

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/recurring/detect"
	"babylon/recurring/recurring/errs"
	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
)

// DefaultMatchWindowDays is the ± window around the confirmation date when
// searching for the open bill being paid.
const DefaultMatchWindowDays = 7

// confirmedConfidence is the linkage confidence recorded for an explicit
// user or ledger-sync confirmation.
const confirmedConfidence = 1.0

// BillMatch is the normalized bill-confirmation request.
type BillMatch struct {
	TxID        string
	Amount      *float64
	Date        time.Time // zero means now
	SeriesID    string    // optional series object id hex
	Name        string
	Merchant    string
	AccountID   string
	AccountName string
}

// PaycheckMatch is the normalized paycheck-confirmation request.
type PaycheckMatch struct {
	TxID         string
	Amount       float64
	Date         time.Time // zero means now
	SeriesID     string
	AccountID    string
	AccountName  string
	EmployerName string
}

// Linker records confirmed occurrences and resolves their ledger linkage.
type Linker struct {
	Series     repository.SeriesStore
	Bills      repository.BillStore
	Paychecks  repository.PaycheckStore
	Ledger     repository.LedgerStore
	WindowDays int
	Currency   string
	Now        func() time.Time
}

// NewLinker wires a Linker from its stores.
func NewLinker(
	series repository.SeriesStore,
	bills repository.BillStore,
	paychecks repository.PaycheckStore,
	ledger repository.LedgerStore,
	windowDays int,
	currency string,
) *Linker {
	if windowDays <= 0 {
		windowDays = DefaultMatchWindowDays
	}

	return &Linker{
		Series:     series,
		Bills:      bills,
		Paychecks:  paychecks,
		Ledger:     ledger,
		WindowDays: windowDays,
		Currency:   currency,
		Now:        time.Now,
	}
}

// MatchBill marks a bill occurrence paid and links it to a ledger
// transaction, creating the bill and/or the transaction when absent.
// Calling it twice with the same txId updates the same bill in place.
func (l *Linker) MatchBill(ctx context.Context, userID primitive.ObjectID, req BillMatch) (model.Bill, primitive.ObjectID, error) {
	if req.TxID == "" {
		return model.Bill{}, primitive.NilObjectID, errs.ValidationError("txId", "is required")
	}

	date := req.Date
	if date.IsZero() {
		date = l.Now().UTC()
	}

	series, err := l.resolveSeries(ctx, userID, req.SeriesID)
	if err != nil {
		return model.Bill{}, primitive.NilObjectID, err
	}

	bill, err := l.upsertPaidBill(ctx, userID, req, series, date)
	if err != nil {
		return model.Bill{}, primitive.NilObjectID, err
	}

	if series != nil {
		if err := l.bumpSeries(ctx, series, date); err != nil {
			return model.Bill{}, primitive.NilObjectID, err
		}
	}

	link := model.Linkage{MatchedBillID: bill.ID, MatchConfidence: confirmedConfidence}
	if !bill.SeriesID.IsZero() {
		link.MatchedRecurringID = bill.SeriesID
	}
	txID, err := l.resolveLedger(ctx, userID, req.TxID, ledgerDetails{
		Type:        model.TxExpense,
		Amount:      bill.Amount,
		Date:        date,
		Description: bill.Name,
		Merchant:    bill.Merchant,
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
	}, link)
	if err != nil {
		return model.Bill{}, primitive.NilObjectID, err
	}

	return bill, txID, nil
}

// upsertPaidBill locates the bill the confirmation belongs to, preferring
// the transaction-id linkage over date proximity, and leaves it in paid
// status with the confirmed amount and date.
func (l *Linker) upsertPaidBill(
	ctx context.Context,
	userID primitive.ObjectID,
	req BillMatch,
	series *model.RecurringSeries,
	date time.Time,
) (model.Bill, error) {
	bill, err := l.Bills.FindByTx(ctx, userID, req.TxID)
	if err != nil {
		return model.Bill{}, fmt.Errorf("failed to look up bill by transaction id: %w", err)
	}

	if bill == nil {
		query := repository.OpenBillQuery{
			UserID:     userID,
			Name:       req.Name,
			Around:     date,
			WindowDays: l.WindowDays,
		}
		if series != nil {
			query.SeriesID = series.ID
			query.Name = series.Name
		}
		bill, err = l.Bills.FindOpenNear(ctx, query)
		if err != nil {
			return model.Bill{}, fmt.Errorf("failed to search open bills: %w", err)
		}
	}

	if bill == nil {
		created := model.Bill{
			UserID:   userID,
			Name:     billName(req, series),
			Merchant: req.Merchant,
			Currency: l.Currency,
			DueDate:  date,
			Status:   model.BillPaid,
			TxID:     req.TxID,
			PaidAt:   date,
		}
		if series != nil {
			created.SeriesID = series.ID
			if created.Merchant == "" {
				created.Merchant = series.Merchant
			}
			created.Amount = series.AmountHint
		}
		if req.Amount != nil {
			created.Amount = *req.Amount
		}

		stored, insErr := l.Bills.Insert(ctx, created)
		if insErr != nil {
			return model.Bill{}, fmt.Errorf("failed to create paid bill: %w", insErr)
		}

		return stored, nil
	}

	bill.Status = model.BillPaid
	bill.PaidAt = date
	bill.TxID = req.TxID
	if req.Amount != nil {
		bill.Amount = *req.Amount
	}
	if series != nil && bill.SeriesID.IsZero() {
		bill.SeriesID = series.ID
	}
	if err := l.Bills.Update(ctx, *bill); err != nil {
		return model.Bill{}, fmt.Errorf("failed to update bill %s: %w", bill.ID.Hex(), err)
	}

	return *bill, nil
}

// MatchPaycheck records a confirmed income event. Hits are append-only;
// only a repeat call with the same txId updates the existing hit instead
// of adding another.
func (l *Linker) MatchPaycheck(ctx context.Context, userID primitive.ObjectID, req PaycheckMatch) (model.PaycheckHit, primitive.ObjectID, error) {
	if req.TxID == "" {
		return model.PaycheckHit{}, primitive.NilObjectID, errs.ValidationError("txId", "is required")
	}
	if req.Amount <= 0 || math.IsInf(req.Amount, 0) || math.IsNaN(req.Amount) {
		return model.PaycheckHit{}, primitive.NilObjectID, errs.ValidationError("amount", "must be a positive finite number")
	}

	date := req.Date
	if date.IsZero() {
		date = l.Now().UTC()
	}

	series, err := l.resolveSeries(ctx, userID, req.SeriesID)
	if err != nil {
		return model.PaycheckHit{}, primitive.NilObjectID, err
	}

	hit, err := l.Paychecks.FindByTx(ctx, userID, req.TxID)
	if err != nil {
		return model.PaycheckHit{}, primitive.NilObjectID, fmt.Errorf("failed to look up paycheck by transaction id: %w", err)
	}

	if hit == nil {
		created := model.PaycheckHit{
			UserID:       userID,
			Amount:       req.Amount,
			Date:         date,
			AccountID:    req.AccountID,
			EmployerName: req.EmployerName,
			TxID:         req.TxID,
		}
		if series != nil {
			created.SeriesID = series.ID
			if created.EmployerName == "" {
				created.EmployerName = series.Name
			}
		}
		stored, insErr := l.Paychecks.Insert(ctx, created)
		if insErr != nil {
			return model.PaycheckHit{}, primitive.NilObjectID, fmt.Errorf("failed to record paycheck hit: %w", insErr)
		}
		hit = &stored
	} else {
		hit.Amount = req.Amount
		hit.Date = date
		if req.EmployerName != "" {
			hit.EmployerName = req.EmployerName
		}
		if err := l.Paychecks.Update(ctx, *hit); err != nil {
			return model.PaycheckHit{}, primitive.NilObjectID, fmt.Errorf("failed to update paycheck hit %s: %w", hit.ID.Hex(), err)
		}
	}

	if series != nil {
		if err := l.bumpSeries(ctx, series, date); err != nil {
			return model.PaycheckHit{}, primitive.NilObjectID, err
		}
	}

	link := model.Linkage{MatchedPaycheckID: hit.ID, MatchConfidence: confirmedConfidence}
	if !hit.SeriesID.IsZero() {
		link.MatchedRecurringID = hit.SeriesID
	}
	txID, err := l.resolveLedger(ctx, userID, req.TxID, ledgerDetails{
		Type:        model.TxIncome,
		Amount:      hit.Amount,
		Date:        date,
		Description: hit.EmployerName,
		AccountID:   req.AccountID,
		AccountName: req.AccountName,
	}, link)
	if err != nil {
		return model.PaycheckHit{}, primitive.NilObjectID, err
	}

	return *hit, txID, nil
}

// resolveSeries loads the referenced series, or nil when none was given.
func (l *Linker) resolveSeries(ctx context.Context, userID primitive.ObjectID, seriesID string) (*model.RecurringSeries, error) {
	if seriesID == "" {
		return nil, nil
	}

	id, err := primitive.ObjectIDFromHex(seriesID)
	if err != nil {
		return nil, errs.ValidationError("seriesId", "is not a valid id")
	}

	series, err := l.Series.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return &series, nil
}

// bumpSeries advances lastSeen/nextDue after a confirmed occurrence.
// Confirmations can arrive out of order from backfills; lastSeen never
// moves backwards.
func (l *Linker) bumpSeries(ctx context.Context, series *model.RecurringSeries, occurred time.Time) error {
	if occurred.After(series.LastSeen) {
		series.LastSeen = occurred
	}
	series.NextDue = detect.BumpNextDue(series.LastSeen, series.Cadence, series.DayOfMonth)
	series.Active = true
	series.UpdatedAt = l.Now().UTC()

	if err := l.Series.Update(ctx, *series); err != nil {
		return fmt.Errorf("failed to advance series %s: %w", series.ID.Hex(), err)
	}

	return nil
}

// ledgerDetails describes the transaction to synthesize when the ledger
// has no record of a confirmed occurrence.
type ledgerDetails struct {
	Type        model.TxType
	Amount      float64
	Date        time.Time
	Description string
	Merchant    string
	AccountID   string
	AccountName string
}

// resolveLedger patches linkage onto the referenced ledger transaction, or
// synthesizes a manual one so downstream ledger views stay consistent.
func (l *Linker) resolveLedger(
	ctx context.Context,
	userID primitive.ObjectID,
	rawTxID string,
	details ledgerDetails,
	link model.Linkage,
) (primitive.ObjectID, error) {
	ref := model.ParseTxRef(rawTxID)

	tx, err := l.Ledger.GetByRef(ctx, userID, ref)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to resolve ledger transaction %q: %w", rawTxID, err)
	}

	if tx == nil {
		// A transaction synthesized by an earlier call for the same
		// occurrence is findable through its linkage even when the
		// original reference never resolved.
		tx, err = l.Ledger.FindByLinkage(ctx, userID, link)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("failed to search ledger by linkage: %w", err)
		}
	}

	if tx != nil {
		if err := l.Ledger.PatchLinkage(ctx, userID, tx.ID, link); err != nil {
			return primitive.NilObjectID, fmt.Errorf("failed to patch ledger transaction %s: %w", tx.ID.Hex(), err)
		}

		return tx.ID, nil
	}

	externalID := ref.External()
	if externalID == "" {
		externalID = uuid.NewString()
	}
	created, err := l.Ledger.Insert(ctx, model.LedgerTransaction{
		UserID:      userID,
		ExternalID:  externalID,
		Type:        details.Type,
		Amount:      details.Amount,
		Date:        details.Date,
		Description: details.Description,
		Merchant:    details.Merchant,
		AccountID:   details.AccountID,
		AccountName: details.AccountName,
		Source:      "manual",
		Linkage:     link,
	})
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to synthesize ledger transaction: %w", err)
	}

	return created.ID, nil
}

// billName picks the display name for a bill created directly in paid
// status.
func billName(req BillMatch, series *model.RecurringSeries) string {
	if req.Name != "" {
		return req.Name
	}
	if series != nil {
		return series.Name
	}
	if req.Merchant != "" {
		return req.Merchant
	}

	return "Bill"
}
