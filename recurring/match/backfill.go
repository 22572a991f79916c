package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/appcontext"
	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
)

// DefaultBackfillDays is the trailing window swept by a reconciliation run.
const DefaultBackfillDays = 90

// BackfillOptions narrows one reconciliation run.
type BackfillOptions struct {
	Days      int
	AccountID string // assigned to transactions the sweep creates
}

// Summary counts the repairs made by one reconciliation run.
type Summary struct {
	BillsCreated int `json:"billsCreated"`
	BillsLinked  int `json:"billsLinked"`
	PaysCreated  int `json:"paysCreated"`
	PaysLinked   int `json:"paysLinked"`
}

// Reconciler repairs missing links between paid bills / paycheck hits and
// ledger transactions. Running it twice over unchanged data reports zero
// creates and zero links on the second run.
type Reconciler struct {
	Bills     repository.BillStore
	Paychecks repository.PaycheckStore
	Ledger    repository.LedgerStore
	Days      int
	Now       func() time.Time
}

// NewReconciler wires a Reconciler from its stores.
func NewReconciler(
	bills repository.BillStore,
	paychecks repository.PaycheckStore,
	ledger repository.LedgerStore,
	days int,
) *Reconciler {
	if days <= 0 {
		days = DefaultBackfillDays
	}

	return &Reconciler{Bills: bills, Paychecks: paychecks, Ledger: ledger, Days: days, Now: time.Now}
}

// Run sweeps paid bills and paycheck hits inside the lookback window. A
// failure on one record is logged and skipped; only store-level failures
// are fatal. It returns the window start and the repair counts.
func (r *Reconciler) Run(ctx context.Context, userID primitive.ObjectID, opts BackfillOptions) (time.Time, Summary, error) {
	logger := appcontext.LoggerFromContext(ctx)

	days := opts.Days
	if days <= 0 {
		days = r.Days
	}
	since := r.Now().UTC().AddDate(0, 0, -days)

	var summary Summary

	bills, err := r.Bills.ListPaidSince(ctx, userID, since)
	if err != nil {
		return time.Time{}, Summary{}, fmt.Errorf("failed to list paid bills: %w", err)
	}
	for _, bill := range bills {
		created, linked, billErr := r.reconcileBill(ctx, userID, bill, opts.AccountID)
		if billErr != nil {
			logger.ErrorContext(ctx, "failed to reconcile bill", "billId", bill.ID.Hex(), "error", billErr)
			continue
		}
		if created {
			summary.BillsCreated++
		}
		if linked {
			summary.BillsLinked++
		}
	}

	hits, err := r.Paychecks.ListSince(ctx, userID, since)
	if err != nil {
		return time.Time{}, Summary{}, fmt.Errorf("failed to list paycheck hits: %w", err)
	}
	for _, hit := range hits {
		created, linked, hitErr := r.reconcilePaycheck(ctx, userID, hit, opts.AccountID)
		if hitErr != nil {
			logger.ErrorContext(ctx, "failed to reconcile paycheck", "paycheckId", hit.ID.Hex(), "error", hitErr)
			continue
		}
		if created {
			summary.PaysCreated++
		}
		if linked {
			summary.PaysLinked++
		}
	}

	r.logSummary(logger, summary)

	return since, summary, nil
}

func (r *Reconciler) reconcileBill(ctx context.Context, userID primitive.ObjectID, bill model.Bill, accountID string) (created, linked bool, err error) {
	want := model.Linkage{MatchedBillID: bill.ID, MatchConfidence: confirmedConfidence}
	if !bill.SeriesID.IsZero() {
		want.MatchedRecurringID = bill.SeriesID
	}

	tx, err := r.findReference(ctx, userID, model.Linkage{MatchedBillID: bill.ID}, bill.TxID)
	if err != nil {
		return false, false, err
	}

	if tx == nil {
		_, err = r.Ledger.Insert(ctx, model.LedgerTransaction{
			UserID:      userID,
			ExternalID:  externalIDFor(bill.TxID),
			Type:        model.TxExpense,
			Amount:      bill.Amount,
			Date:        paidDate(bill),
			Description: bill.Name,
			Merchant:    bill.Merchant,
			AccountID:   accountID,
			Source:      "manual",
			Linkage:     want,
		})
		if err != nil {
			return false, false, fmt.Errorf("failed to create ledger transaction for bill: %w", err)
		}

		return true, false, nil
	}

	if linkageStale(tx.Linkage, want) {
		if err := r.Ledger.PatchLinkage(ctx, userID, tx.ID, want); err != nil {
			return false, false, fmt.Errorf("failed to patch ledger transaction %s: %w", tx.ID.Hex(), err)
		}

		return false, true, nil
	}

	return false, false, nil
}

func (r *Reconciler) reconcilePaycheck(ctx context.Context, userID primitive.ObjectID, hit model.PaycheckHit, accountID string) (created, linked bool, err error) {
	want := model.Linkage{MatchedPaycheckID: hit.ID, MatchConfidence: confirmedConfidence}
	if !hit.SeriesID.IsZero() {
		want.MatchedRecurringID = hit.SeriesID
	}

	tx, err := r.findReference(ctx, userID, model.Linkage{MatchedPaycheckID: hit.ID}, hit.TxID)
	if err != nil {
		return false, false, err
	}

	if tx == nil {
		if accountID == "" {
			accountID = hit.AccountID
		}
		_, err = r.Ledger.Insert(ctx, model.LedgerTransaction{
			UserID:      userID,
			ExternalID:  externalIDFor(hit.TxID),
			Type:        model.TxIncome,
			Amount:      hit.Amount,
			Date:        hit.Date,
			Description: hit.EmployerName,
			AccountID:   accountID,
			Source:      "manual",
			Linkage:     want,
		})
		if err != nil {
			return false, false, fmt.Errorf("failed to create ledger transaction for paycheck: %w", err)
		}

		return true, false, nil
	}

	if linkageStale(tx.Linkage, want) {
		if err := r.Ledger.PatchLinkage(ctx, userID, tx.ID, want); err != nil {
			return false, false, fmt.Errorf("failed to patch ledger transaction %s: %w", tx.ID.Hex(), err)
		}

		return false, true, nil
	}

	return false, false, nil
}

// findReference tries both lookup strategies the surrounding application
// uses: the linkage id first, then the stored transaction id in both its
// local and external interpretations.
func (r *Reconciler) findReference(ctx context.Context, userID primitive.ObjectID, byLink model.Linkage, txID string) (*model.LedgerTransaction, error) {
	tx, err := r.Ledger.FindByLinkage(ctx, userID, byLink)
	if err != nil {
		return nil, fmt.Errorf("failed to search ledger by linkage: %w", err)
	}
	if tx != nil || txID == "" {
		return tx, nil
	}

	tx, err = r.Ledger.GetByRef(ctx, userID, model.ParseTxRef(txID))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ledger transaction %q: %w", txID, err)
	}

	return tx, nil
}

// externalIDFor keeps a record's external transaction id on the ledger
// entry the sweep creates, so a later feed sync reconciles onto it instead
// of duplicating. Local and absent references get a fresh id.
func externalIDFor(txID string) string {
	if id := model.ParseTxRef(txID).External(); id != "" {
		return id
	}

	return uuid.NewString()
}

// linkageStale reports whether a transaction's linkage fields need a
// repair pass to match the derived record.
func linkageStale(have, want model.Linkage) bool {
	if !want.MatchedBillID.IsZero() && have.MatchedBillID != want.MatchedBillID {
		return true
	}
	if !want.MatchedPaycheckID.IsZero() && have.MatchedPaycheckID != want.MatchedPaycheckID {
		return true
	}
	if !want.MatchedRecurringID.IsZero() && have.MatchedRecurringID != want.MatchedRecurringID {
		return true
	}

	return have.MatchConfidence == 0
}

// paidDate prefers the confirmation date, falling back to the due date for
// legacy rows recorded before PaidAt existed.
func paidDate(bill model.Bill) time.Time {
	if !bill.PaidAt.IsZero() {
		return bill.PaidAt
	}

	return bill.DueDate
}

func (r *Reconciler) logSummary(logger *slog.Logger, s Summary) {
	logger.Info("--- Backfill Summary ---")
	logger.Info(fmt.Sprintf("Bills created: %d", s.BillsCreated))
	logger.Info(fmt.Sprintf("Bills linked:  %d", s.BillsLinked))
	logger.Info(fmt.Sprintf("Pays created:  %d", s.PaysCreated))
	logger.Info(fmt.Sprintf("Pays linked:   %d", s.PaysLinked))
	logger.Info("------------------------")
}
