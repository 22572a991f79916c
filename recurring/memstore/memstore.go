// Package memstore provides in-memory implementations of the repository
// interfaces. Tests run the full pipeline against it, and the CSV detect
// mode uses it as a throwaway store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/recurring/errs"
	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
)

// Store holds all collections behind one mutex. Each repository interface
// is exposed as a facet over the same data. The zero value is not usable;
// call New.
type Store struct {
	mu           sync.Mutex
	series       map[primitive.ObjectID]model.RecurringSeries
	bills        map[primitive.ObjectID]model.Bill
	paychecks    map[primitive.ObjectID]model.PaycheckHit
	transactions map[primitive.ObjectID]model.LedgerTransaction
	feed         []model.TransactionRecord
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		series:       make(map[primitive.ObjectID]model.RecurringSeries),
		bills:        make(map[primitive.ObjectID]model.Bill),
		paychecks:    make(map[primitive.ObjectID]model.PaycheckHit),
		transactions: make(map[primitive.ObjectID]model.LedgerTransaction),
	}
}

// Series returns the SeriesStore facet.
func (s *Store) Series() repository.SeriesStore { return seriesFacet{s} }

// Bills returns the BillStore facet.
func (s *Store) Bills() repository.BillStore { return billFacet{s} }

// Paychecks returns the PaycheckStore facet.
func (s *Store) Paychecks() repository.PaycheckStore { return paycheckFacet{s} }

// Ledger returns the LedgerStore facet.
func (s *Store) Ledger() repository.LedgerStore { return ledgerFacet{s} }

// SeedFeed appends records to the transaction feed served by Find.
func (s *Store) SeedFeed(records ...model.TransactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed = append(s.feed, records...)
}

// feedLayouts mirror the layouts the detection pipeline accepts.
var feedLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

// Find implements repository.TransactionSource. Records whose dates do not
// parse pass the Since filter so the pipeline can drop them itself.
func (s *Store) Find(_ context.Context, filter repository.TransactionFilter) ([]model.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.TransactionRecord
	for _, rec := range s.feed {
		if rec.UserID != filter.UserID {
			continue
		}
		if filter.Type != "" && rec.Type != filter.Type {
			continue
		}
		if filter.AccountID != "" && rec.AccountID != filter.AccountID {
			continue
		}
		if !filter.Since.IsZero() {
			if date, ok := parseFeedDate(rec.Date); ok && date.Before(filter.Since) {
				continue
			}
		}
		out = append(out, rec)
	}

	return out, nil
}

func parseFeedDate(raw string) (time.Time, bool) {
	for _, layout := range feedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// ---- SeriesStore facet ----

type seriesFacet struct{ s *Store }

// Upsert performs the atomic insert-if-absent keyed by (user, name, kind);
// the store mutex stands in for the database's conditional write.
func (f seriesFacet) Upsert(_ context.Context, series model.RecurringSeries) (model.RecurringSeries, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	for id, existing := range f.s.series {
		if existing.UserID == series.UserID && existing.Name == series.Name &&
			existing.Kind == series.Kind && existing.Active {
			existing.Merchant = series.Merchant
			existing.Cadence = series.Cadence
			existing.AmountHint = series.AmountHint
			existing.DayOfMonth = series.DayOfMonth
			existing.Weekday = series.Weekday
			existing.LastSeen = series.LastSeen
			existing.NextDue = series.NextDue
			existing.Active = true
			existing.UpdatedAt = series.UpdatedAt
			f.s.series[id] = existing

			return existing, nil
		}
	}

	series.ID = primitive.NewObjectID()
	f.s.series[series.ID] = series

	return series, nil
}

func (f seriesFacet) GetByID(_ context.Context, userID, id primitive.ObjectID) (model.RecurringSeries, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	series, ok := f.s.series[id]
	if !ok || series.UserID != userID {
		return model.RecurringSeries{}, errs.NotFoundError("series", id.Hex())
	}

	return series, nil
}

func (f seriesFacet) Update(_ context.Context, series model.RecurringSeries) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if _, ok := f.s.series[series.ID]; !ok {
		return errs.NotFoundError("series", series.ID.Hex())
	}
	f.s.series[series.ID] = series

	return nil
}

// SeriesByKey returns the active series for a key, for test assertions.
func (s *Store) SeriesByKey(userID primitive.ObjectID, name string, kind model.SeriesKind) (model.RecurringSeries, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, series := range s.series {
		if series.UserID == userID && series.Name == name && series.Kind == kind && series.Active {
			return series, true
		}
	}

	return model.RecurringSeries{}, false
}

// SeriesCount returns the number of stored series.
func (s *Store) SeriesCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.series)
}

// ---- BillStore facet ----

type billFacet struct{ s *Store }

func (f billFacet) Insert(_ context.Context, b model.Bill) (model.Bill, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	b.ID = primitive.NewObjectID()
	f.s.bills[b.ID] = b

	return b, nil
}

func (f billFacet) Update(_ context.Context, b model.Bill) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if _, ok := f.s.bills[b.ID]; !ok {
		return errs.NotFoundError("bill", b.ID.Hex())
	}
	f.s.bills[b.ID] = b

	return nil
}

func (f billFacet) FindOpenNear(_ context.Context, q repository.OpenBillQuery) (*model.Bill, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	lo := q.Around.AddDate(0, 0, -q.WindowDays)
	hi := q.Around.AddDate(0, 0, q.WindowDays)

	for _, b := range sortedBills(f.s.bills) {
		if b.UserID != q.UserID {
			continue
		}
		if b.Status != model.BillDue && b.Status != model.BillPredicted {
			continue
		}
		if !q.SeriesID.IsZero() {
			if b.SeriesID != q.SeriesID {
				continue
			}
		} else if q.Name == "" || b.Name != q.Name {
			continue
		}
		if b.DueDate.Before(lo) || b.DueDate.After(hi) {
			continue
		}
		found := b

		return &found, nil
	}

	return nil, nil
}

func (f billFacet) FindByTx(_ context.Context, userID primitive.ObjectID, txID string) (*model.Bill, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if txID == "" {
		return nil, nil
	}
	for _, b := range sortedBills(f.s.bills) {
		if b.UserID == userID && b.TxID == txID {
			found := b

			return &found, nil
		}
	}

	return nil, nil
}

func (f billFacet) ListUpcoming(_ context.Context, userID primitive.ObjectID, until time.Time) ([]model.Bill, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	var out []model.Bill
	for _, b := range f.s.bills {
		if b.UserID != userID {
			continue
		}
		if b.Status != model.BillDue && b.Status != model.BillPredicted {
			continue
		}
		if b.DueDate.After(until) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })

	return out, nil
}

func (f billFacet) ListPaidSince(_ context.Context, userID primitive.ObjectID, since time.Time) ([]model.Bill, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	var out []model.Bill
	for _, b := range f.s.bills {
		if b.UserID != userID || b.Status != model.BillPaid {
			continue
		}
		if b.PaidAt.Before(since) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })

	return out, nil
}

// BillCount returns the number of stored bills.
func (s *Store) BillCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.bills)
}

// AllBills returns every stored bill, sorted by id for stable test output.
func (s *Store) AllBills() []model.Bill {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortedBills(s.bills)
}

func sortedBills(m map[primitive.ObjectID]model.Bill) []model.Bill {
	out := make([]model.Bill, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })

	return out
}

// ---- PaycheckStore facet ----

type paycheckFacet struct{ s *Store }

func (f paycheckFacet) Insert(_ context.Context, h model.PaycheckHit) (model.PaycheckHit, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	h.ID = primitive.NewObjectID()
	f.s.paychecks[h.ID] = h

	return h, nil
}

func (f paycheckFacet) Update(_ context.Context, h model.PaycheckHit) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if _, ok := f.s.paychecks[h.ID]; !ok {
		return errs.NotFoundError("paycheck", h.ID.Hex())
	}
	f.s.paychecks[h.ID] = h

	return nil
}

func (f paycheckFacet) FindByTx(_ context.Context, userID primitive.ObjectID, txID string) (*model.PaycheckHit, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if txID == "" {
		return nil, nil
	}
	for _, h := range f.s.paychecks {
		if h.UserID == userID && h.TxID == txID {
			found := h

			return &found, nil
		}
	}

	return nil, nil
}

func (f paycheckFacet) ListSince(_ context.Context, userID primitive.ObjectID, since time.Time) ([]model.PaycheckHit, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	var out []model.PaycheckHit
	for _, h := range f.s.paychecks {
		if h.UserID != userID || h.Date.Before(since) {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })

	return out, nil
}

// PaycheckCount returns the number of stored paycheck hits.
func (s *Store) PaycheckCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.paychecks)
}

// ---- LedgerStore facet ----

type ledgerFacet struct{ s *Store }

func (f ledgerFacet) GetByRef(_ context.Context, userID primitive.ObjectID, ref model.TxRef) (*model.LedgerTransaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	if ref.IsLocal() {
		tx, ok := f.s.transactions[ref.Local()]
		if !ok || tx.UserID != userID {
			return nil, nil
		}
		found := tx

		return &found, nil
	}

	if ref.External() == "" {
		return nil, nil
	}
	for _, tx := range f.s.transactions {
		if tx.UserID == userID && tx.ExternalID == ref.External() {
			found := tx

			return &found, nil
		}
	}

	return nil, nil
}

func (f ledgerFacet) FindByLinkage(_ context.Context, userID primitive.ObjectID, link model.Linkage) (*model.LedgerTransaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	for _, tx := range f.s.transactions {
		if tx.UserID != userID {
			continue
		}
		if !link.MatchedBillID.IsZero() && tx.MatchedBillID == link.MatchedBillID {
			found := tx

			return &found, nil
		}
		if !link.MatchedPaycheckID.IsZero() && tx.MatchedPaycheckID == link.MatchedPaycheckID {
			found := tx

			return &found, nil
		}
	}

	return nil, nil
}

func (f ledgerFacet) PatchLinkage(_ context.Context, userID, id primitive.ObjectID, link model.Linkage) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	tx, ok := f.s.transactions[id]
	if !ok || tx.UserID != userID {
		return errs.NotFoundError("transaction", id.Hex())
	}
	tx.Linkage = link
	f.s.transactions[id] = tx

	return nil
}

func (f ledgerFacet) Insert(_ context.Context, tx model.LedgerTransaction) (model.LedgerTransaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	tx.ID = primitive.NewObjectID()
	f.s.transactions[tx.ID] = tx

	return tx, nil
}

// SeedTransaction stores a ledger transaction directly, for tests.
func (s *Store) SeedTransaction(tx model.LedgerTransaction) model.LedgerTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID.IsZero() {
		tx.ID = primitive.NewObjectID()
	}
	s.transactions[tx.ID] = tx

	return tx
}

// TransactionCount returns the number of stored ledger transactions.
func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.transactions)
}

// AllTransactions returns every stored ledger transaction, sorted by id.
func (s *Store) AllTransactions() []model.LedgerTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.LedgerTransaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })

	return out
}
