package detect

import (
	"context"
	"fmt"

	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
)

// Scheduler constants.
const (
	// DefaultScheduleWindowDays is the ± window around a series' next due
	// date when searching for an existing open bill.
	DefaultScheduleWindowDays = 5
	// ScheduleAmountTolerance is the drift allowed before a scheduled
	// bill's amount is rewritten. Wider than the cluster tolerance since
	// scheduled amounts may drift, e.g. variable utility bills.
	ScheduleAmountTolerance = 0.30
)

// Scheduler creates or updates the open Bill row for expense-kind series.
// Subscription-kind series schedule identically to bills; paycheck-kind
// series never produce Bill rows.
type Scheduler struct {
	Bills      repository.BillStore
	WindowDays int
	Currency   string
}

// NewScheduler creates a Scheduler over the given store.
func NewScheduler(bills repository.BillStore, windowDays int, currency string) *Scheduler {
	if windowDays <= 0 {
		windowDays = DefaultScheduleWindowDays
	}

	return &Scheduler{Bills: bills, WindowDays: windowDays, Currency: currency}
}

// Schedule ensures one open bill exists near the series' next due date.
// It returns the bill it created or updated, or nil for paycheck series.
func (s *Scheduler) Schedule(ctx context.Context, series model.RecurringSeries) (*model.Bill, error) {
	if series.Kind == model.KindPaycheck {
		return nil, nil
	}

	existing, err := s.Bills.FindOpenNear(ctx, repository.OpenBillQuery{
		UserID:     series.UserID,
		SeriesID:   series.ID,
		Name:       series.Name,
		Around:     series.NextDue,
		WindowDays: s.WindowDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search open bills for series %q: %w", series.Name, err)
	}

	if existing != nil {
		if !AmountWithin(series.AmountHint, existing.Amount, ScheduleAmountTolerance) {
			existing.Amount = series.AmountHint
		}
		if existing.Status == model.BillPredicted {
			existing.Status = model.BillDue
		}
		if existing.SeriesID.IsZero() {
			existing.SeriesID = series.ID
		}
		if err := s.Bills.Update(ctx, *existing); err != nil {
			return nil, fmt.Errorf("failed to update bill for series %q: %w", series.Name, err)
		}

		return existing, nil
	}

	bill := model.Bill{
		UserID:   series.UserID,
		SeriesID: series.ID,
		Name:     series.Name,
		Merchant: series.Merchant,
		Amount:   series.AmountHint,
		Currency: s.Currency,
		DueDate:  series.NextDue,
		Status:   model.BillDue,
	}
	created, err := s.Bills.Insert(ctx, bill)
	if err != nil {
		return nil, fmt.Errorf("failed to create bill for series %q: %w", series.Name, err)
	}

	return &created, nil
}
