package match

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/recurring/model"
)

// Overview defaults and bounds.
const (
	DefaultHorizonDays = 40
	MaxHorizonDays     = 120
	recentPaycheckDays = 90
)

// OverviewResult holds upcoming bills (due date ascending) and recent
// paycheck hits (date descending).
type OverviewResult struct {
	Bills           []model.Bill        `json:"bills"`
	RecentPaychecks []model.PaycheckHit `json:"recentPaychecks"`
}

// Overview returns the open bills due within the horizon and the paycheck
// hits of the trailing 90 days. horizonDays outside [1,120] falls back to
// the default.
func (l *Linker) Overview(ctx context.Context, userID primitive.ObjectID, horizonDays int) (OverviewResult, error) {
	if horizonDays < 1 || horizonDays > MaxHorizonDays {
		horizonDays = DefaultHorizonDays
	}
	now := l.Now().UTC()

	bills, err := l.Bills.ListUpcoming(ctx, userID, now.AddDate(0, 0, horizonDays))
	if err != nil {
		return OverviewResult{}, fmt.Errorf("failed to list upcoming bills: %w", err)
	}

	hits, err := l.Paychecks.ListSince(ctx, userID, now.AddDate(0, 0, -recentPaycheckDays))
	if err != nil {
		return OverviewResult{}, fmt.Errorf("failed to list recent paychecks: %w", err)
	}

	if bills == nil {
		bills = []model.Bill{}
	}
	if hits == nil {
		hits = []model.PaycheckHit{}
	}

	return OverviewResult{Bills: bills, RecentPaychecks: hits}, nil
}
