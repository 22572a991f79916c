package detect

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"babylon/recurring/appcontext"
	"babylon/recurring/recurring/model"
	"babylon/recurring/recurring/repository"
)

// DefaultLookbackDays bounds the transaction feed considered by one run.
const DefaultLookbackDays = 180

// ClusterResult reports one qualified cluster back to the caller.
type ClusterResult struct {
	Key      string             `json:"key"`
	SeriesID primitive.ObjectID `json:"seriesId,omitempty"`
	Count    int                `json:"count"`
}

// Result is the outcome of one detection run.
type Result struct {
	OK      bool            `json:"ok"`
	Results []ClusterResult `json:"results"`
}

// Detector runs the full pipeline for one user: feed -> clusters ->
// consistency filter -> cadence -> series upsert -> bill scheduling.
type Detector struct {
	Source       repository.TransactionSource
	Registry     *Registry
	Scheduler    *Scheduler
	LookbackDays int
	Now          func() time.Time
}

// NewDetector wires a Detector from its collaborators.
func NewDetector(
	source repository.TransactionSource,
	series repository.SeriesStore,
	bills repository.BillStore,
	lookbackDays int,
	scheduleWindowDays int,
	currency string,
) *Detector {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}

	return &Detector{
		Source:       source,
		Registry:     NewRegistry(series),
		Scheduler:    NewScheduler(bills, scheduleWindowDays, currency),
		LookbackDays: lookbackDays,
		Now:          time.Now,
	}
}

// Detect runs one synchronous detection pass for userID. A failure inside
// one cluster is logged and excluded from the results; only feed or store
// failures at the top level are fatal.
func (d *Detector) Detect(ctx context.Context, userID primitive.ObjectID, lookbackDays int) (Result, *Stats, error) {
	logger := appcontext.LoggerFromContext(ctx)

	if userID.IsZero() {
		return Result{}, nil, fmt.Errorf("detection requires a user id")
	}
	if lookbackDays <= 0 {
		lookbackDays = d.LookbackDays
	}
	since := d.Now().AddDate(0, 0, -lookbackDays)

	records, err := d.Source.Find(ctx, repository.TransactionFilter{UserID: userID, Since: since})
	if err != nil {
		return Result{}, nil, fmt.Errorf("failed to read transaction feed: %w", err)
	}

	clusters := Cluster(ctx, records)
	stats := NewStats()
	stats.TotalClusters = len(clusters)

	result := Result{OK: true, Results: []ClusterResult{}}
	for _, key := range SortedKeys(clusters) {
		occs := clusters[key]

		amountHint, ok := Consistent(occs)
		if !ok {
			stats.Rejected++
			logger.DebugContext(ctx, "Cluster rejected by consistency filter", "key", key.String(), "count", len(occs))
			continue
		}

		series, clusterErr := d.processCluster(ctx, userID, key, occs, amountHint)
		if clusterErr != nil {
			stats.AddFailure(key.String(), clusterErr.Error())
			logger.ErrorContext(ctx, "failed to process cluster", "key", key.String(), "error", clusterErr)
			continue
		}

		stats.Qualified++
		result.Results = append(result.Results, ClusterResult{
			Key:      key.String(),
			SeriesID: series.ID,
			Count:    len(occs),
		})
	}

	return result, stats, nil
}

// processCluster registers the series implied by one qualified cluster and
// schedules its next bill when the series is expense-kind.
func (d *Detector) processCluster(
	ctx context.Context,
	userID primitive.ObjectID,
	key ClusterKey,
	occs []Occurrence,
	amountHint float64,
) (model.RecurringSeries, error) {
	dates := make([]time.Time, len(occs))
	for i, occ := range occs {
		dates[i] = occ.Date
	}
	cadence := InferCadence(dates)

	kind := model.KindBill
	if key.Type == model.TxIncome {
		kind = model.KindPaycheck
	}

	series, err := d.Registry.Register(ctx, userID, key, kind, cadence, amountHint, occs)
	if err != nil {
		return model.RecurringSeries{}, err
	}

	if _, err := d.Scheduler.Schedule(ctx, series); err != nil {
		return model.RecurringSeries{}, err
	}

	return series, nil
}
