// main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	bcontext "babylon/recurring/appcontext"
	"babylon/recurring/config"
	"babylon/recurring/csvfeed"
	"babylon/recurring/httpapi"
	"babylon/recurring/recurring/detect"
	"babylon/recurring/recurring/match"
	"babylon/recurring/recurring/memstore"
	"babylon/recurring/storage"
	"babylon/recurring/synthetic"
)

func main() {
	// Create the logger instance at the very beginning.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if len(os.Args) < 2 {
		logger.Error("Usage: go run main.go <command> [options]")
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	if err := run(logger, command, args); err != nil {
		logger.Error("Application terminated with an error", "error", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, command string, args []string) error {
	ctx := bcontext.WithLogger(context.Background(), logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch command {
	case "serve":
		return runServe(ctx, logger, cfg)
	case "detect":
		return runDetect(ctx, logger, args, cfg)
	case "backfill":
		return runBackfill(ctx, logger, args, cfg)
	case "generate-synthetic-data":
		return synthetic.RunGenerateSyntheticData(ctx, logger, args, cfg)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// services holds the domain layer wired over one set of stores.
type services struct {
	detector   *detect.Detector
	linker     *match.Linker
	reconciler *match.Reconciler
}

func buildServices(cfg *config.Config, provider storage.CollectionProvider) *services {
	series := storage.NewSeriesStore(provider)
	bills := storage.NewBillStore(provider)
	paychecks := storage.NewPaycheckStore(provider)
	ledger := storage.NewLedgerStore(provider)
	feed := storage.NewFeedSource(provider)

	return &services{
		detector:   detect.NewDetector(feed, series, bills, cfg.LookbackDays, cfg.ScheduleWindowDays, cfg.Currency),
		linker:     match.NewLinker(series, bills, paychecks, ledger, cfg.MatchWindowDays, cfg.Currency),
		reconciler: match.NewReconciler(bills, paychecks, ledger, cfg.BackfillDays),
	}
}

func connect(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*mongo.Client, *storage.MongoProvider, error) {
	client, err := storage.ConnectToMongoDB(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, fmt.Errorf("connection to MongoDB failed: %w", err)
	}
	logger.InfoContext(ctx, "Successfully connected to MongoDB.")

	return client, storage.NewMongoProvider(client, cfg.Database), nil
}

func disconnect(ctx context.Context, logger *slog.Logger, client *mongo.Client) {
	if err := client.Disconnect(ctx); err != nil {
		logger.ErrorContext(ctx, "Error disconnecting from MongoDB", "error", err)
	}
}

// runServe starts the HTTP API and blocks until SIGINT/SIGTERM, then
// drains in-flight requests within the shutdown timeout.
func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	client, provider, err := connect(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer disconnect(ctx, logger, client)

	svc := buildServices(cfg, provider)
	server := httpapi.NewServer(svc.detector, svc.linker, svc.reconciler, logger)

	httpServer := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     server.Handler(),
		ReadTimeout: cfg.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "HTTP API listening", "addr", cfg.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-sigCtx.Done():
	}

	logger.InfoContext(ctx, "Shutting down HTTP API")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// runDetect runs one synchronous detection pass for a user, reading the
// transaction feed either from MongoDB or from a CSV export.
func runDetect(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	detectFlagSet := flag.NewFlagSet("detect", flag.ExitOnError)
	userHex := detectFlagSet.String("user", "", "User object id (hex, required)")
	csvPath := detectFlagSet.String("csv", "", "Read the feed from this CSV file instead of MongoDB")
	lookbackDays := detectFlagSet.Int("lookback-days", 0, "Override the feed lookback window")
	if err := detectFlagSet.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	userID, err := primitive.ObjectIDFromHex(*userHex)
	if err != nil {
		return fmt.Errorf("invalid -user value %q: %w", *userHex, err)
	}

	var detector *detect.Detector
	if *csvPath != "" {
		// CSV mode detects against in-memory stores and reports what it
		// found without persisting anything.
		mem := memstore.New()
		feed := csvfeed.NewSource(*csvPath, userID)
		detector = detect.NewDetector(feed, mem.Series(), mem.Bills(), cfg.LookbackDays, cfg.ScheduleWindowDays, cfg.Currency)
	} else {
		client, provider, connErr := connect(ctx, logger, cfg)
		if connErr != nil {
			return connErr
		}
		defer disconnect(ctx, logger, client)
		detector = buildServices(cfg, provider).detector
	}

	result, stats, err := detector.Detect(ctx, userID, *lookbackDays)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	stats.Log(logger)
	for _, cluster := range result.Results {
		logger.InfoContext(ctx, "Recurring series detected",
			"key", cluster.Key,
			"seriesId", cluster.SeriesID.Hex(),
			"occurrences", cluster.Count,
		)
	}

	return nil
}

// runBackfill sweeps paid bills and paycheck hits for missing ledger links.
func runBackfill(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	backfillFlagSet := flag.NewFlagSet("backfill", flag.ExitOnError)
	userHex := backfillFlagSet.String("user", "", "User object id (hex, required)")
	days := backfillFlagSet.Int("days", 0, "Override the sweep window")
	accountID := backfillFlagSet.String("account", "", "Account id assigned to transactions the sweep creates")
	if err := backfillFlagSet.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	userID, err := primitive.ObjectIDFromHex(*userHex)
	if err != nil {
		return fmt.Errorf("invalid -user value %q: %w", *userHex, err)
	}

	client, provider, err := connect(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer disconnect(ctx, logger, client)

	svc := buildServices(cfg, provider)
	since, summary, err := svc.reconciler.Run(ctx, userID, match.BackfillOptions{
		Days:      *days,
		AccountID: *accountID,
	})
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	logger.InfoContext(ctx, "Backfill completed",
		"since", since,
		"billsCreated", summary.BillsCreated,
		"billsLinked", summary.BillsLinked,
		"paysCreated", summary.PaysCreated,
		"paysLinked", summary.PaysLinked,
	)

	return nil
}
