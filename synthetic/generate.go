package synthetic

import (
	"context"
	"flag"
	"fmt"
	"log/slog"

	"babylon/recurring/config"
)

// RunGenerateSyntheticData generates a synthetic transaction feed for testing.
func RunGenerateSyntheticData(ctx context.Context, logger *slog.Logger, args []string, cfg *config.Config) error {
	genFlagSet := flag.NewFlagSet("generate-synthetic-data", flag.ExitOnError)
	noiseRows := genFlagSet.Int("noise-rows", cfg.SyntheticNoiseRows, "Number of one-off noise rows to generate")
	dir := genFlagSet.String("dir", cfg.SyntheticDataDir, "Directory to write synthetic data to")
	if err := genFlagSet.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	logger.InfoContext(ctx, "Generating synthetic data", "noiseRows", *noiseRows, "dir", *dir)
	if err := GenerateSyntheticData(*noiseRows, *dir); err != nil {
		return fmt.Errorf("failed to generate synthetic data: %w", err)
	}
	logger.InfoContext(ctx, "Synthetic data generated successfully")
	return nil
}
