package detect

import (
	"fmt"
	"log/slog"
)

// Stats holds statistics about one detection run.
type Stats struct {
	TotalClusters  int
	Qualified      int
	Rejected       int
	FailedClusters int
	Failures       map[string]string
}

// NewStats creates and initializes a new Stats object.
func NewStats() *Stats {
	return &Stats{
		Failures: make(map[string]string),
	}
}

// AddFailure records a cluster that errored and the reason.
func (s *Stats) AddFailure(key, reason string) {
	s.FailedClusters++
	s.Failures[key] = reason
}

// Log prints the final statistics to the provided logger.
func (s *Stats) Log(logger *slog.Logger) {
	logger.Info("--- Detection Stats ---")
	logger.Info(fmt.Sprintf("Clusters found: %d", s.TotalClusters))
	logger.Info(fmt.Sprintf("Clusters qualified: %d", s.Qualified))
	logger.Info(fmt.Sprintf("Clusters rejected: %d", s.Rejected))
	logger.Info(fmt.Sprintf("Clusters failed: %d", s.FailedClusters))
	if s.FailedClusters > 0 {
		logger.Info("Failed clusters:")
		for key, reason := range s.Failures {
			logger.Info(fmt.Sprintf("- %s: %s", key, reason))
		}
	}
	logger.Info("-----------------------")
}
