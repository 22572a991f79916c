// Package config holds the application configuration.
package config

import "time"

// Config holds the application configuration.
type Config struct {
	MongoURI           string
	Database           string
	ListenAddr         string
	LookbackDays       int
	MatchWindowDays    int
	ScheduleWindowDays int
	DefaultHorizonDays int
	MaxHorizonDays     int
	BackfillDays       int
	Currency           string
	SyntheticNoiseRows int
	SyntheticDataDir   string
	ShutdownTimeout    time.Duration
	Timeout            time.Duration
}
