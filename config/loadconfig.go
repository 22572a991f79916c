package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"

	"babylon/recurring/appcontext"
)

// Defaults.
const (
	defaultMongoURI           = "mongodb://localhost:27017/babylon"
	defaultMongoHost          = "localhost"
	defaultMongoPort          = "27017"
	defaultDatabase           = "babylon"
	defaultListenAddr         = ":8080"
	defaultLookbackDays       = 180
	defaultMatchWindowDays    = 7
	defaultScheduleWindowDays = 5
	defaultHorizonDays        = 40
	defaultMaxHorizonDays     = 120
	defaultBackfillDays       = 90
	defaultCurrency           = "USD"
	defaultSyntheticNoise     = 40
	defaultSyntheticDir       = "synthetic-data"
	defaultShutdownSeconds    = 10
	defaultTimeoutSeconds     = 30
)

// Load reads configuration from an optional config file and the
// environment. Env var overrides use the RECURRING_ prefix, e.g.
// RECURRING_MONGO_URI or RECURRING_DETECT_LOOKBACK_DAYS.
func Load(ctx context.Context) (*Config, error) {
	logger := appcontext.LoggerFromContext(ctx)

	v := viper.New()
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.host", defaultMongoHost)
	v.SetDefault("mongo.user", "")
	v.SetDefault("mongo.password", "")
	v.SetDefault("mongo.database", defaultDatabase)
	v.SetDefault("server.addr", defaultListenAddr)
	v.SetDefault("detect.lookback_days", defaultLookbackDays)
	v.SetDefault("match.window_days", defaultMatchWindowDays)
	v.SetDefault("schedule.window_days", defaultScheduleWindowDays)
	v.SetDefault("overview.default_horizon_days", defaultHorizonDays)
	v.SetDefault("overview.max_horizon_days", defaultMaxHorizonDays)
	v.SetDefault("backfill.days", defaultBackfillDays)
	v.SetDefault("currency", defaultCurrency)
	v.SetDefault("synthetic.noise_rows", defaultSyntheticNoise)
	v.SetDefault("synthetic.dir", defaultSyntheticDir)

	v.SetConfigName("recurring")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/recurring")

	v.SetEnvPrefix("RECURRING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logger.DebugContext(ctx, "No config file found, using defaults and environment")
	} else {
		logger.DebugContext(ctx, "Loaded config file", "file", v.ConfigFileUsed())
	}

	cfg := &Config{
		MongoURI:           formatMongoURI(ctx, v, logger),
		Database:           v.GetString("mongo.database"),
		ListenAddr:         v.GetString("server.addr"),
		LookbackDays:       v.GetInt("detect.lookback_days"),
		MatchWindowDays:    v.GetInt("match.window_days"),
		ScheduleWindowDays: v.GetInt("schedule.window_days"),
		DefaultHorizonDays: v.GetInt("overview.default_horizon_days"),
		MaxHorizonDays:     v.GetInt("overview.max_horizon_days"),
		BackfillDays:       v.GetInt("backfill.days"),
		Currency:           v.GetString("currency"),
		SyntheticNoiseRows: v.GetInt("synthetic.noise_rows"),
		SyntheticDataDir:   v.GetString("synthetic.dir"),
		ShutdownTimeout:    defaultShutdownSeconds * time.Second,
		Timeout:            defaultTimeoutSeconds * time.Second,
	}

	return cfg, nil
}

// formatMongoURI formats mongo settings to a url and returns the result.
func formatMongoURI(ctx context.Context, v *viper.Viper, logger *slog.Logger) string {
	if uri := v.GetString("mongo.uri"); uri != "" {
		logger.DebugContext(ctx, "Using MongoDB URI from configuration", "uri", uri)
		return uri
	}

	mongoHost := v.GetString("mongo.host")
	mongoUser := v.GetString("mongo.user")
	mongoPassword := v.GetString("mongo.password")

	if mongoUser != "" && mongoPassword != "" {
		hostPort := net.JoinHostPort(mongoHost, defaultMongoPort)
		uri := fmt.Sprintf(
			"mongodb://%s:%s@%s/%s?authSource=admin",
			mongoUser,
			mongoPassword,
			hostPort,
			v.GetString("mongo.database"),
		)
		logger.DebugContext(ctx, "Created MongoDB URI from user, password, and host", "host", mongoHost)
		return uri
	}

	logger.DebugContext(ctx, "Using default MongoDB URI", "uri", defaultMongoURI)
	return defaultMongoURI
}
