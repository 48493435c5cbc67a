package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"combat-meter/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
)

type Config struct {
	DBPath          string
	ServerPort      string
	LogLevel        string
	AppVersion      string
	ReplayPath      string
	StatsURL        string
	MigrationBundle string
	CastIdleTTL     time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// a missing .env is fine, the environment still applies
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:          getEnv("DB_PATH", "encounters.db"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AppVersion:      getEnv("APP_VERSION", constants.AppVersion),
		ReplayPath:      getEnv("REPLAY_PATH", ""),
		StatsURL:        getEnv("STATS_URL", ""),
		MigrationBundle: getEnv("MIGRATION_BUNDLE", ""),
		CastIdleTTL:     constants.CastCacheIdleTTL,
	}

	if !semver.IsValid("v" + strings.TrimPrefix(cfg.AppVersion, "v")) {
		return nil, fmt.Errorf("APP_VERSION %q is not a semantic version", cfg.AppVersion)
	}
	cfg.AppVersion = strings.TrimPrefix(cfg.AppVersion, "v")

	return cfg, nil
}

func LogLoaded(cfg *Config, logger zerolog.Logger) {
	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("app_version", cfg.AppVersion).
		Str("replay_path", cfg.ReplayPath).
		Bool("stats_upload", cfg.StatsURL != "").
		Dur("cast_idle_ttl", cfg.CastIdleTTL).
		Msg("configuration loaded")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
