package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"combat-meter/internal/config"
	"combat-meter/internal/constants"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().Str("path", cfg.DBPath).Msg("connecting to database")

	db, err := Open(cfg.DBPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := optimizeSQLite(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to optimize SQLite")
		db.Close()
		return nil, fmt.Errorf("failed to optimize SQLite: %w", err)
	}

	bundle := DefaultBundle()
	if cfg.MigrationBundle != "" {
		zipped, closer, err := OpenBundle(cfg.MigrationBundle)
		if err != nil {
			db.Close()
			return nil, err
		}
		defer closer.Close()
		bundle = zipped
		logger.Info().Str("bundle", cfg.MigrationBundle).Msg("using external migration bundle")
	}

	if err := runMigrations(db, bundle, cfg.AppVersion, logger); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database connection established and optimized")
	return db, nil
}

// Open opens the store with per-connection pragmas in the DSN so every
// pooled connection enforces foreign keys.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrations(db *sql.DB, bundle fs.FS, appVersion string, logger zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.MigrationTimeout)
	defer cancel()

	migrator := NewMigrator(bundle, appVersion, logger)
	if _, err := migrator.Run(ctx, db); err != nil {
		return err
	}
	return nil
}

func optimizeSQLite(sqlDB *sql.DB, logger zerolog.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"cache_size", "-64000"},
		{"temp_store", "MEMORY"},
		{"mmap_size", "268435456"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := sqlDB.Exec(query); err != nil {
			logger.Warn().
				Err(err).
				Str("pragma", pragma.name).
				Str("value", pragma.value).
				Msg("failed to set pragma")
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
		logger.Debug().
			Str("pragma", pragma.name).
			Str("value", pragma.value).
			Msg("SQLite pragma set")
	}

	return nil
}
