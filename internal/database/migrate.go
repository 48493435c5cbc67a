package database

import (
	"archive/zip"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	// ErrCorruptedMigrations means the tracking table exists but records nothing.
	ErrCorruptedMigrations = errors.New("migrations table exists but is empty")
	ErrEmptyBundle         = errors.New("migration bundle contains no scripts")
	ErrMigrationFailed     = errors.New("migration failed")
)

// MigrationError carries the name of the script that failed.
type MigrationError struct {
	Name string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s failed: %v", e.Name, e.Err)
}

func (e *MigrationError) Unwrap() []error {
	return []error{ErrMigrationFailed, e.Err}
}

type State int

const (
	StateNew State = iota
	StateExistingNoMigrations
	StateExistingWithMigrations
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateExistingNoMigrations:
		return "existing_no_migrations"
	case StateExistingWithMigrations:
		return "existing_with_migrations"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type MigrationRecord struct {
	ID         int64
	Name       string
	ExecutedOn time.Time
	AppVersion string
	Checksum   string
}

// DatabaseState is decided once when the store is opened.
type DatabaseState struct {
	Kind        State
	LastApplied *MigrationRecord
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS migrations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    executed_on TIMESTAMP NOT NULL,
    app_version TEXT NOT NULL,
    checksum TEXT NOT NULL
);
`

const createConfigTable = `
CREATE TABLE IF NOT EXISTS config (
    app_version TEXT PRIMARY KEY,
    updated_on TIMESTAMP NOT NULL
);
`

// legacyMarkerTable is present in every store written before migrations were tracked.
const legacyMarkerTable = "encounter"

// DefaultBundle returns the migrations compiled into the binary.
func DefaultBundle() fs.FS {
	sub, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		// the embed pattern guarantees the directory
		panic(err)
	}
	return sub
}

// OpenBundle opens a zip archive of migration scripts.
func OpenBundle(archivePath string) (fs.FS, io.Closer, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open migration bundle: %w", err)
	}
	return zr, zr, nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Migrator applies the scripts of a bundle in file-name order and records
// each one in the migrations table.
type Migrator struct {
	bundle     fs.FS
	appVersion string
	logger     zerolog.Logger
	now        func() time.Time
}

func NewMigrator(bundle fs.FS, appVersion string, logger zerolog.Logger) *Migrator {
	return &Migrator{
		bundle:     bundle,
		appVersion: appVersion,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run migrates db to the latest bundled script. It holds a single dedicated
// connection for the whole run; callers must not hand db to anyone else
// before Run returns. Every script runs in its own transaction and the first
// failure aborts the run.
func (m *Migrator) Run(ctx context.Context, db *sql.DB) ([]string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire migration connection: %w", err)
	}
	defer conn.Close()

	state, err := m.DetectState(ctx, conn)
	if err != nil {
		return nil, err
	}

	after := ""
	if state.LastApplied != nil {
		after = state.LastApplied.Name
	}
	m.logger.Info().
		Stringer("state", state.Kind).
		Str("last_applied", after).
		Msg("database state detected")

	pending, err := m.pending(after)
	if err != nil {
		return nil, err
	}
	if state.Kind != StateExistingWithMigrations && len(pending) == 0 {
		return nil, ErrEmptyBundle
	}

	needTrackingTable := state.Kind != StateExistingWithMigrations
	applied := make([]string, 0, len(pending))
	for _, name := range pending {
		if err := m.apply(ctx, conn, name, needTrackingTable); err != nil {
			m.logger.Error().Err(err).Str("migration", name).Msg("migration failed")
			return applied, err
		}
		needTrackingTable = false
		applied = append(applied, name)
		m.logger.Info().Str("migration", name).Msg("migration applied")
	}

	if err := m.touchConfig(ctx, conn); err != nil {
		return applied, err
	}

	m.logger.Info().Int("applied", len(applied)).Str("app_version", m.appVersion).Msg("migrations completed successfully")
	return applied, nil
}

// DetectState classifies the store. A tracking table without rows is
// reported as ErrCorruptedMigrations rather than treated as a new store.
func (m *Migrator) DetectState(ctx context.Context, q execQuerier) (DatabaseState, error) {
	hasMigrations, err := tableExists(ctx, q, "migrations")
	if err != nil {
		return DatabaseState{}, err
	}

	if !hasMigrations {
		legacy, err := tableExists(ctx, q, legacyMarkerTable)
		if err != nil {
			return DatabaseState{}, err
		}
		if legacy {
			return DatabaseState{Kind: StateExistingNoMigrations}, nil
		}
		return DatabaseState{Kind: StateNew}, nil
	}

	var last MigrationRecord
	err = q.QueryRowContext(ctx,
		`SELECT id, name, executed_on, app_version, checksum FROM migrations ORDER BY name DESC LIMIT 1`,
	).Scan(&last.ID, &last.Name, &last.ExecutedOn, &last.AppVersion, &last.Checksum)
	if errors.Is(err, sql.ErrNoRows) {
		return DatabaseState{}, ErrCorruptedMigrations
	}
	if err != nil {
		return DatabaseState{}, fmt.Errorf("failed to read last migration: %w", err)
	}

	return DatabaseState{Kind: StateExistingWithMigrations, LastApplied: &last}, nil
}

// pending lists bundle scripts sorting strictly after the last applied name.
func (m *Migrator) pending(after string) ([]string, error) {
	entries, err := fs.ReadDir(m.bundle, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration bundle: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		if entry.Name() <= after {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (m *Migrator) apply(ctx context.Context, q execQuerier, name string, createTracking bool) (err error) {
	script, err := fs.ReadFile(m.bundle, name)
	if err != nil {
		return &MigrationError{Name: name, Err: err}
	}

	tx, err := q.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Name: name, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if createTracking {
		if _, err := tx.ExecContext(ctx, createMigrationsTable); err != nil {
			return &MigrationError{Name: name, Err: fmt.Errorf("failed to create migrations table: %w", err)}
		}
	}

	if strings.TrimSpace(string(script)) != "" {
		if _, err := tx.ExecContext(ctx, string(script)); err != nil {
			return &MigrationError{Name: name, Err: err}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO migrations (name, executed_on, app_version, checksum) VALUES (?, ?, ?, ?)`,
		name, m.now(), m.appVersion, Checksum(script),
	); err != nil {
		return &MigrationError{Name: name, Err: fmt.Errorf("failed to record migration: %w", err)}
	}

	if err := tx.Commit(); err != nil {
		return &MigrationError{Name: name, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

func (m *Migrator) touchConfig(ctx context.Context, q execQuerier) error {
	if _, err := q.ExecContext(ctx, createConfigTable); err != nil {
		return fmt.Errorf("failed to create config table: %w", err)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO config (app_version, updated_on) VALUES (?, ?)
		ON CONFLICT (app_version) DO UPDATE SET updated_on = excluded.updated_on`,
		m.appVersion, m.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	return nil
}

// Checksum fingerprints a script body. It is recorded for auditing only.
func Checksum(script []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(script))
}

// AppliedMigrations lists the tracking rows in execution order.
func AppliedMigrations(ctx context.Context, db *sql.DB) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, executed_on, app_version, checksum FROM migrations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		if err := rows.Scan(&r.ID, &r.Name, &r.ExecutedOn, &r.AppVersion, &r.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func tableExists(ctx context.Context, q execQuerier, name string) (bool, error) {
	var found string
	err := q.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema for %s: %w", name, err)
	}
	return true, nil
}
