package database

import (
	"archive/zip"
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "meter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func hasTable(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	ok, err := tableExists(context.Background(), db, name)
	require.NoError(t, err)
	return ok
}

func TestMigratorFreshDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := NewMigrator(DefaultBundle(), "1.14.2", zerolog.Nop())

	state, err := m.DetectState(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, StateNew, state.Kind)
	assert.Nil(t, state.LastApplied)

	applied, err := m.Run(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_encounter.sql", "0002_encounter_preview.sql", "0003_stats_upload.sql"}, applied)

	for _, table := range []string{"encounter", "entity", "encounter_preview", "encounter_search", "stats_upload", "config"} {
		assert.True(t, hasTable(t, db, table), table)
	}

	records, err := AppliedMigrations(ctx, db)
	require.NoError(t, err)
	require.Len(t, records, 3)
	script, err := fs.ReadFile(DefaultBundle(), "0001_encounter.sql")
	require.NoError(t, err)
	assert.Equal(t, Checksum(script), records[0].Checksum)
	assert.Equal(t, "1.14.2", records[0].AppVersion)
	assert.False(t, records[0].ExecutedOn.IsZero())
}

func TestMigratorRerunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := NewMigrator(DefaultBundle(), "1.14.2", zerolog.Nop())

	_, err := m.Run(ctx, db)
	require.NoError(t, err)

	applied, err := m.Run(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, applied)

	assert.Equal(t, 3, countRows(t, db, "migrations"))
	assert.Equal(t, 1, countRows(t, db, "config"))

	state, err := m.DetectState(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, StateExistingWithMigrations, state.Kind)
	require.NotNil(t, state.LastApplied)
	assert.Equal(t, "0003_stats_upload.sql", state.LastApplied.Name)
}

func TestMigratorConfigRowPerVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := NewMigrator(DefaultBundle(), "1.14.2", zerolog.Nop()).Run(ctx, db)
	require.NoError(t, err)
	_, err = NewMigrator(DefaultBundle(), "1.15.0", zerolog.Nop()).Run(ctx, db)
	require.NoError(t, err)

	assert.Equal(t, 2, countRows(t, db, "config"))
}

func TestMigratorRunsOnlyNewerScripts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := fstest.MapFS{
		"0001_a.sql": {Data: []byte("CREATE TABLE a (x INTEGER);")},
	}
	applied, err := NewMigrator(first, "1.14.2", zerolog.Nop()).Run(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a.sql"}, applied)

	second := fstest.MapFS{
		"0001_a.sql": {Data: []byte("CREATE TABLE a (x INTEGER);")},
		"0002_b.sql": {Data: []byte("CREATE TABLE b (y INTEGER);")},
		"README.md":  {Data: []byte("not a migration")},
	}
	m := NewMigrator(second, "1.14.2", zerolog.Nop())

	state, err := m.DetectState(ctx, db)
	require.NoError(t, err)
	require.Equal(t, StateExistingWithMigrations, state.Kind)
	assert.Equal(t, "0001_a.sql", state.LastApplied.Name)

	applied, err = m.Run(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_b.sql"}, applied)
	assert.True(t, hasTable(t, db, "b"))
}

func TestMigratorEmptyTrackingTableIsCorrupt(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(createMigrationsTable)
	require.NoError(t, err)

	m := NewMigrator(DefaultBundle(), "1.14.2", zerolog.Nop())

	_, err = m.DetectState(ctx, db)
	assert.ErrorIs(t, err, ErrCorruptedMigrations)

	applied, err := m.Run(ctx, db)
	assert.ErrorIs(t, err, ErrCorruptedMigrations)
	assert.Empty(t, applied)
	assert.False(t, hasTable(t, db, "encounter"))
}

func TestMigratorLegacyDatabase(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	legacy, err := fs.ReadFile(DefaultBundle(), "0001_encounter.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(legacy))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO encounter (last_combat_packet, fight_start, duration) VALUES (2000, 1000, 1000)`)
	require.NoError(t, err)

	m := NewMigrator(DefaultBundle(), "1.14.2", zerolog.Nop())
	state, err := m.DetectState(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, StateExistingNoMigrations, state.Kind)

	applied, err := m.Run(ctx, db)
	require.NoError(t, err)
	assert.Len(t, applied, 3)
	assert.Equal(t, 1, countRows(t, db, "encounter"))
	assert.Equal(t, 3, countRows(t, db, "migrations"))
}

func TestMigratorFailureAborts(t *testing.T) {
	t.Run("later script", func(t *testing.T) {
		db := openTestDB(t)
		bundle := fstest.MapFS{
			"0001_ok.sql":    {Data: []byte("CREATE TABLE ok (x INTEGER);")},
			"0002_bad.sql":   {Data: []byte("CREATE TABLE half (x INTEGER); CREATE TABLE (")},
			"0003_after.sql": {Data: []byte("CREATE TABLE after (x INTEGER);")},
		}

		applied, err := NewMigrator(bundle, "1.14.2", zerolog.Nop()).Run(context.Background(), db)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMigrationFailed)

		var migErr *MigrationError
		require.True(t, errors.As(err, &migErr))
		assert.Equal(t, "0002_bad.sql", migErr.Name)

		assert.Equal(t, []string{"0001_ok.sql"}, applied)
		assert.True(t, hasTable(t, db, "ok"))
		assert.False(t, hasTable(t, db, "half"))
		assert.False(t, hasTable(t, db, "after"))
		assert.False(t, hasTable(t, db, "config"))
		assert.Equal(t, 1, countRows(t, db, "migrations"))
	})

	t.Run("first script leaves no tracking table", func(t *testing.T) {
		db := openTestDB(t)
		bundle := fstest.MapFS{
			"0001_bad.sql": {Data: []byte("CREATE TABLE (")},
		}

		m := NewMigrator(bundle, "1.14.2", zerolog.Nop())
		_, err := m.Run(context.Background(), db)
		require.ErrorIs(t, err, ErrMigrationFailed)
		assert.False(t, hasTable(t, db, "migrations"))

		state, err := m.DetectState(context.Background(), db)
		require.NoError(t, err)
		assert.Equal(t, StateNew, state.Kind)
	})
}

func TestMigratorEmptyBundle(t *testing.T) {
	db := openTestDB(t)

	_, err := NewMigrator(fstest.MapFS{}, "1.14.2", zerolog.Nop()).Run(context.Background(), db)
	assert.ErrorIs(t, err, ErrEmptyBundle)
}

func TestMigratorZipBundle(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "migrations.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	for _, name := range []string{"0002_second.sql", "0001_first.sql"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("CREATE TABLE t_" + name[:4] + " (x INTEGER);"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	bundle, closer, err := OpenBundle(archive)
	require.NoError(t, err)
	defer closer.Close()

	db := openTestDB(t)
	applied, err := NewMigrator(bundle, "1.14.2", zerolog.Nop()).Run(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_first.sql", "0002_second.sql"}, applied)
	assert.True(t, hasTable(t, db, "t_0001"))
	assert.True(t, hasTable(t, db, "t_0002"))
}

func TestOpenBundleMissing(t *testing.T) {
	_, _, err := OpenBundle(filepath.Join(t.TempDir(), "nope.zip"))
	assert.Error(t, err)
}
