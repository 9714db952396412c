package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mivchk/splus-bot/backend/model"
)

// openTestStore opens a scratch SQLite database, or the Postgres database
// named by SPLUS_TEST_DATABASE_URL after wiping it.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	driver, dsn := "sqlite", "file:"+filepath.Join(t.TempDir(), "splus.db")+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if pg := os.Getenv("SPLUS_TEST_DATABASE_URL"); pg != "" {
		driver, dsn = "postgres", pg
	}

	s, err := Open(ctx, driver, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Reset(ctx))
	return s
}

func seedReference(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.SeedReference(context.Background(),
		[]model.City{{ID: 1, Name: "Moscow"}, {ID: 2, Name: "Kazan"}},
		[]model.Activity{{ID: 1, Name: "Design"}, {ID: 2, Name: "Development"}},
	))
}

func TestOpen_RejectsBadArguments(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	require.ErrorContains(t, err, "unsupported driver")

	_, err = Open(context.Background(), "sqlite", "  ")
	require.Error(t, err)

	_, err = New(nil)
	require.Error(t, err)
}

func TestApplyMigrations_RunsOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	migrationFS := fstest.MapFS{
		"0001_extra.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE extra_once (id INTEGER PRIMARY KEY);\n-- +migrate Down\nDROP TABLE extra_once;\n")},
		"README.md":      {Data: []byte("not a migration")},
	}
	t.Cleanup(func() {
		_, _ = s.DB().Exec("DROP TABLE IF EXISTS extra_once")
		_, _ = s.DB().Exec("DELETE FROM schema_migrations WHERE name = '0001_extra.sql'")
	})

	require.NoError(t, ApplyMigrations(ctx, s.DB(), migrationFS))
	// Without the applied record the CREATE TABLE would fail the second time.
	require.NoError(t, ApplyMigrations(ctx, s.DB(), migrationFS))

	var count int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE name = $1", "0001_extra.sql").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestExtractUpMigration(t *testing.T) {
	assert.Equal(t, "\nA;\n", ExtractUpMigration("-- +migrate Up\nA;\n-- +migrate Down\nB;"))
	assert.Equal(t, "\nA;", ExtractUpMigration("-- +migrate Up\nA;"))
	assert.Equal(t, "A;", ExtractUpMigration("A;"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "$1", placeholders(1))
	assert.Equal(t, "$1, $2, $3", placeholders(3))
}

func TestWithTx(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	countCities := func() int {
		var n int
		require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM cities").Scan(&n))
		return n
	}
	insert := func(tx *sql.Tx, id int) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO cities (city_id, city_name) VALUES ($1, $2)", id, "City")
		return err
	}

	t.Run("commit", func(t *testing.T) {
		require.NoError(t, withTx(ctx, s.DB(), func(tx *sql.Tx) error { return insert(tx, 1) }))
		assert.Equal(t, 1, countCities())
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := withTx(ctx, s.DB(), func(tx *sql.Tx) error {
			require.NoError(t, insert(tx, 2))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, countCities())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		assert.PanicsWithValue(t, "kaboom", func() {
			_ = withTx(ctx, s.DB(), func(tx *sql.Tx) error {
				require.NoError(t, insert(tx, 3))
				panic("kaboom")
			})
		})
		assert.Equal(t, 1, countCities())
	})
}
