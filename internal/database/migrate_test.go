//go:build integration

package database_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facefind/internal/database"
)

func TestMigratorIntegration(t *testing.T) {
	dsn := os.Getenv("FACEFIND_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FACEFIND_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))

	cleanupDatabase(t, db)

	t.Run("Up runs migrations successfully", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "facefind_test")
		require.NoError(t, err)
		defer func() { _ = migrator.Close() }()

		require.NoError(t, migrator.Up())
		assertTableExists(t, db, "sessions")

		// Second run is a no-op.
		require.NoError(t, migrator.Up())
	})

	t.Run("Status reports the schema as current", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "facefind_test")
		require.NoError(t, err)
		defer func() { _ = migrator.Close() }()

		status, err := migrator.Status()
		require.NoError(t, err)
		assert.False(t, status.Dirty, "migration should not be dirty")
		assert.Equal(t, uint(1), status.Current)
		assert.False(t, status.Pending())
	})

	t.Run("sessions table has correct columns", func(t *testing.T) {
		columns := getTableColumns(t, db, "sessions")
		for _, col := range []string{
			"id", "method", "source_name", "scanned", "matched", "skipped",
			"failed_fetches", "reason", "recognition_ms", "total_ms", "created_at",
		} {
			assert.Contains(t, columns, col, "sessions should have column %s", col)
		}

		indexes := getTableIndexes(t, db, "sessions")
		assert.Contains(t, indexes, "idx_sessions_created_at")
	})

	t.Run("method constraint rejects unknown methods", func(t *testing.T) {
		_, err := db.Exec(`INSERT INTO sessions (id, method) VALUES (gen_random_uuid(), 'ftp')`)
		assert.Error(t, err)
	})

	t.Run("Down rolls back", func(t *testing.T) {
		migrator, err := database.NewMigrator(db, "facefind_test")
		require.NoError(t, err)
		defer func() { _ = migrator.Close() }()

		require.NoError(t, migrator.Down(1))

		var exists bool
		require.NoError(t, db.QueryRow(`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'sessions')`).Scan(&exists))
		assert.False(t, exists)
	})

	t.Cleanup(func() {
		cleanupDatabase(t, db)
	})
}

func cleanupDatabase(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		DROP TABLE IF EXISTS sessions;
		DROP TABLE IF EXISTS schema_migrations;
	`)
	if err != nil {
		t.Logf("cleanup warning: %v", err)
	}
}

func assertTableExists(t *testing.T, db *sql.DB, tableName string) {
	t.Helper()

	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = $1
		)
	`, tableName).Scan(&exists)

	require.NoError(t, err)
	assert.True(t, exists, "table %s should exist", tableName)
}

func getTableColumns(t *testing.T, db *sql.DB, tableName string) []string {
	t.Helper()

	rows, err := db.Query(`
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public'
		AND table_name = $1
		ORDER BY ordinal_position
	`, tableName)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var col string
		require.NoError(t, rows.Scan(&col))
		columns = append(columns, col)
	}

	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, tableName string) []string {
	t.Helper()

	rows, err := db.Query(`
		SELECT indexname
		FROM pg_indexes
		WHERE schemaname = 'public'
		AND tablename = $1
	`, tableName)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var indexes []string
	for rows.Next() {
		var idx string
		require.NoError(t, rows.Scan(&idx))
		indexes = append(indexes, idx)
	}

	return indexes
}
