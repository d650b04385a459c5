package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damian-dev1/freight-matrix-hn/db"
	fmtest "github.com/damian-dev1/freight-matrix-hn/internal/testing"
)

func TestMigrate_CreatesSchema(t *testing.T) {
	conn := fmtest.CreateTestDB(t)
	require.NoError(t, db.Migrate(conn, nil))

	for _, table := range []string{"schema_migrations", "ingest_runs", "run_records", "vendor_profiles"} {
		var name string
		err := conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := fmtest.CreateTestDB(t)
	require.NoError(t, db.Migrate(conn, nil))
	require.NoError(t, db.Migrate(conn, nil))

	var applied int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 4, applied, "each migration recorded exactly once")
}
