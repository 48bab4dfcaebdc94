package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDriver(t *testing.T) {
	for in, want := range map[string]Driver{"": DriverSQLite, "sqlite3": DriverSQLite, " PG ": DriverPostgres, "pgx": DriverPostgres} {
		got, err := ParseDriver(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseDriver("mysql")
	assert.Error(t, err)
}

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "r.db") + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	for i := 0; i < 2; i++ {
		conn, err := Open(ctx, DriverSQLite, dsn)
		require.NoError(t, err)
		var n int
		require.NoError(t, conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('answers','answer_comments','event_log','files')`).Scan(&n))
		assert.Equal(t, 4, n)
		require.NoError(t, conn.Close())
	}
	_, err := Open(ctx, Driver("oracle"), "")
	assert.Error(t, err)
}
