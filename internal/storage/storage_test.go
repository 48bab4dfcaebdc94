package storage

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/survey-registry/internal/db"
)

func TestFSStore(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewFSStore(base)
	require.NoError(t, err)

	key, err := s.Put(ctx, "answers/7/a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "answers/7/a.txt", key)

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	u, err := s.SignedURL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(base, "answers/7/a.txt"), u)

	_, err = s.Put(ctx, "../escape.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(base, "escape.txt"))

	_, err = s.Put(ctx, "", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.Get(ctx, "missing")
	assert.Error(t, err)

	require.NoError(t, s.Delete(ctx, key))
	assert.NoFileExists(t, filepath.Join(base, "answers/7/a.txt"))
	_, err = s.Get(ctx, key)
	assert.Error(t, err)
	assert.NoError(t, s.Delete(ctx, key))
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store("eu-west-2", "", 0)
	assert.Error(t, err)
	s, err := NewS3Store("eu-west-2", "answers", 0)
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "tx.db") + "?_txlock=immediate&_pragma=busy_timeout(5000)"
	conn, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	defer conn.Close()

	insert := func(tx *sql.Tx, name string) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO surveys (id, name, created_at) VALUES ($1,$2,$3)`, len(name), name, 0)
		return err
	}
	require.NoError(t, WithTx(ctx, conn, nil, func(tx *sql.Tx) error { return insert(tx, "kept") }))

	boom := errors.New("boom")
	err = WithTx(ctx, conn, nil, func(tx *sql.Tx) error {
		if err := insert(tx, "dropped"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM surveys`).Scan(&n))
	assert.Equal(t, 1, n)

	assert.Error(t, WithTx(ctx, nil, nil, func(*sql.Tx) error { return nil }))
}
