package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/barakah/core"
)

func sqliteConfig(t *testing.T) *core.Config {
	t.Helper()
	return &core.Config{Session: core.SessionConfig{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "session.json"),
	}}
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := Open(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `INSERT INTO session_kv (name, value) VALUES ('token', 'tok')`)
	require.NoError(t, err)

	// migrating an up to date database applies nothing and keeps the data
	require.NoError(t, Migrate(ctx, db))
	provider, err := migrator(db)
	require.NoError(t, err)
	results, err := provider.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	version, err := provider.GetDBVersion(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	var value string
	require.NoError(t, db.GetContext(ctx, &value, `SELECT value FROM session_kv WHERE name = 'token'`))
	assert.Equal(t, "tok", value)
}
