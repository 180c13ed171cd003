package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnsupportedScheme(t *testing.T) {
	_, err := Open("mysql://localhost/gridxlate")
	assert.Error(t, err)
}

func TestOpen_SQLiteTransactionsTakeWriteLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridxlate.db")
	database, err := Open("sqlite://" + path + "?_busy_timeout=50")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, MigrateUp(context.Background(), database, nil))

	first, err := database.Beginx()
	require.NoError(t, err)
	defer first.Rollback()

	// A second writer cannot even begin while the first transaction is open.
	second, err := database.Beginx()
	if err == nil {
		second.Rollback()
	}
	assert.Error(t, err)

	require.NoError(t, first.Rollback())
	third, err := database.Beginx()
	require.NoError(t, err)
	assert.NoError(t, third.Rollback())
}
