package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func TestUp_CreatesCollections(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, Up(ctx, db))
	// second run is a no-op
	require.NoError(t, Up(ctx, db))

	for _, name := range []string{"mutations", "shadow_records", "snapshots", "metadata"} {
		var got string
		err := db.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&got)
		require.NoError(t, err, name)
		require.Equal(t, name, got)
	}

	var idx int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%'`).Scan(&idx))
	require.Equal(t, 3, idx)
}
