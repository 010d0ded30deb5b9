package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/migrations"
	"github.com/dmitrijs2005/offsync/internal/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(context.Background(), db))
	return db
}

func TestPut_OverwritesWithoutMerge(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	first := &models.CacheEntry{Table: "customers", Data: json.RawMessage(`[{"id":1},{"id":2}]`), LastUpdated: time.Unix(0, 1)}
	second := &models.CacheEntry{Table: "customers", Data: json.RawMessage(`[{"id":3}]`), LastUpdated: time.Unix(0, 2)}
	require.NoError(t, r.Put(ctx, first))
	require.NoError(t, r.Put(ctx, second))

	got, err := r.Get(ctx, "customers")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":3}]`, string(got.Data))
	assert.Equal(t, int64(2), got.LastUpdated.UnixNano())
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.Get(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetAllAndDelete(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, &models.CacheEntry{Table: "b", Data: json.RawMessage(`[]`), LastUpdated: time.Now()}))
	require.NoError(t, r.Put(ctx, &models.CacheEntry{Table: "a", Data: json.RawMessage(`{}`), LastUpdated: time.Now()}))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Table)

	require.NoError(t, r.Delete(ctx, "a"))
	require.NoError(t, r.Delete(ctx, "a"))
	_, err = r.Get(ctx, "a")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestStoredCompressed(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	data := json.RawMessage(`[` + strings.Repeat(`{"name":"Acme"},`, 200) + `{"name":"Acme"}]`)
	require.NoError(t, r.Put(ctx, &models.CacheEntry{Table: "customers", Data: data, LastUpdated: time.Now()}))

	var size int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT length(data) FROM snapshots WHERE tbl = 'customers'`).Scan(&size))
	assert.Less(t, size, len(data))
}

func TestGet_CorruptPayload_IsSerializationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT tbl, data, last_updated FROM snapshots").
		WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"tbl", "data", "last_updated"}).
			AddRow("customers", []byte{0xff, 0xff, 0xff, 0xff, 0xff}, int64(1)))

	_, err = NewSQLiteRepository(db).Get(context.Background(), "customers")
	require.ErrorIs(t, err, common.ErrSerialization)
}
