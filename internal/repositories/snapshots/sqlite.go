package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/golang/snappy"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Put replaces the snapshot of e.Table wholesale.
func (r *SQLiteRepository) Put(ctx context.Context, e *models.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (tbl, data, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(tbl) DO UPDATE SET data = excluded.data, last_updated = excluded.last_updated
	`, e.Table, snappy.Encode(nil, e.Data), e.LastUpdated.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: failed to put snapshot[%s]: %w", common.ErrStorageUnavailable, e.Table, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, table string) (*models.CacheEntry, error) {
	e, err := scan(r.db.QueryRowContext(ctx, `SELECT tbl, data, last_updated FROM snapshots WHERE tbl = ?`, table))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot[%s]: %w", table, common.ErrNotFound)
	}
	return e, err
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.CacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT tbl, data, last_updated FROM snapshots ORDER BY tbl`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list snapshots: %w", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	result := make([]*models.CacheEntry, 0)
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate snapshots: %w", common.ErrStorageUnavailable, err)
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, table string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE tbl = ?`, table); err != nil {
		return fmt.Errorf("%w: failed to delete snapshot[%s]: %w", common.ErrStorageUnavailable, table, err)
	}
	return nil
}

func scan(row interface{ Scan(dest ...any) error }) (*models.CacheEntry, error) {
	var (
		e           models.CacheEntry
		compressed  []byte
		lastUpdated int64
	)
	err := row.Scan(&e.Table, &compressed, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan snapshot: %w", common.ErrStorageUnavailable, err)
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decompress snapshot[%s]: %w", common.ErrSerialization, e.Table, err)
	}
	e.Data = data
	e.LastUpdated = time.Unix(0, lastUpdated)
	return &e, nil
}
