package shadows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/goccy/go-json"
)

const selectColumns = `SELECT id, tbl, payload, created_at FROM shadow_records`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, s *models.ShadowRecord) error {
	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return fmt.Errorf("%w: failed to encode shadow record %s: %w", common.ErrSerialization, s.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO shadow_records (id, tbl, payload, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET tbl = excluded.tbl,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, s.ID, s.Table, payload, s.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("%w: failed to put shadow record %s: %w", common.ErrStorageUnavailable, s.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.ShadowRecord, error) {
	s, err := scan(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shadow record %s: %w", id, common.ErrNotFound)
	}
	return s, err
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.ShadowRecord, error) {
	return r.list(ctx, selectColumns+` ORDER BY created_at, id`)
}

// GetAllByTable lists the shadow records of one table in creation order.
func (r *SQLiteRepository) GetAllByTable(ctx context.Context, table string) ([]*models.ShadowRecord, error) {
	return r.list(ctx, selectColumns+` WHERE tbl = ? ORDER BY created_at, id`, table)
}

// Delete is idempotent.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shadow_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: failed to delete shadow record %s: %w", common.ErrStorageUnavailable, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM shadow_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count shadow records: %w", common.ErrStorageUnavailable, err)
	}
	return n, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.ShadowRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select shadow records: %w", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	result := make([]*models.ShadowRecord, 0)
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate shadow records: %w", common.ErrStorageUnavailable, err)
	}
	return result, nil
}

func scan(row interface{ Scan(dest ...any) error }) (*models.ShadowRecord, error) {
	var (
		s         models.ShadowRecord
		payload   []byte
		createdAt int64
	)
	err := row.Scan(&s.ID, &s.Table, &payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan shadow record: %w", common.ErrStorageUnavailable, err)
	}

	if err := json.Unmarshal(payload, &s.Payload); err != nil {
		return nil, fmt.Errorf("%w: failed to decode shadow record %s: %w", common.ErrSerialization, s.ID, err)
	}
	s.CreatedAt = time.Unix(0, createdAt)
	return &s, nil
}
