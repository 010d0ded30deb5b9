package mutations

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

const selectColumns = `SELECT id, target, method, headers, body, enqueued_at, retry_count, tbl, operation, local_id FROM mutations`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Put inserts m or overwrites the row with the same id.
func (r *SQLiteRepository) Put(ctx context.Context, m *models.PendingMutation) error {
	headers, err := json.Marshal(m.Headers)
	if err != nil {
		return fmt.Errorf("%w: failed to encode headers of mutation %s: %w", common.ErrSerialization, m.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO mutations (id, target, method, headers, body, enqueued_at, retry_count, tbl, operation, local_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET target = excluded.target,
			method = excluded.method,
			headers = excluded.headers,
			body = excluded.body,
			enqueued_at = excluded.enqueued_at,
			retry_count = excluded.retry_count,
			tbl = excluded.tbl,
			operation = excluded.operation,
			local_id = excluded.local_id
	`, m.ID, m.Target, m.Method, headers, m.Body, m.EnqueuedAt.UnixNano(), m.RetryCount,
		m.Table, string(m.Operation), m.LocalID)
	if err != nil {
		return fmt.Errorf("%w: failed to put mutation %s: %w", common.ErrStorageUnavailable, m.ID, err)
	}
	return nil
}

// Get returns the mutation with the given id or common.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.PendingMutation, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	m, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mutation %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetAll lists every pending mutation, oldest first.
func (r *SQLiteRepository) GetAll(ctx context.Context) ([]*models.PendingMutation, error) {
	return r.list(ctx, selectColumns+` ORDER BY enqueued_at, id`)
}

// GetAllByTable lists the pending mutations of one table, oldest first.
func (r *SQLiteRepository) GetAllByTable(ctx context.Context, table string) ([]*models.PendingMutation, error) {
	return r.list(ctx, selectColumns+` WHERE tbl = ? ORDER BY enqueued_at, id`, table)
}

// Delete removes the mutation. Deleting an absent id is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mutations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete mutation %s: %w", common.ErrStorageUnavailable, id, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM mutations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count mutations: %w", common.ErrStorageUnavailable, err)
	}
	return n, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.PendingMutation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select mutations: %w", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	result := make([]*models.PendingMutation, 0)
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate mutations: %w", common.ErrStorageUnavailable, err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.PendingMutation, error) {
	var (
		m          models.PendingMutation
		headers    []byte
		enqueuedAt int64
		operation  string
	)
	err := s.Scan(&m.ID, &m.Target, &m.Method, &headers, &m.Body, &enqueuedAt,
		&m.RetryCount, &m.Table, &operation, &m.LocalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan mutation: %w", common.ErrStorageUnavailable, err)
	}

	if err := json.Unmarshal(headers, &m.Headers); err != nil {
		return nil, fmt.Errorf("%w: failed to decode headers of mutation %s: %w", common.ErrSerialization, m.ID, err)
	}
	m.EnqueuedAt = time.Unix(0, enqueuedAt)
	m.Operation = models.Operation(operation)
	return &m, nil
}
