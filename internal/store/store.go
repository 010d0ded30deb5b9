// Package store opens the local SQLite database that backs the pending
// mutation queue, the shadow records, the table snapshots and the metadata
// collection, and hands out repositories bound either to the database or to
// a transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/migrations"
	"github.com/dmitrijs2005/offsync/internal/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/repositories/mutations"
	"github.com/dmitrijs2005/offsync/internal/repositories/shadows"
	"github.com/dmitrijs2005/offsync/internal/repositories/snapshots"

	_ "modernc.org/sqlite"
)

// Repositories groups one repository per collection, all bound to the same
// handle.
type Repositories struct {
	Mutations mutations.Repository
	Shadows   shadows.Repository
	Snapshots snapshots.Repository
	Metadata  metadata.Repository
}

func NewRepositories(db dbx.DBTX) *Repositories {
	return &Repositories{
		Mutations: mutations.NewSQLiteRepository(db),
		Shadows:   shadows.NewSQLiteRepository(db),
		Snapshots: snapshots.NewSQLiteRepository(db),
		Metadata:  metadata.NewSQLiteRepository(db),
	}
}

type Store struct {
	db    *sql.DB
	repos *Repositories
}

// Open opens (creating if needed) the database at path and migrates it.
//
// The pool holds a single connection: every transaction is serialized and a
// committed write is visible to the next reader.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageUnavailable, path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorageUnavailable, path, err)
	}

	if err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate %s: %w", common.ErrStorageUnavailable, path, err)
	}

	return &Store{db: db, repos: NewRepositories(db)}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(FULL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// Repos returns repositories bound to the database; each call on them is its
// own implicit transaction.
func (s *Store) Repos() *Repositories {
	return s.repos
}

// InTx runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, NewRepositories(tx))
	})
}

// DB exposes the underlying handle for diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
