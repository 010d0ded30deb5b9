// Package snapshots persists the last known whole-table snapshots used for
// offline reads. Payloads are snappy-compressed at rest.
package snapshots

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/models"
)

type Repository interface {
	Put(ctx context.Context, e *models.CacheEntry) error
	Get(ctx context.Context, table string) (*models.CacheEntry, error)
	GetAll(ctx context.Context) ([]*models.CacheEntry, error)
	Delete(ctx context.Context, table string) error
}
