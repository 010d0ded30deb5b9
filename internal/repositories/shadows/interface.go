// Package shadows persists optimistic local records that stand in for
// entities created while offline.
package shadows

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/models"
)

type Repository interface {
	Put(ctx context.Context, s *models.ShadowRecord) error
	Get(ctx context.Context, id string) (*models.ShadowRecord, error)
	GetAll(ctx context.Context) ([]*models.ShadowRecord, error)
	GetAllByTable(ctx context.Context, table string) ([]*models.ShadowRecord, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
