package mutations

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/models"
)

type Repository interface {
	Put(ctx context.Context, m *models.PendingMutation) error
	Get(ctx context.Context, id string) (*models.PendingMutation, error)
	GetAll(ctx context.Context) ([]*models.PendingMutation, error)
	GetAllByTable(ctx context.Context, table string) ([]*models.PendingMutation, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
