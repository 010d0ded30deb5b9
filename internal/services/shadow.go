package services

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/repositories/shadows"
)

// ShadowService manages optimistic local records shown in place of entities
// the server has not confirmed yet.
type ShadowService interface {
	Create(ctx context.Context, table string, payload map[string]any) (string, error)
	List(ctx context.Context, table string) ([]*models.ShadowRecord, error)
	Get(ctx context.Context, localID string) (*models.ShadowRecord, error)
	Remove(ctx context.Context, localID string) error
	Count(ctx context.Context) (int, error)
}

type shadowService struct {
	repo shadows.Repository
	now  func() time.Time
}

func NewShadowService(repo shadows.Repository) ShadowService {
	return &shadowService{repo: repo, now: time.Now}
}

// Create stores a copy of payload tagged with models.LocalOriginField and
// returns its local id. The caller's map is left untouched.
func (s *shadowService) Create(ctx context.Context, table string, payload map[string]any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate local id: %w", err)
	}
	localID := common.LocalIDPrefix + id.String()

	p := maps.Clone(payload)
	if p == nil {
		p = make(map[string]any, 1)
	}
	p[models.LocalOriginField] = true

	err = s.repo.Put(ctx, &models.ShadowRecord{
		ID:        localID,
		Table:     table,
		Payload:   p,
		CreatedAt: s.now(),
	})
	if err != nil {
		return "", err
	}
	return localID, nil
}

func (s *shadowService) List(ctx context.Context, table string) ([]*models.ShadowRecord, error) {
	return s.repo.GetAllByTable(ctx, table)
}

func (s *shadowService) Get(ctx context.Context, localID string) (*models.ShadowRecord, error) {
	return s.repo.Get(ctx, localID)
}

// Remove is idempotent.
func (s *shadowService) Remove(ctx context.Context, localID string) error {
	return s.repo.Delete(ctx, localID)
}

func (s *shadowService) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
