package services

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/repositories/snapshots"
)

// CacheService keeps the last known snapshot of whole tables for offline
// reads. A write replaces the previous snapshot; nothing is merged and no
// freshness is promised.
type CacheService interface {
	WriteSnapshot(ctx context.Context, table string, data any) error
	ReadSnapshot(ctx context.Context, table string) (*models.CacheEntry, error)
	ReadSnapshotInto(ctx context.Context, table string, v any) (time.Time, error)
}

type cacheService struct {
	repo snapshots.Repository
	now  func() time.Time
}

func NewCacheService(repo snapshots.Repository) CacheService {
	return &cacheService{repo: repo, now: time.Now}
}

func (s *cacheService) WriteSnapshot(ctx context.Context, table string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("%w: snapshot[%s]: %w", common.ErrSerialization, table, err)
	}

	return s.repo.Put(ctx, &models.CacheEntry{
		Table:       table,
		Data:        raw,
		LastUpdated: s.now(),
	})
}

// ReadSnapshot returns common.ErrNotFound if table was never written.
func (s *cacheService) ReadSnapshot(ctx context.Context, table string) (*models.CacheEntry, error) {
	return s.repo.Get(ctx, table)
}

// ReadSnapshotInto decodes the snapshot into v and returns when it was taken.
func (s *cacheService) ReadSnapshotInto(ctx context.Context, table string, v any) (time.Time, error) {
	e, err := s.repo.Get(ctx, table)
	if err != nil {
		return time.Time{}, err
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return time.Time{}, fmt.Errorf("%w: snapshot[%s]: %w", common.ErrSerialization, table, err)
	}
	return e.LastUpdated, nil
}
