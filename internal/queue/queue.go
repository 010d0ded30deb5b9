// Package queue is the durable FIFO of writes made while the server could
// not be reached.
//
// Every mutation gets a UUIDv7 id and an enqueue timestamp that is strictly
// greater than the previous one handed out by the same Queue, so listing by
// timestamp replays writes in the order they were made.
package queue

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/store"
)

// EnqueueParams describes a write to be replayed later.
type EnqueueParams struct {
	Target    string
	Method    string
	Headers   map[string]string
	Body      []byte
	Table     string
	Operation models.Operation
	LocalID   string
}

type Queue struct {
	store *store.Store
	log   logging.Logger
	now   func() time.Time

	mu   sync.Mutex
	last int64
}

type Option func(*Queue)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(st *store.Store, log logging.Logger, opts ...Option) *Queue {
	q := &Queue{store: st, log: log, now: time.Now}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue persists a new pending mutation and returns its id. The mutation
// is durable once Enqueue returns without error.
func (q *Queue) Enqueue(ctx context.Context, p EnqueueParams) (string, error) {
	op, err := models.ParseOperation(string(p.Operation))
	if err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate mutation id: %w", err)
	}

	m := &models.PendingMutation{
		ID:         id.String(),
		Target:     p.Target,
		Method:     p.Method,
		Headers:    maps.Clone(p.Headers),
		Body:       append([]byte(nil), p.Body...),
		EnqueuedAt: q.nextTimestamp(),
		Table:      p.Table,
		Operation:  op,
		LocalID:    p.LocalID,
	}

	if err := q.store.Repos().Mutations.Put(ctx, m); err != nil {
		return "", err
	}

	q.log.Debug(ctx, "mutation enqueued", "id", m.ID, "table", m.Table, "operation", m.Operation)
	return m.ID, nil
}

func (q *Queue) nextTimestamp() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts := q.now().UnixNano()
	if ts <= q.last {
		ts = q.last + 1
	}
	q.last = ts
	return time.Unix(0, ts)
}

// ListPending returns a snapshot of the queue, oldest first.
func (q *Queue) ListPending(ctx context.Context) ([]*models.PendingMutation, error) {
	return q.store.Repos().Mutations.GetAll(ctx)
}

// ListPendingByTable returns the queued mutations of one table, oldest first.
func (q *Queue) ListPendingByTable(ctx context.Context, table string) ([]*models.PendingMutation, error) {
	return q.store.Repos().Mutations.GetAllByTable(ctx, table)
}

// Remove deletes a mutation; removing an unknown id succeeds.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.store.Repos().Mutations.Delete(ctx, id)
}

// IncrementRetry records one more failed replay of id. When the new count
// exceeds common.MaxRetries the mutation is deleted and evicted is true.
// Read, increment and write-or-delete happen in one transaction.
func (q *Queue) IncrementRetry(ctx context.Context, id string) (count int, evicted bool, err error) {
	err = q.store.InTx(ctx, func(ctx context.Context, r *store.Repositories) error {
		m, err := r.Mutations.Get(ctx, id)
		if err != nil {
			return err
		}

		m.RetryCount++
		count = m.RetryCount
		if m.RetryCount > common.MaxRetries {
			evicted = true
			return r.Mutations.Delete(ctx, id)
		}
		return r.Mutations.Put(ctx, m)
	})
	if err != nil {
		return 0, false, err
	}
	return count, evicted, nil
}

func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.store.Repos().Mutations.Count(ctx)
}

// MarkDrained records t as the end of the latest drain cycle.
func (q *Queue) MarkDrained(ctx context.Context, t time.Time) error {
	return q.store.Repos().Metadata.Set(ctx, common.LastSyncMetadataKey, []byte(t.UTC().Format(time.RFC3339Nano)))
}

// LastDrained returns the time recorded by MarkDrained, or the zero time.
func (q *Queue) LastDrained(ctx context.Context) (time.Time, error) {
	v, err := q.store.Repos().Metadata.Get(ctx, common.LastSyncMetadataKey)
	if err != nil || v == nil {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad %s value %q: %w", common.ErrSerialization, common.LastSyncMetadataKey, v, err)
	}
	return t, nil
}
