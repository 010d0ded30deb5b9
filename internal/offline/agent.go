// Package offline assembles the queue, the sync engine and the cache and
// shadow record facades behind a single Agent.
//
// Typical use while the server may be unreachable:
//
//	localID, _, err := agent.CreateOffline(ctx, offline.CreateRequest{
//	    Table:   "customers",
//	    Target:  "/api/customers",
//	    Payload: map[string]any{"name": "Acme"},
//	})
//
// The shadow record identified by localID can be listed right away; it
// disappears once the server accepts the queued write.
package offline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/engine"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/netmon"
	"github.com/dmitrijs2005/offsync/internal/queue"
	"github.com/dmitrijs2005/offsync/internal/services"
	"github.com/dmitrijs2005/offsync/internal/store"
	"github.com/dmitrijs2005/offsync/internal/transport"
)

type Agent struct {
	queue   *queue.Queue
	cache   services.CacheService
	shadows services.ShadowService
	monitor *netmon.Monitor
	engine  *engine.Engine
	log     logging.Logger
}

func New(st *store.Store, mon *netmon.Monitor, exec transport.Executor, log logging.Logger, opts ...engine.Option) *Agent {
	q := queue.New(st, log.With("component", "queue"))
	shadows := services.NewShadowService(st.Repos().Shadows)

	return &Agent{
		queue:   q,
		cache:   services.NewCacheService(st.Repos().Snapshots),
		shadows: shadows,
		monitor: mon,
		engine:  engine.New(q, shadows, mon, exec, log.With("component", "engine"), opts...),
		log:     log,
	}
}

// Start makes the engine drain on every reconnection.
func (a *Agent) Start(ctx context.Context) {
	a.engine.Start(ctx)
}

func (a *Agent) Close() {
	a.engine.Close()
}

func (a *Agent) Engine() *engine.Engine {
	return a.engine
}

func (a *Agent) EnqueueMutation(ctx context.Context, p queue.EnqueueParams) (string, error) {
	return a.queue.Enqueue(ctx, p)
}

func (a *Agent) ListPending(ctx context.Context) ([]*models.PendingMutation, error) {
	return a.queue.ListPending(ctx)
}

func (a *Agent) TriggerDrain(ctx context.Context) (*engine.Report, error) {
	return a.engine.TriggerDrain(ctx)
}

func (a *Agent) SubscribeNetworkStatus(fn func(online bool)) (unsubscribe func()) {
	return a.monitor.Subscribe(fn)
}

func (a *Agent) CurrentNetworkStatus() bool {
	return a.monitor.Current()
}

func (a *Agent) WriteSnapshot(ctx context.Context, table string, data any) error {
	return a.cache.WriteSnapshot(ctx, table, data)
}

func (a *Agent) ReadSnapshot(ctx context.Context, table string) (*models.CacheEntry, error) {
	return a.cache.ReadSnapshot(ctx, table)
}

func (a *Agent) ReadSnapshotInto(ctx context.Context, table string, v any) error {
	_, err := a.cache.ReadSnapshotInto(ctx, table, v)
	return err
}

func (a *Agent) CreateShadowRecord(ctx context.Context, table string, payload map[string]any) (string, error) {
	return a.shadows.Create(ctx, table, payload)
}

func (a *Agent) ListShadowRecords(ctx context.Context, table string) ([]*models.ShadowRecord, error) {
	return a.shadows.List(ctx, table)
}

func (a *Agent) Status(ctx context.Context) (models.Status, error) {
	pending, err := a.queue.Count(ctx)
	if err != nil {
		return models.Status{}, err
	}
	shadows, err := a.shadows.Count(ctx)
	if err != nil {
		return models.Status{}, err
	}
	last, err := a.queue.LastDrained(ctx)
	if err != nil {
		return models.Status{}, err
	}

	return models.Status{
		IsOnline:     a.monitor.Current(),
		PendingCount: pending,
		ShadowCount:  shadows,
		LastSync:     last,
	}, nil
}

// CreateRequest describes an entity created while offline. Method defaults
// to POST; a JSON content type is added unless Headers sets one.
type CreateRequest struct {
	Table   string
	Target  string
	Method  string
	Headers map[string]string
	Payload map[string]any
}

// CreateOffline stores a shadow record for the new entity and queues the
// write that will create it on the server. If the write cannot be queued
// the shadow record is removed again.
func (a *Agent) CreateOffline(ctx context.Context, r CreateRequest) (localID, mutationID string, err error) {
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s payload: %w", common.ErrSerialization, r.Table, err)
	}

	localID, err = a.shadows.Create(ctx, r.Table, r.Payload)
	if err != nil {
		return "", "", err
	}

	method := r.Method
	if method == "" {
		method = http.MethodPost
	}
	headers := map[string]string{"Content-Type": "application/json"}
	for k, v := range r.Headers {
		headers[k] = v
	}

	mutationID, err = a.queue.Enqueue(ctx, queue.EnqueueParams{
		Target:    r.Target,
		Method:    method,
		Headers:   headers,
		Body:      body,
		Table:     r.Table,
		Operation: models.OperationCreate,
		LocalID:   localID,
	})
	if err != nil {
		if rerr := a.shadows.Remove(context.WithoutCancel(ctx), localID); rerr != nil {
			a.log.Error(ctx, "failed to remove orphaned shadow record", "local_id", localID, "error", rerr)
		}
		return "", "", err
	}

	a.log.Info(ctx, "created offline", "table", r.Table, "local_id", localID, "mutation", mutationID)
	return localID, mutationID, nil
}
