package offline

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/engine"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/models"
	"github.com/dmitrijs2005/offsync/internal/netmon"
	"github.com/dmitrijs2005/offsync/internal/queue"
	"github.com/dmitrijs2005/offsync/internal/store"
	"github.com/dmitrijs2005/offsync/internal/transport"
)

type received struct {
	mu     sync.Mutex
	bodies []string
}

func (r *received) add(b string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, b)
}

func (r *received) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies...)
}

func newAgent(t *testing.T, handler http.HandlerFunc, opts ...engine.Option) (*Agent, *netmon.Monitor, *store.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	mon := netmon.New(logging.Nop())
	a := New(st, mon, transport.NewHTTPExecutor(srv.URL, time.Second), logging.Nop(), opts...)
	t.Cleanup(a.Close)
	return a, mon, st
}

func TestAgent_OfflineCreateRoundTrip(t *testing.T) {
	var got received
	a, mon, _ := newAgent(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.add(r.Method + " " + r.URL.Path + " " + string(b))
		w.WriteHeader(http.StatusCreated)
	})
	ctx := context.Background()
	a.Start(ctx)

	localID, mutationID, err := a.CreateOffline(ctx, CreateRequest{
		Table:   "customers",
		Target:  "/api/customers",
		Payload: map[string]any{"name": "Acme"},
	})
	require.NoError(t, err)
	assert.True(t, models.IsLocalID(localID))
	assert.NotEmpty(t, mutationID)

	st, err := a.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsOnline)
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, 1, st.ShadowCount)
	assert.True(t, st.LastSync.IsZero())

	shadows, err := a.ListShadowRecords(ctx, "customers")
	require.NoError(t, err)
	require.Len(t, shadows, 1)
	assert.Equal(t, "Acme", shadows[0].Payload["name"])

	pending, err := a.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, localID, pending[0].LocalID)
	assert.Equal(t, "application/json", pending[0].Headers["Content-Type"])

	mon.Set(true)

	require.Eventually(t, func() bool {
		s, err := a.Status(ctx)
		return err == nil && s.PendingCount == 0 && s.ShadowCount == 0 && !s.LastSync.IsZero()
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{`POST /api/customers {"name":"Acme"}`}, got.all())
	assert.True(t, a.CurrentNetworkStatus())
}

func TestAgent_CreateOfflineCompensatesWhenEnqueueFails(t *testing.T) {
	a, _, st := newAgent(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()

	_, err := st.DB().ExecContext(ctx, `
		CREATE TRIGGER reject_mutations BEFORE INSERT ON mutations
		BEGIN SELECT RAISE(ABORT, 'queue rejected'); END;`)
	require.NoError(t, err)

	_, _, err = a.CreateOffline(ctx, CreateRequest{Table: "customers", Target: "/api/customers", Payload: map[string]any{"name": "Acme"}})
	require.ErrorIs(t, err, common.ErrStorageUnavailable)

	s, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, s.ShadowCount)
	assert.Zero(t, s.PendingCount)
}

func TestAgent_CreateOfflineRejectsUnencodablePayload(t *testing.T) {
	a, _, _ := newAgent(t, func(w http.ResponseWriter, r *http.Request) {})

	_, _, err := a.CreateOffline(context.Background(), CreateRequest{Table: "t", Target: "/t", Payload: map[string]any{"c": make(chan int)}})
	require.ErrorIs(t, err, common.ErrSerialization)
}

func TestAgent_DrainFailureKeepsMutation(t *testing.T) {
	a, mon, _ := newAgent(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	_, err := a.EnqueueMutation(ctx, queue.EnqueueParams{
		Target: "/api/orders/7", Method: http.MethodDelete, Table: "orders", Operation: models.OperationDelete,
	})
	require.NoError(t, err)

	r, err := a.TriggerDrain(ctx)
	require.NoError(t, err)
	assert.Equal(t, engine.SkipOffline, r.Skipped)

	mon.Set(true)
	r, err = a.TriggerDrain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)

	pending, err := a.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
}

func TestAgent_Snapshots(t *testing.T) {
	a, _, _ := newAgent(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()

	_, err := a.ReadSnapshot(ctx, "customers")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, a.WriteSnapshot(ctx, "customers", []map[string]any{{"id": 1, "name": "Acme"}}))
	require.NoError(t, a.WriteSnapshot(ctx, "customers", []map[string]any{{"id": 2, "name": "Globex"}}))

	var rows []map[string]any
	require.NoError(t, a.ReadSnapshotInto(ctx, "customers", &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Globex", rows[0]["name"])
}

func TestAgent_SubscribeNetworkStatus(t *testing.T) {
	a, mon, _ := newAgent(t, func(w http.ResponseWriter, r *http.Request) {})

	var seen []bool
	unsub := a.SubscribeNetworkStatus(func(online bool) { seen = append(seen, online) })
	mon.Set(true)
	mon.Set(false)
	unsub()
	mon.Set(true)

	assert.Equal(t, []bool{true, false}, seen)
}

func TestAgent_CreateShadowRecordDirect(t *testing.T) {
	a, _, _ := newAgent(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx := context.Background()

	id, err := a.CreateShadowRecord(ctx, "orders", map[string]any{"total": 10})
	require.NoError(t, err)

	list, err := a.ListShadowRecords(ctx, "orders")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, float64(10), list[0].Payload["total"])
}
