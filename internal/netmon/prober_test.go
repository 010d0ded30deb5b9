package netmon

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/offsync/internal/common"
)

func TestHTTPProber(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.URL + "/health")
	require.NoError(t, p.Probe(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	require.ErrorIs(t, p.Probe(context.Background()), common.ErrTransport)
}

func TestHTTPProber_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewHTTPProber(url).Probe(context.Background())
	require.ErrorIs(t, err, common.ErrTransport)
}

func startHealthServer(t *testing.T) (*health.Server, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return hs, conn
}

func TestGRPCHealthProber(t *testing.T) {
	hs, conn := startHealthServer(t)
	ctx := context.Background()

	require.NoError(t, NewGRPCHealthProberConn(conn, "").Probe(ctx))

	hs.SetServingStatus("offsync", healthpb.HealthCheckResponse_NOT_SERVING)
	p := NewGRPCHealthProberConn(conn, "offsync")
	require.ErrorIs(t, p.Probe(ctx), common.ErrTransport)

	hs.SetServingStatus("offsync", healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, p.Probe(ctx))

	// unknown service
	require.ErrorIs(t, NewGRPCHealthProberConn(conn, "nope").Probe(ctx), common.ErrTransport)
	require.NoError(t, p.Close())
}
