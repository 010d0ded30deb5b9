package netmon

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/offsync/internal/common"
)

// Prober checks whether the server can be reached right now.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HTTPProber issues GET URL and expects a 2xx status.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{URL: url, Client: &http.Client{}}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health check returned %s", common.ErrTransport, resp.Status)
	}
	return nil
}

// GRPCHealthProber asks a grpc.health.v1 server whether Service is SERVING.
// An empty Service checks the server as a whole.
type GRPCHealthProber struct {
	Service string

	client healthpb.HealthClient
	conn   *grpc.ClientConn
}

// NewGRPCHealthProber dials addr without transport security.
func NewGRPCHealthProber(addr, service string) (*GRPCHealthProber, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", addr, err)
	}
	return &GRPCHealthProber{Service: service, client: healthpb.NewHealthClient(conn), conn: conn}, nil
}

// NewGRPCHealthProberConn uses an existing connection, which the caller owns.
func NewGRPCHealthProberConn(cc grpc.ClientConnInterface, service string) *GRPCHealthProber {
	return &GRPCHealthProber{Service: service, client: healthpb.NewHealthClient(cc)}
}

func (p *GRPCHealthProber) Probe(ctx context.Context) error {
	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.Service})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrTransport, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: health status %s", common.ErrTransport, resp.GetStatus())
	}
	return nil
}

func (p *GRPCHealthProber) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
