// Package transport replays stored requests against the server.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/offsync/internal/common"
)

type Request struct {
	Target  string
	Method  string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Executor sends one request. An error means no response was received;
// a non-2xx response is not an error.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Response, error)
}

// HTTPExecutor resolves relative targets against BaseURL.
type HTTPExecutor struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*HTTPExecutor)

// WithRateLimit caps outgoing requests per second. Zero or less disables it.
func WithRateLimit(perSecond float64) Option {
	return func(e *HTTPExecutor) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(e *HTTPExecutor) { e.client = c }
}

func NewHTTPExecutor(baseURL string, timeout time.Duration, opts ...Option) *HTTPExecutor {
	e := &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *HTTPExecutor) url(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return e.baseURL + target
}

func (e *HTTPExecutor) Execute(ctx context.Context, r Request) (*Response, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %w", common.ErrTransport, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, e.url(r.Target), bytes.NewReader(r.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", common.ErrTransport, err)
	}
	for k, v := range r.Headers {
		// net/http ignores Header["Host"] on outgoing requests.
		if http.CanonicalHeaderKey(k) == "Host" {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", common.ErrTransport, r.Method, r.Target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", common.ErrTransport, err)
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}
