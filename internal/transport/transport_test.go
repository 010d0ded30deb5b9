package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/offsync/internal/common"
)

func TestExecute_ReplaysVerbatim(t *testing.T) {
	type seen struct {
		method, path, ctype string
		body                []byte
	}
	ch := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ch <- seen{r.Method, r.URL.Path, r.Header.Get("Content-Type"), b}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":42}`))
	}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL+"/", time.Second)
	resp, err := e.Execute(context.Background(), Request{
		Target:  "api/customers",
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"name":"Acme"}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.JSONEq(t, `{"id":42}`, string(resp.Body))

	got := <-ch
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/customers", got.path)
	assert.Equal(t, "application/json", got.ctype)
	assert.Equal(t, `{"name":"Acme"}`, string(got.body))
}

func TestExecute_HostHeaderSetsRequestHost(t *testing.T) {
	hosts := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hosts <- r.Host
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := NewHTTPExecutor(srv.URL, time.Second).Execute(context.Background(), Request{
		Target:  "/api/customers",
		Method:  http.MethodGet,
		Headers: map[string]string{"host": "api.example.test"},
	})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "api.example.test", <-hosts)
}

func TestExecute_AbsoluteTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := NewHTTPExecutor("http://unused.invalid", time.Second)
	resp, err := e.Execute(context.Background(), Request{Target: srv.URL + "/x", Method: http.MethodDelete})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.Status)
}

func TestExecute_NonSuccessIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "conflict", http.StatusConflict)
	}))
	defer srv.Close()

	resp, err := NewHTTPExecutor(srv.URL, time.Second).Execute(context.Background(), Request{Target: "/", Method: http.MethodPut})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusConflict, resp.Status)
}

func TestExecute_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPExecutor(url, time.Second).Execute(context.Background(), Request{Target: "/", Method: http.MethodGet})
	require.ErrorIs(t, err, common.ErrTransport)
}

func TestExecute_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	e := NewHTTPExecutor(srv.URL, time.Second, WithRateLimit(0.001))
	ctx := context.Background()

	_, err := e.Execute(ctx, Request{Target: "/", Method: http.MethodGet})
	require.NoError(t, err)

	// the single token is spent; the next call would wait far past the deadline
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = e.Execute(ctx, Request{Target: "/", Method: http.MethodGet})
	require.ErrorIs(t, err, common.ErrTransport)
}

func TestResponseOK(t *testing.T) {
	var nilResp *Response
	assert.False(t, nilResp.OK())
	assert.True(t, (&Response{Status: 200}).OK())
	assert.True(t, (&Response{Status: 299}).OK())
	assert.False(t, (&Response{Status: 300}).OK())
	assert.False(t, (&Response{Status: 500}).OK())
}
