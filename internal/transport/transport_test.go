package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-ingest/internal/errors"
)

func newTestClient() *Client {
	return New(Config{Timeout: 2 * time.Second, RPS: 100, Burst: 100}, nil)
}

func TestFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	c := newTestClient()
	defer c.Close()

	body, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestFetchStatusErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusInternalServerError, ErrServer},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		c := newTestClient()
		_, err := c.Fetch(context.Background(), srv.URL)
		assert.True(t, errors.Is(err, tc.want), "status %d", tc.status)
		c.Close()
		srv.Close()
	}
}

func TestFetchTimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{Timeout: 50 * time.Millisecond, RPS: 100, Burst: 100}, nil)
	defer c.Close()

	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTransport))
}

func TestFetchJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title": "hello"}`))
	}))
	defer srv.Close()

	c := newTestClient()
	defer c.Close()

	var dest struct {
		Title string `json:"title"`
	}
	require.NoError(t, c.FetchJSON(context.Background(), srv.URL, &dest))
	assert.Equal(t, "hello", dest.Title)
}

func TestFetchJSONDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newTestClient()
	defer c.Close()

	var dest map[string]any
	err := c.FetchJSON(context.Background(), srv.URL, &dest)
	assert.True(t, errors.Is(err, errors.ErrTransport))
}
