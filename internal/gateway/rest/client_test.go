package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"exalted/internal/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleepRetrier(attempts int) *retry.Retrier {
	r := retry.New(retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond}, nil)
	r.WithSleep(func(context.Context, time.Duration) error { return nil })
	return r
}

func TestDoSendsHeadersAndQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/base/v2/thing", r.URL.Path)
		assert.Equal(t, "open", r.URL.Query().Get("status"))
		assert.Equal(t, "k", r.Header.Get("X-Key"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, err := NewClient("test", srv.URL+"/base/", time.Second, nil)
	require.NoError(t, err)
	c.SetHeader("X-Key", "k")

	var out struct{ OK bool }
	require.NoError(t, c.DoJSON(context.Background(), http.MethodGet, "v2/thing?status=open", nil, &out))
	assert.True(t, out.OK)
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := NewClient("test", srv.URL, time.Second, noSleepRetrier(5))
	require.NoError(t, err)
	_, err = c.Do(context.Background(), http.MethodGet, "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoReturnsAPIErrorWithoutRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"insufficient buying power"}`))
	}))
	defer srv.Close()

	c, err := NewClient("test", srv.URL, time.Second, noSleepRetrier(5))
	require.NoError(t, err)
	_, err = c.Do(context.Background(), http.MethodPost, "/v2/orders", map[string]string{"a": "b"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Contains(t, apiErr.Body, "insufficient buying power")
	assert.False(t, apiErr.Transient())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))
}

func TestDoExhaustsOnPersistentServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient("test", srv.URL, time.Second, noSleepRetrier(2))
	require.NoError(t, err)
	_, err = c.Do(context.Background(), http.MethodGet, "/x", nil)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	_, err := NewClient("test", " ", time.Second, nil)
	assert.Error(t, err)
}
