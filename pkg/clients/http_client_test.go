package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHTTPClient() *HTTPClient {
	cfg := DefaultHTTPConfig()
	cfg.MinRequestInterval = time.Millisecond
	return NewHTTPClient(cfg, zap.NewNop())
}

func TestGetAppliesHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "sheetsync/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestHTTPClient()
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL, map[string]string{"X-Api-Key": "secret"})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetStatsCountsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	client := newTestHTTPClient()
	defer client.Close()

	for i := 0; i < 3; i++ {
		resp, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}

	server.Close()
	_, err := client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)

	stats := client.GetStats()
	assert.Equal(t, int64(4), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
}

func TestDoWaitsOutRequestInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultHTTPConfig()
	cfg.MinRequestInterval = 30 * time.Millisecond
	client := NewHTTPClient(cfg, zap.NewNop())
	defer client.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
		resp.Body.Close()
	}

	// First request is immediate, the next two wait out the interval.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
