package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(10, 3)

	stats := limiter.GetStats()
	assert.Equal(t, float64(10), stats.Rate)
	assert.Equal(t, 3, stats.Burst)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow())
	}
	assert.False(t, limiter.Allow())
}

func TestIntervalRateLimiterRate(t *testing.T) {
	limiter := NewIntervalRateLimiter(600 * time.Millisecond)

	stats := limiter.GetStats()
	assert.InDelta(t, 1.0/0.6, stats.Rate, 0.01)
	assert.Equal(t, 1, stats.Burst)
}

func TestTokenBucketAllow(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(10, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	stats := limiter.GetStats()
	assert.Equal(t, int64(2), stats.AllowedRequests)
	assert.Equal(t, int64(1), stats.BlockedRequests)
}

func TestTokenBucketRefill(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(100, 1)

	require.True(t, limiter.Allow())
	require.False(t, limiter.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, limiter.Allow())
}

func TestTokenBucketWait(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(100, 1)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(0.001, 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIntervalRateLimiterSpacing(t *testing.T) {
	limiter := NewIntervalRateLimiter(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}

	// First request is immediate, the next two wait out the interval.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSetBurstClampsTokens(t *testing.T) {
	limiter := NewTokenBucketRateLimiter(1, 10)
	limiter.SetBurst(2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}
