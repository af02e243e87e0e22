package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/testsupport"
	"strategist/pkg/errors"
)

func TestLocalLimiterBurst(t *testing.T) {
	limiter := NewLocalLimiter(ProviderNameOpenAI, 1, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
	assert.Equal(t, 1.0, limiter.Limit())
}

func TestLocalLimiterWaitRespectsContext(t *testing.T) {
	limiter := NewLocalLimiter(ProviderNameOpenAI, 0.01, 1)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx))
}

func TestFactoryCreate(t *testing.T) {
	f := NewRateLimiterFactory(nil)

	_, isNoop := f.Create(ProviderNameOpenAI, RateLimitConfig{}).(*NoOpLimiter)
	assert.True(t, isNoop)

	_, isLocal := f.Create(ProviderNameOpenAI, RateLimitConfig{RPS: 2, Burst: 1}).(*LocalLimiter)
	assert.True(t, isLocal)
}

func TestRateLimitErrorMatchesSentinel(t *testing.T) {
	err := &RateLimitError{Provider: ProviderNameGoogle, Limit: 1, Err: context.DeadlineExceeded}
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "google")
}

func TestRedisRateLimiterBurst(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	rdb := testsupport.NewRedisClient(t, testsupport.RedisConfigFromEnv(t), "strategist:rate_limit:")

	limiter := NewRedisRateLimiter(rdb, ProviderName("test"), 1, 2)
	ctx := context.Background()
	require.NoError(t, limiter.Reset(ctx))
	t.Cleanup(func() { _ = limiter.Reset(context.Background()) })

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}
