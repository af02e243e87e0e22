package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/domain/knowledge"
	kgsvc "strategist/internal/knowledge"
	"strategist/internal/metrics"
	"strategist/internal/testsupport"
	"strategist/pkg/errors"
)

type countingRepo struct {
	knowledge.Repository
	calls int
	err   error
}

func (c *countingRepo) GetIndicatorsForStrategyType(_ context.Context, _ string, _ float64, _ int) ([]knowledge.Recommendation, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []knowledge.Recommendation{{Name: "RSI", Explanation: "momentum", Score: 0.9}}, nil
}

func (c *countingRepo) GetStrategyTemplate(_ context.Context, strategyType string) (*knowledge.StrategyTemplate, error) {
	c.calls++
	return nil, errors.Wrapf(errors.ErrNotFound, "strategy type %s", strategyType)
}

func TestCachedKnowledgeRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewRedisClient(t, testsupport.RedisConfigFromEnv(t), KeyPrefix)
	next := &countingRepo{}
	repo := NewCachedKnowledgeRepository(next, client, time.Minute, "test")
	ctx := context.Background()

	t.Run("second read is served from cache", func(t *testing.T) {
		first, err := repo.GetIndicatorsForStrategyType(ctx, "Momentum", 0.7, 3)
		require.NoError(t, err)
		second, err := repo.GetIndicatorsForStrategyType(ctx, "momentum", 0.7, 3)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("different arguments miss", func(t *testing.T) {
		_, err := repo.GetIndicatorsForStrategyType(ctx, "momentum", 0.5, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		_, err := repo.GetStrategyTemplate(ctx, "grid")
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		_, err = repo.GetStrategyTemplate(ctx, "grid")
		assert.True(t, errors.Is(err, errors.ErrNotFound))
		assert.Equal(t, 4, next.calls)
	})

	t.Run("invalidate clears entries", func(t *testing.T) {
		require.NoError(t, repo.Invalidate(ctx))
		_, err := repo.GetIndicatorsForStrategyType(ctx, "momentum", 0.7, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, next.calls)
	})

	t.Run("undecodable entries are reloaded", func(t *testing.T) {
		testsupport.SeedRedis(t, client, map[string]any{
			repo.key("indicators", "breakout", 0.7, 3): "not a list",
		})
		recs, err := repo.GetIndicatorsForStrategyType(ctx, "Breakout", 0.7, 3)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, 6, next.calls)
	})
}

func TestCachedKnowledgeRepositoryCountsEachQueryOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := testsupport.NewRedisClient(t, testsupport.RedisConfigFromEnv(t), KeyPrefix)
	const backend = "cache_metrics_test"
	repo := NewCachedKnowledgeRepository(kgsvc.Instrument(&countingRepo{}, backend), client, time.Minute, backend)
	ctx := context.Background()

	success := metrics.KnowledgeQueries.WithLabelValues(backend, "indicators", "success")
	hits := metrics.KnowledgeQueries.WithLabelValues(backend, "indicators", "cache_hit")
	before, beforeHits := testutil.ToFloat64(success), testutil.ToFloat64(hits)

	for i := 0; i < 3; i++ {
		_, err := repo.GetIndicatorsForStrategyType(ctx, "momentum", 0.7, 3)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(success)-before)
	assert.Equal(t, 2.0, testutil.ToFloat64(hits)-beforeHits)
}
