package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/domain/knowledge"
	"strategist/internal/repository/memory"
	"strategist/internal/testsupport"
	"strategist/pkg/errors"
)

func newSeededRepository(t *testing.T) *KnowledgeRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	repo := NewKnowledgeRepository(testDB.Tx())
	ctx := context.Background()

	require.NoError(t, repo.Migrate(ctx))

	graph, err := memory.DefaultGraph()
	require.NoError(t, err)
	require.NoError(t, repo.Seed(ctx, graph))

	return repo
}

func TestKnowledgeRepository_Indicators(t *testing.T) {
	repo := newSeededRepository(t)

	recs, err := repo.GetIndicatorsForStrategyType(context.Background(), "Momentum", 0.7, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "RSI", recs[0].Name)
	assert.Equal(t, 0.9, recs[0].Score)
	assert.NotEmpty(t, recs[0].Explanation)
}

func TestKnowledgeRepository_NoLimit(t *testing.T) {
	repo := newSeededRepository(t)

	recs, err := repo.GetIndicatorsForStrategyType(context.Background(), "momentum", 0, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

func TestKnowledgeRepository_SizingAndRisk(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()

	sizing, err := repo.GetPositionSizingForStrategyType(ctx, "mean_reversion", 0.7, 1)
	require.NoError(t, err)
	require.Len(t, sizing, 1)
	assert.Equal(t, "fixed_fractional", sizing[0].Name)

	risk, err := repo.GetRiskManagementForStrategyType(ctx, "momentum", 0.7, 2)
	require.NoError(t, err)
	require.Len(t, risk, 2)
	assert.Equal(t, "trailing_stop", risk[0].Name)
}

func TestKnowledgeRepository_IndicatorParameters(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()

	params, err := repo.GetParametersForIndicator(ctx, "Bollinger Bands")
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "period", params[0].Name)
	require.NotNil(t, params[1].DefaultValue)
	assert.Equal(t, 2.0, *params[1].DefaultValue)

	_, err = repo.GetParametersForIndicator(ctx, "momentum")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestKnowledgeRepository_TemplateAndConcepts(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()

	tmpl, err := repo.GetStrategyTemplate(ctx, "moving_average_crossover")
	require.NoError(t, err)
	assert.Equal(t, 10.0, tmpl.DefaultParameters["fast_period"])
	assert.Equal(t, []string{"EMA", "SMA", "ADX"}, tmpl.Indicators)

	rsi, err := repo.GetStrategyTemplate(ctx, "rsi")
	require.NoError(t, err)
	assert.Equal(t, "rsi", rsi.StrategyType)
	assert.Equal(t, []string{"RSI", "SMA"}, rsi.Indicators)

	rsiParams, err := repo.GetParametersForIndicator(ctx, "RSI")
	require.NoError(t, err)
	require.Len(t, rsiParams, 1)

	_, err = repo.GetStrategyTemplate(ctx, "grid")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	concepts, err := repo.GetRelatedConcepts(ctx, "volatility", 2)
	require.NoError(t, err)
	require.Len(t, concepts, 2)
	assert.Equal(t, "ATR", concepts[0].Name)
	assert.Equal(t, knowledge.KindIndicator, concepts[0].Kind)
}

func TestKnowledgeRepository_SeedRejectsDuplicateNodes(t *testing.T) {
	repo := newSeededRepository(t)
	ctx := context.Background()

	err := repo.Seed(ctx, &knowledge.Graph{Nodes: []knowledge.Node{
		{Name: "grid", Kind: knowledge.KindStrategy},
		{Name: "Grid", Kind: knowledge.KindStrategy},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = repo.GetStrategyTemplate(ctx, "momentum")
	assert.NoError(t, err)
}
