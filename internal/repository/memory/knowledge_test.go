package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/domain/knowledge"
	"strategist/pkg/errors"
)

func newRepo(t *testing.T) *KnowledgeRepository {
	t.Helper()
	repo, err := NewDefaultKnowledgeRepository()
	require.NoError(t, err)
	return repo
}

func TestIndicatorsAreRankedAndFiltered(t *testing.T) {
	repo := newRepo(t)

	recs, err := repo.GetIndicatorsForStrategyType(context.Background(), "momentum", 0.7, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "RSI", recs[0].Name)
	assert.Equal(t, "MACD", recs[1].Name)
	assert.Equal(t, "ADX", recs[2].Name)
	for _, r := range recs {
		assert.GreaterOrEqual(t, r.Score, 0.7)
		assert.NotEmpty(t, r.Explanation)
	}
}

func TestSizingAndRiskLookups(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	sizing, err := repo.GetPositionSizingForStrategyType(ctx, "Mean Reversion", 0.7, 1)
	require.NoError(t, err)
	require.Len(t, sizing, 1)
	assert.Equal(t, "fixed_fractional", sizing[0].Name)

	risk, err := repo.GetRiskManagementForStrategyType(ctx, "momentum", 0.7, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"trailing_stop", "stop_loss"}, []string{risk[0].Name, risk[1].Name})

	none, err := repo.GetRiskManagementForStrategyType(ctx, "unknown", 0.7, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGetParametersForIndicator(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	params, err := repo.GetParametersForIndicator(ctx, "macd")
	require.NoError(t, err)
	require.Len(t, params, 3)
	require.NotNil(t, params[0].DefaultValue)
	assert.Equal(t, 12.0, *params[0].DefaultValue)

	adx, err := repo.GetParametersForIndicator(ctx, "ADX")
	require.NoError(t, err)
	require.Len(t, adx, 1)
	assert.Nil(t, adx[0].DefaultValue)

	obv, err := repo.GetParametersForIndicator(ctx, "OBV")
	require.NoError(t, err)
	assert.Empty(t, obv)

	_, err = repo.GetParametersForIndicator(ctx, "momentum")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestGetStrategyTemplate(t *testing.T) {
	repo := newRepo(t)

	tmpl, err := repo.GetStrategyTemplate(context.Background(), "rsi")
	require.NoError(t, err)
	assert.Equal(t, 14.0, tmpl.DefaultParameters["period"])
	assert.Equal(t, []string{"RSI", "SMA"}, tmpl.Indicators)

	_, err = repo.GetStrategyTemplate(context.Background(), "RSI")
	assert.NoError(t, err, "lookup is case insensitive")

	_, err = repo.GetStrategyTemplate(context.Background(), "grid")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBundledGraphServesEveryStrategyTemplate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	for _, name := range []string{"momentum", "mean_reversion", "moving_average_crossover", "rsi", "breakout"} {
		t.Run(name, func(t *testing.T) {
			tmpl, err := repo.GetStrategyTemplate(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, name, tmpl.StrategyType)
			assert.NotEmpty(t, tmpl.DefaultParameters)
			assert.NotEmpty(t, tmpl.Indicators)
		})
	}

	params, err := repo.GetParametersForIndicator(ctx, "rsi")
	require.NoError(t, err, "the RSI indicator shares its name with the rsi strategy")
	require.Len(t, params, 1)
	assert.Equal(t, "period", params[0].Name)

	recs, err := repo.GetIndicatorsForStrategyType(ctx, "rsi", 0, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "RSI", recs[0].Name)
}

func TestGetRelatedConcepts(t *testing.T) {
	repo := newRepo(t)

	concepts, err := repo.GetRelatedConcepts(context.Background(), "volatility", 0)
	require.NoError(t, err)

	names := make([]string, 0, len(concepts))
	for _, c := range concepts {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"ATR", "Bollinger Bands", "mean_reversion"}, names)
	assert.Equal(t, knowledge.KindIndicator, concepts[0].Kind)
}

func TestSeedReplacesGraph(t *testing.T) {
	repo := newRepo(t)
	err := repo.Seed(context.Background(), &knowledge.Graph{
		Nodes: []knowledge.Node{{Name: "grid", Kind: knowledge.KindStrategy}, {Name: "ATR", Kind: knowledge.KindIndicator}},
		Edges: []knowledge.Edge{{From: "grid", To: "ATR", Rel: knowledge.RelUsesIndicator, Weight: 0.8}},
	})
	require.NoError(t, err)

	recs, err := repo.GetIndicatorsForStrategyType(context.Background(), "momentum", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = repo.GetIndicatorsForStrategyType(context.Background(), "grid", 0, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	assert.Error(t, repo.Seed(context.Background(), nil))
}

func TestParseGraphRejectsDanglingEdges(t *testing.T) {
	_, err := ParseGraph([]byte(`
nodes:
  - {name: momentum, kind: strategy}
edges:
  - {from: momentum, to: RSI, rel: USES_INDICATOR, weight: 0.9}
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestParseGraphRejectsDuplicateNodes(t *testing.T) {
	_, err := ParseGraph([]byte(`
nodes:
  - {name: RSI, kind: indicator}
  - {name: rsi, kind: indicator}
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "duplicate node")
}

func TestSeedKeepsGraphOnInvalidInput(t *testing.T) {
	repo := newRepo(t)
	err := repo.Seed(context.Background(), &knowledge.Graph{
		Nodes: []knowledge.Node{{Name: "grid", Kind: knowledge.KindStrategy}, {Name: "Grid", Kind: knowledge.KindStrategy}},
	})
	require.Error(t, err)

	_, err = repo.GetStrategyTemplate(context.Background(), "momentum")
	assert.NoError(t, err)
}
