package agents

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/domain/market_data"
	"strategist/internal/domain/message"
	"strategist/internal/repository/memory"
	"strategist/pkg/errors"
)

func dataRequest(content map[string]any) *message.Envelope {
	return message.New(message.AgentConversational, message.AgentDataFeature, message.TypeRequest, content,
		map[string]any{message.CtxSessionID: "s1"})
}

func newDataAgent() *DataFeatureAgent {
	return NewDataFeatureAgent(memory.NewMarketDataRepository(nil, 300, marketEnd))
}

func TestDataFeatureAvailability(t *testing.T) {
	ag := newDataAgent()

	out, err := ag.Process(context.Background(), dataRequest(map[string]any{
		message.KeyType:  DataTypeAvailability,
		message.KeyQuery: "what btc data do you have",
		"symbol":         "BTC/USDT",
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, message.TypeResponse, out.MessageType)
	assert.Equal(t, message.AgentConversational, out.Recipient)
	assert.Equal(t, DataTypeAvailabilityResult, out.Content[message.KeyType])
	assert.Equal(t, "what btc data do you have", out.Content[message.KeyQuery])

	lines := out.Content["lines"].([]string)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "BTC/USDT 1h: 300 candles")
}

func TestDataFeatureVisualization(t *testing.T) {
	ag := newDataAgent()

	out, err := ag.Process(context.Background(), dataRequest(map[string]any{
		message.KeyType: DataTypeVisualization,
		"symbol":        "BTC/USDT",
		"timeframe":     "4h",
		"indicators":    []string{"sma", "bb", "nonsense"},
	}), nil)
	require.NoError(t, err)

	c := out.Content
	assert.Equal(t, DataTypeVisualizationResult, c[message.KeyType])
	assert.NotEmpty(t, c["chart_id"])
	assert.Equal(t, ChartCandles, c["points"])
	assert.Equal(t, []string{"sma", "bb"}, c["indicators"])
	assert.Contains(t, c["summary"], "last close")

	overlays := c["overlays"].(map[string]map[string]float64)
	assert.Greater(t, overlays["bb"]["upper"], overlays["bb"]["lower"])
}

func TestDataFeatureIndicator(t *testing.T) {
	ag := newDataAgent()

	out, err := ag.Process(context.Background(), dataRequest(map[string]any{
		message.KeyType: DataTypeIndicator,
		"indicator":     "rsi",
		"window":        14,
		"symbol":        "ETH/USDT",
		"timeframe":     "1h",
	}), nil)
	require.NoError(t, err)

	c := out.Content
	assert.Equal(t, DataTypeIndicatorResult, c[message.KeyType])
	assert.Equal(t, "Relative Strength Index", c["full_name"])
	values := c["values"].(map[string]float64)
	assert.GreaterOrEqual(t, values["rsi"], 0.0)
	assert.LessOrEqual(t, values["rsi"], 100.0)
	assert.Contains(t, c["latest"], "rsi ")
}

func TestDataFeatureIndicatorWithoutSymbol(t *testing.T) {
	ag := newDataAgent()

	out, err := ag.Process(context.Background(), dataRequest(map[string]any{
		message.KeyType: DataTypeIndicator,
		"indicator":     "macd",
		"window":        float64(9),
	}), nil)
	require.NoError(t, err)

	assert.Equal(t, DataTypeIndicatorResult, out.Content[message.KeyType])
	assert.Equal(t, 9, out.Content["window"])
	assert.NotContains(t, out.Content, "values")
}

func TestDataFeatureErrors(t *testing.T) {
	tests := []struct {
		name    string
		content map[string]any
		want    string
	}{
		{"unknown type", map[string]any{message.KeyType: "funding"}, "unsupported data request type 'funding'"},
		{"missing symbol", map[string]any{message.KeyType: DataTypeVisualization}, "symbol is required"},
		{"unknown series", map[string]any{message.KeyType: DataTypeVisualization, "symbol": "DOGE/USDT"}, "no candles"},
		{"unknown indicator", map[string]any{message.KeyType: DataTypeIndicator, "indicator": "vwap"}, "unsupported indicator 'vwap'"},
		{"window too large", map[string]any{message.KeyType: DataTypeIndicator, "indicator": "sma", "window": 501, "symbol": "BTC/USDT"}, "window 501 is outside 2 to 500"},
		{"window overflows int", map[string]any{message.KeyType: DataTypeIndicator, "indicator": "sma", "window": math.MaxInt, "symbol": "BTC/USDT"}, "is outside 2 to 500"},
		{"float window too large", map[string]any{message.KeyType: DataTypeIndicator, "indicator": "ema", "window": 1e300}, "is outside 2 to 500"},
		{"window not a number", map[string]any{message.KeyType: DataTypeIndicator, "indicator": "rsi", "window": "14"}, "window must be a number"},
		{"chart window too large", map[string]any{message.KeyType: DataTypeVisualization, "symbol": "BTC/USDT", "window": int64(math.MaxInt64)}, "is outside 2 to 500"},
	}

	ag := newDataAgent()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ag.Process(context.Background(), dataRequest(tt.content), nil)
			require.NoError(t, err)

			assert.Equal(t, message.TypeResponse, out.MessageType)
			assert.Equal(t, DataTypeError, out.Content[message.KeyType])
			assert.Contains(t, out.Content[message.KeyError], tt.want)
		})
	}
}

func TestDataFeatureWithoutRepository(t *testing.T) {
	ag := NewDataFeatureAgent(nil)
	out, err := ag.Process(context.Background(), dataRequest(map[string]any{message.KeyType: DataTypeAvailability}), nil)
	require.NoError(t, err)
	assert.Equal(t, DataTypeError, out.Content[message.KeyType])
}

func TestComputeIndicator(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = float64(i + 1)
	}

	sma, err := ComputeIndicator("sma", closes, 10)
	require.NoError(t, err)
	assert.InDelta(t, 55.5, sma["sma"], 1e-9)

	rsi, err := ComputeIndicator("rsi", closes, 14)
	require.NoError(t, err)
	assert.InDelta(t, 100, rsi["rsi"], 1e-9)

	macd, err := ComputeIndicator("macd", closes, 20)
	require.NoError(t, err)
	assert.Greater(t, macd["macd"], 0.0)
	assert.False(t, math.IsNaN(macd["signal"]))

	_, err = ComputeIndicator("sma", closes[:5], 10)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = ComputeIndicator("sma", closes, 1)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = ComputeIndicator("sma", closes, 60)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = ComputeIndicator("sma", closes, math.MaxInt)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	_, err = ComputeIndicator("bb", closes, MaxIndicatorWindow+1)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestPriceSummary(t *testing.T) {
	candles := []market_data.OHLCV{
		{Open: 100, High: 110, Low: 95, Close: 105},
		{Open: 105, High: 120, Low: 100, Close: 110},
	}
	assert.Equal(t, "last close 110, range 95 to 120, change +10.00%", priceSummary(candles))
}
