package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"Show me a chart of BTC", IntentVisualization},
		{"plot ETH/USDT", IntentVisualization},
		{"Can you visualize the RSI?", IntentVisualization},
		{"What data is available?", IntentDataAvailability},
		{"do you have data for SOL", IntentDataAvailability},
		{"What is RSI?", IntentIndicator},
		{"explain the exponential moving average", IntentIndicator},
		{"How does MACD work", IntentIndicator},
		{"definition of bollinger bands", IntentIndicator},
		{"what is a momentum strategy", IntentGeneric},
		{"display BTC price history", IntentVisualization},
		{"ohlc for eth", IntentVisualization},
		{"I want to create a momentum strategy", IntentGeneric},
		{"", IntentGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.text))
		})
	}
}

func TestClassifyIntentPriority(t *testing.T) {
	// A chart keyword outranks an explanation of an indicator.
	assert.Equal(t, IntentVisualization, ClassifyIntent("explain the rsi chart"))
	// Availability outranks the broad data keywords.
	assert.Equal(t, IntentDataAvailability, ClassifyIntent("show me which candles are available"))
}

func TestDetectIndicator(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"what is sma", "sma", true},
		{"Simple Moving Average please", "sma", true},
		{"moving average convergence divergence", "macd", true},
		{"the Relative Strength Index", "rsi", true},
		{"BB width", "bb", true},
		{"bollinger", "bb", true},
		{"ema20", "", false},
		{"embassy", "", false},
		{"nothing here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := DetectIndicator(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"macd", "rsi", "sma"}, DetectIndicators("sma, rsi and macd"))
}

func TestParseWindow(t *testing.T) {
	assert.Equal(t, 14, ParseWindow("explain rsi 14"))
	assert.Equal(t, 50, ParseWindow("sma 20 vs sma 50"))
	assert.Equal(t, 30, ParseWindow("what is the 30 period ema on 1h"))
	assert.Equal(t, DefaultIndicatorWindow, ParseWindow("what is rsi"))
	assert.Equal(t, DefaultIndicatorWindow, ParseWindow("rsi 0"))
	assert.Equal(t, MaxIndicatorWindow, ParseWindow("sma 500"))
	assert.Equal(t, MaxIndicatorWindow+1, ParseWindow("sma 501"))
	assert.Equal(t, MaxIndicatorWindow+1, ParseWindow("sma 9223372036854775807"))
	assert.Equal(t, MaxIndicatorWindow+1, ParseWindow("sma 99999999999999999999999"))
}

func TestParseSymbolAndTimeframe(t *testing.T) {
	assert.Equal(t, "BTC/USDT", ParseSymbol("chart btc/usdt"))
	assert.Equal(t, "ETH/BTC", ParseSymbol("ETH-BTC ratio"))
	assert.Equal(t, "SOL/USDT", ParseSymbol("plot SOL"))
	assert.Equal(t, "BTC/USD", ParseSymbol("btcusd daily"))
	assert.Equal(t, "", ParseSymbol("plot it"))

	assert.Equal(t, "4h", ParseTimeframe("BTC 4H chart"))
	assert.Equal(t, "1d", ParseTimeframe("daily candles"))
	assert.Equal(t, "", ParseTimeframe("chart btc"))
}
