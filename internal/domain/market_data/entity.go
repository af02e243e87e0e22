package market_data

import "time"

// OHLCV represents candlestick data
type OHLCV struct {
	Symbol    string    `ch:"symbol" json:"symbol"`
	Timeframe string    `ch:"timeframe" json:"timeframe"` // 1m, 5m, 15m, 1h, 4h, 1d
	OpenTime  time.Time `ch:"open_time" json:"open_time"`
	Open      float64   `ch:"open" json:"open"`
	High      float64   `ch:"high" json:"high"`
	Low       float64   `ch:"low" json:"low"`
	Close     float64   `ch:"close" json:"close"`
	Volume    float64   `ch:"volume" json:"volume"`
}

// Availability summarises the stored history for one symbol and timeframe.
type Availability struct {
	Symbol    string    `ch:"symbol" json:"symbol"`
	Timeframe string    `ch:"timeframe" json:"timeframe"`
	From      time.Time `ch:"first_open" json:"from"`
	To        time.Time `ch:"last_open" json:"to"`
	Rows      uint64    `ch:"rows" json:"rows"`
}

// OHLCVQuery selects a candle range. Zero From/To mean unbounded;
// Limit keeps the most recent candles.
type OHLCVQuery struct {
	Symbol    string
	Timeframe string
	From      time.Time
	To        time.Time
	Limit     int
}

// Closes extracts close prices in time order.
func Closes(candles []OHLCV) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
