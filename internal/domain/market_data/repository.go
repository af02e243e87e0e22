package market_data

import (
	"context"
)

// Repository defines read access to historical market data.
type Repository interface {
	// GetOHLCV returns candles in ascending time order.
	GetOHLCV(ctx context.Context, query OHLCVQuery) ([]OHLCV, error)

	// GetAvailability lists stored ranges. Empty symbol means all symbols.
	GetAvailability(ctx context.Context, symbol string) ([]Availability, error)
}
