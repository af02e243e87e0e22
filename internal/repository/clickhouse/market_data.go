package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"strategist/internal/domain/market_data"
	"strategist/pkg/errors"
)

// Compile-time check
var _ market_data.Repository = (*MarketDataRepository)(nil)

// DefaultOHLCVTable holds candles keyed by (symbol, timeframe, open_time).
const DefaultOHLCVTable = "ohlcv"

// MarketDataRepository implements market_data.Repository using ClickHouse
type MarketDataRepository struct {
	conn  driver.Conn
	table string
}

// NewMarketDataRepository creates a new market data repository reading from table
// (DefaultOHLCVTable when empty)
func NewMarketDataRepository(conn driver.Conn, table string) *MarketDataRepository {
	if table == "" {
		table = DefaultOHLCVTable
	}
	return &MarketDataRepository{conn: conn, table: table}
}

// GetOHLCV retrieves candles in ascending time order. With a limit the
// most recent candles are kept.
func (r *MarketDataRepository) GetOHLCV(ctx context.Context, query market_data.OHLCVQuery) ([]market_data.OHLCV, error) {
	var candles []market_data.OHLCV

	conditions := []string{"symbol = ?", "timeframe = ?"}
	args := []interface{}{query.Symbol, query.Timeframe}

	if !query.From.IsZero() {
		conditions = append(conditions, "open_time >= ?")
		args = append(args, query.From)
	}

	if !query.To.IsZero() {
		conditions = append(conditions, "open_time <= ?")
		args = append(args, query.To)
	}

	sql := fmt.Sprintf(`
		SELECT symbol, timeframe, open_time, open, high, low, close, volume
		FROM %s
		WHERE %s
		ORDER BY open_time DESC`, r.table, strings.Join(conditions, " AND "))

	if query.Limit > 0 {
		sql += ` LIMIT ?`
		args = append(args, query.Limit)
	}

	if err := r.conn.Select(ctx, &candles, sql, args...); err != nil {
		return nil, errors.Wrapf(err, "failed to get candles for %s %s", query.Symbol, query.Timeframe)
	}

	if len(candles) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no candles for %s %s", query.Symbol, query.Timeframe)
	}

	// Selected newest first so LIMIT keeps the latest candles.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// GetAvailability summarises stored candles per symbol and timeframe
func (r *MarketDataRepository) GetAvailability(ctx context.Context, symbol string) ([]market_data.Availability, error) {
	var ranges []market_data.Availability

	where := ""
	var args []interface{}
	if symbol != "" {
		where = "WHERE symbol = ?"
		args = append(args, symbol)
	}

	sql := fmt.Sprintf(`
		SELECT
			symbol,
			timeframe,
			min(open_time) AS first_open,
			max(open_time) AS last_open,
			count() AS rows
		FROM %s
		%s
		GROUP BY symbol, timeframe
		ORDER BY symbol, timeframe`, r.table, where)

	if err := r.conn.Select(ctx, &ranges, sql, args...); err != nil {
		return nil, errors.Wrap(err, "failed to get data availability")
	}

	return ranges, nil
}
