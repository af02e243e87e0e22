package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"strategist/internal/adapters/clickhouse"
	"strategist/internal/adapters/config"
	"strategist/internal/domain/market_data"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper creates a ClickHouse client for tests.
func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	client, err := clickhouse.NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	helper := &ClickHouseTestHelper{client: client}
	t.Cleanup(func() { _ = client.Close() })
	return helper
}

// Client exposes the raw ClickHouse client for queries.
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// CreateOHLCVTable creates a uniquely named candle table and drops it after the test.
func (h *ClickHouseTestHelper) CreateOHLCVTable(t *testing.T) string {
	t.Helper()

	table := UniqueName("tmp_ohlcv")
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		symbol String,
		timeframe LowCardinality(String),
		open_time DateTime64(3, 'UTC'),
		open Float64,
		high Float64,
		low Float64,
		close Float64,
		volume Float64
	) ENGINE = MergeTree() ORDER BY (symbol, timeframe, open_time)`, table)

	if err := h.client.Conn().Exec(context.Background(), query); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	t.Cleanup(func() {
		_ = h.client.Conn().Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	})

	return table
}

// InsertOHLCV writes candles into table with a single batch.
func (h *ClickHouseTestHelper) InsertOHLCV(t *testing.T, table string, candles []market_data.OHLCV) {
	t.Helper()

	if len(candles) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batch, err := h.client.Conn().PrepareBatch(ctx, fmt.Sprintf(
		"INSERT INTO %s (symbol, timeframe, open_time, open, high, low, close, volume)", table))
	if err != nil {
		t.Fatalf("failed to prepare batch: %v", err)
	}

	for i := range candles {
		if err := batch.AppendStruct(&candles[i]); err != nil {
			t.Fatalf("failed to append candle to batch: %v", err)
		}
	}

	if err := batch.Send(); err != nil {
		t.Fatalf("failed to send batch: %v", err)
	}
}

// OHLCVFixture builds test candles.
type OHLCVFixture struct {
	candle market_data.OHLCV
}

// NewOHLCVFixture creates a default hourly BTC/USDT candle.
func NewOHLCVFixture() *OHLCVFixture {
	return &OHLCVFixture{
		candle: market_data.OHLCV{
			Symbol:    "BTC/USDT",
			Timeframe: "1h",
			OpenTime:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			Open:      42000,
			High:      42500,
			Low:       41800,
			Close:     42300,
			Volume:    120.5,
		},
	}
}

func (f *OHLCVFixture) WithSymbol(symbol string) *OHLCVFixture {
	f.candle.Symbol = symbol
	return f
}

func (f *OHLCVFixture) WithTimeframe(timeframe string) *OHLCVFixture {
	f.candle.Timeframe = timeframe
	return f
}

func (f *OHLCVFixture) WithOpenTime(t time.Time) *OHLCVFixture {
	f.candle.OpenTime = t
	return f
}

func (f *OHLCVFixture) WithClose(price float64) *OHLCVFixture {
	f.candle.Open = price
	f.candle.High = price * 1.005
	f.candle.Low = price * 0.995
	f.candle.Close = price
	return f
}

func (f *OHLCVFixture) Build() market_data.OHLCV {
	return f.candle
}

// BuildMany returns count consecutive candles with closes rising by step.
func (f *OHLCVFixture) BuildMany(count int, step float64) []market_data.OHLCV {
	interval := parseTimeframeDuration(f.candle.Timeframe)
	out := make([]market_data.OHLCV, count)
	for i := range out {
		c := f.candle
		c.OpenTime = f.candle.OpenTime.Add(time.Duration(i) * interval)
		delta := step * float64(i)
		c.Open += delta
		c.High += delta
		c.Low += delta
		c.Close += delta
		out[i] = c
	}
	return out
}

func parseTimeframeDuration(timeframe string) time.Duration {
	switch timeframe {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
