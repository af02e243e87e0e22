package memory

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"strategist/internal/domain/market_data"
	"strategist/pkg/errors"
)

// Series identifies one synthetic candle series.
type Series struct {
	Symbol    string
	Timeframe string
	BasePrice float64
}

// DefaultSeries is served when no series are given.
var DefaultSeries = []Series{
	{Symbol: "BTC/USDT", Timeframe: "1h", BasePrice: 42000},
	{Symbol: "BTC/USDT", Timeframe: "4h", BasePrice: 42000},
	{Symbol: "BTC/USDT", Timeframe: "1d", BasePrice: 42000},
	{Symbol: "ETH/USDT", Timeframe: "1h", BasePrice: 2300},
	{Symbol: "ETH/USDT", Timeframe: "1d", BasePrice: 2300},
	{Symbol: "SOL/USDT", Timeframe: "1h", BasePrice: 95},
}

// MarketDataRepository generates deterministic random-walk candles. The
// same symbol and timeframe always produce the same series for a given end time.
type MarketDataRepository struct {
	series  []Series
	history int
	end     time.Time
}

var _ market_data.Repository = (*MarketDataRepository)(nil)

// NewMarketDataRepository creates a repository holding history candles per
// series, the last one opening at or before end.
func NewMarketDataRepository(series []Series, history int, end time.Time) *MarketDataRepository {
	if len(series) == 0 {
		series = DefaultSeries
	}
	if history <= 0 {
		history = 500
	}
	return &MarketDataRepository{series: series, history: history, end: end.UTC()}
}

// GetOHLCV returns ErrNotFound for an unknown symbol and timeframe.
func (r *MarketDataRepository) GetOHLCV(_ context.Context, q market_data.OHLCVQuery) ([]market_data.OHLCV, error) {
	s, ok := r.find(q.Symbol, q.Timeframe)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no candles for %s %s", q.Symbol, q.Timeframe)
	}

	all := r.generate(s)
	out := make([]market_data.OHLCV, 0, len(all))
	for _, c := range all {
		if !q.From.IsZero() && c.OpenTime.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && c.OpenTime.After(q.To) {
			continue
		}
		out = append(out, c)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

func (r *MarketDataRepository) GetAvailability(_ context.Context, symbol string) ([]market_data.Availability, error) {
	out := make([]market_data.Availability, 0, len(r.series))
	for _, s := range r.series {
		if symbol != "" && !strings.EqualFold(s.Symbol, symbol) {
			continue
		}
		step := TimeframeDuration(s.Timeframe)
		last := r.end.Truncate(step)
		out = append(out, market_data.Availability{
			Symbol:    s.Symbol,
			Timeframe: s.Timeframe,
			From:      last.Add(-time.Duration(r.history-1) * step),
			To:        last,
			Rows:      uint64(r.history),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return TimeframeDuration(out[i].Timeframe) < TimeframeDuration(out[j].Timeframe)
	})
	return out, nil
}

func (r *MarketDataRepository) find(symbol, timeframe string) (Series, bool) {
	for _, s := range r.series {
		if strings.EqualFold(s.Symbol, symbol) && strings.EqualFold(s.Timeframe, timeframe) {
			return s, true
		}
	}
	return Series{}, false
}

func (r *MarketDataRepository) generate(s Series) []market_data.OHLCV {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s.Symbol + "|" + s.Timeframe))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	step := TimeframeDuration(s.Timeframe)
	start := r.end.Truncate(step).Add(-time.Duration(r.history-1) * step)
	vol := 0.01 * math.Sqrt(step.Hours())

	candles := make([]market_data.OHLCV, r.history)
	price := s.BasePrice
	for i := range candles {
		open := price
		closePrice := open * (1 + rng.NormFloat64()*vol)
		high := math.Max(open, closePrice) * (1 + rng.Float64()*vol/2)
		low := math.Min(open, closePrice) * (1 - rng.Float64()*vol/2)
		candles[i] = market_data.OHLCV{
			Symbol:    s.Symbol,
			Timeframe: s.Timeframe,
			OpenTime:  start.Add(time.Duration(i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    100 + rng.Float64()*900,
		}
		price = closePrice
	}
	return candles
}

// TimeframeDuration parses 1m/5m/15m/30m/1h/4h/1d/1w. Unknown values map to one hour.
func TimeframeDuration(timeframe string) time.Duration {
	switch strings.ToLower(timeframe) {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
