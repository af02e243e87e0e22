package agents

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/markcheno/go-talib"

	"strategist/internal/agents/state"
	"strategist/internal/domain/market_data"
	"strategist/internal/domain/message"
	"strategist/pkg/errors"
)

// Data-feature defaults.
const (
	DefaultTimeframe = "1h"
	ChartCandles     = 200
	bandDeviation    = 2.0
	macdFast         = 12
	macdSlow         = 26
	macdSignal       = 9
)

// IndicatorInfo describes a supported indicator.
type IndicatorInfo struct {
	Name        string
	FullName    string
	Description string
}

// Indicators lists the indicators the data-feature agent computes.
var Indicators = map[string]IndicatorInfo{
	"sma": {
		Name:        "sma",
		FullName:    "Simple Moving Average",
		Description: "The arithmetic mean of the last N closing prices. It smooths noise and lags price; crossovers of fast and slow averages are classic trend signals.",
	},
	"ema": {
		Name:        "ema",
		FullName:    "Exponential Moving Average",
		Description: "A moving average that weights recent closes more heavily, so it reacts faster than an SMA of the same window.",
	},
	"rsi": {
		Name:        "rsi",
		FullName:    "Relative Strength Index",
		Description: "A 0 to 100 oscillator comparing average gains and losses over N periods. Readings above 70 are read as overbought, below 30 as oversold.",
	},
	"macd": {
		Name:        "macd",
		FullName:    "Moving Average Convergence Divergence",
		Description: "The difference between the 12 and 26 period EMAs, with a 9 period EMA signal line. Signal-line crosses and the histogram track momentum shifts.",
	},
	"bb": {
		Name:        "bb",
		FullName:    "Bollinger Bands",
		Description: "An N period SMA with bands two standard deviations above and below. Band width tracks volatility; touches of the bands flag stretched prices.",
	},
}

// DataFeatureAgent answers market-data questions: availability,
// chart descriptors and indicator values.
type DataFeatureAgent struct {
	Base
	market market_data.Repository
}

var _ Agent = (*DataFeatureAgent)(nil)

// NewDataFeatureAgent creates the agent over a market-data repository.
func NewDataFeatureAgent(market market_data.Repository) *DataFeatureAgent {
	return &DataFeatureAgent{
		Base:   NewBase(message.AgentDataFeature),
		market: market,
	}
}

// Process handles requests from the conversational agent. The agent keeps
// no session state, so the session is not locked.
func (a *DataFeatureAgent) Process(ctx context.Context, msg *message.Envelope, _ *state.Session) (*message.Envelope, error) {
	if msg == nil {
		return nil, errors.ErrNilEnvelope
	}
	if msg.MessageType != message.TypeRequest || msg.Sender != message.AgentConversational {
		return a.Unsupported(msg), nil
	}

	var (
		content map[string]any
		err     error
	)
	if a.market == nil {
		err = errors.Wrap(errors.ErrUnavailable, "market data repository not configured")
	} else {
		switch kind := msg.ContentString(message.KeyType); kind {
		case DataTypeAvailability:
			content, err = a.availability(ctx, msg)
		case DataTypeVisualization:
			content, err = a.visualization(ctx, msg)
		case DataTypeIndicator:
			content, err = a.indicator(ctx, msg)
		default:
			err = errors.Wrapf(errors.ErrInvalidInput, "unsupported data request type '%s'", kind)
		}
	}

	if err != nil {
		a.log.Warnw("data request failed", "type", msg.ContentString(message.KeyType), "error", err)
		content = map[string]any{
			message.KeyType:  DataTypeError,
			message.KeyError: err.Error(),
			message.KeyText:  fmt.Sprintf("Data request failed: %v", err),
		}
	}
	content[message.KeyQuery] = msg.ContentString(message.KeyQuery)
	return a.Reply(msg, message.TypeResponse, content), nil
}

func (a *DataFeatureAgent) availability(ctx context.Context, msg *message.Envelope) (map[string]any, error) {
	ranges, err := a.market.GetAvailability(ctx, msg.ContentString("symbol"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load data availability")
	}

	lines := make([]string, 0, len(ranges))
	for _, r := range ranges {
		lines = append(lines, fmt.Sprintf("%s %s: %s candles from %s to %s (last candle %s)",
			r.Symbol, r.Timeframe,
			humanize.Comma(int64(r.Rows)),
			r.From.Format("2006-01-02 15:04"),
			r.To.Format("2006-01-02 15:04"),
			humanize.Time(r.To),
		))
	}
	if len(lines) == 0 {
		lines = append(lines, "No market data stored")
	}

	return map[string]any{
		message.KeyType: DataTypeAvailabilityResult,
		"availability":  ranges,
		"lines":         lines,
	}, nil
}

func (a *DataFeatureAgent) candles(ctx context.Context, msg *message.Envelope, limit int) ([]market_data.OHLCV, string, string, error) {
	symbol := msg.ContentString("symbol")
	if symbol == "" {
		return nil, "", "", errors.Wrap(errors.ErrInvalidInput, "symbol is required")
	}
	timeframe := msg.ContentString("timeframe")
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}

	candles, err := a.market.GetOHLCV(ctx, market_data.OHLCVQuery{
		Symbol:    symbol,
		Timeframe: timeframe,
		Limit:     limit,
	})
	if err != nil {
		return nil, symbol, timeframe, errors.Wrapf(err, "failed to load %s %s candles", symbol, timeframe)
	}
	if len(candles) == 0 {
		return nil, symbol, timeframe, errors.Wrapf(errors.ErrNotFound, "no %s %s candles", symbol, timeframe)
	}
	return candles, symbol, timeframe, nil
}

func (a *DataFeatureAgent) visualization(ctx context.Context, msg *message.Envelope) (map[string]any, error) {
	candles, symbol, timeframe, err := a.candles(ctx, msg, ChartCandles)
	if err != nil {
		return nil, err
	}
	closes := market_data.Closes(candles)
	window, err := windowValue(msg.Content["window"])
	if err != nil {
		return nil, err
	}

	requested := stringList(msg.Content["indicators"])
	overlays := make(map[string]map[string]float64, len(requested))
	names := make([]string, 0, len(requested))
	for _, name := range requested {
		values, err := ComputeIndicator(name, closes, window)
		if err != nil {
			a.log.Debugw("overlay skipped", "indicator", name, "error", err)
			continue
		}
		overlays[name] = values
		names = append(names, name)
	}

	return map[string]any{
		message.KeyType: DataTypeVisualizationResult,
		"chart_id":      uuid.NewString(),
		"symbol":        symbol,
		"timeframe":     timeframe,
		"points":        len(candles),
		"from":          candles[0].OpenTime,
		"to":            candles[len(candles)-1].OpenTime,
		"indicators":    names,
		"overlays":      overlays,
		"summary":       priceSummary(candles),
	}, nil
}

func (a *DataFeatureAgent) indicator(ctx context.Context, msg *message.Envelope) (map[string]any, error) {
	name := strings.ToLower(msg.ContentString("indicator"))
	info, ok := Indicators[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported indicator '%s'", name)
	}
	window, err := windowValue(msg.Content["window"])
	if err != nil {
		return nil, err
	}

	content := map[string]any{
		message.KeyType: DataTypeIndicatorResult,
		"indicator":     info.Name,
		"full_name":     info.FullName,
		"description":   info.Description,
		"window":        window,
	}
	if msg.ContentString("symbol") == "" {
		return content, nil
	}

	candles, symbol, timeframe, err := a.candles(ctx, msg, window*3+macdSlow+macdSignal)
	if err != nil {
		return nil, err
	}
	values, err := ComputeIndicator(name, market_data.Closes(candles), window)
	if err != nil {
		return nil, err
	}
	content["symbol"] = symbol
	content["timeframe"] = timeframe
	content["values"] = values
	content["latest"] = formatValues(values)
	return content, nil
}

// ComputeIndicator returns the latest value(s) of an indicator over closes.
func ComputeIndicator(name string, closes []float64, window int) (map[string]float64, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	if name == "macd" {
		if need := macdSlow + macdSignal; len(closes) < need {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "%s needs %d candles, have %d", name, need, len(closes))
		}
	} else if window >= len(closes) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "%s needs %d candles, have %d", name, window+1, len(closes))
	}

	last := func(series []float64) float64 { return series[len(series)-1] }
	switch name {
	case "sma":
		return map[string]float64{"sma": last(talib.Sma(closes, window))}, nil
	case "ema":
		return map[string]float64{"ema": last(talib.Ema(closes, window))}, nil
	case "rsi":
		return map[string]float64{"rsi": last(talib.Rsi(closes, window))}, nil
	case "macd":
		macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
		return map[string]float64{"macd": last(macd), "signal": last(signal), "histogram": last(hist)}, nil
	case "bb":
		upper, middle, lower := talib.BBands(closes, window, bandDeviation, bandDeviation, talib.SMA)
		return map[string]float64{"upper": last(upper), "middle": last(middle), "lower": last(lower)}, nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported indicator '%s'", name)
	}
}

var valueOrder = []string{"sma", "ema", "rsi", "macd", "signal", "histogram", "upper", "middle", "lower"}

func formatValues(values map[string]float64) string {
	parts := make([]string, 0, len(values))
	for _, k := range valueOrder {
		if v, ok := values[k]; ok {
			parts = append(parts, fmt.Sprintf("%s %s", k, humanize.CommafWithDigits(v, 2)))
		}
	}
	return strings.Join(parts, ", ")
}

func priceSummary(candles []market_data.OHLCV) string {
	first, lastCandle := candles[0], candles[len(candles)-1]
	high, low := first.High, first.Low
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	change := 0.0
	if first.Open != 0 {
		change = (lastCandle.Close - first.Open) / first.Open * 100
	}
	return fmt.Sprintf("last close %s, range %s to %s, change %+.2f%%",
		humanize.CommafWithDigits(lastCandle.Close, 2),
		humanize.CommafWithDigits(low, 2),
		humanize.CommafWithDigits(high, 2),
		change,
	)
}

func checkWindow(window int) error {
	if window < MinIndicatorWindow || window > MaxIndicatorWindow {
		return errors.Wrapf(errors.ErrInvalidInput, "window %d is outside %d to %d", window, MinIndicatorWindow, MaxIndicatorWindow)
	}
	return nil
}

// windowValue reads a window from envelope content. Missing values fall
// back to DefaultIndicatorWindow; out-of-range values are rejected before
// any conversion can overflow.
func windowValue(v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return DefaultIndicatorWindow, nil
	case int:
		if err := checkWindow(n); err != nil {
			return 0, err
		}
		return n, nil
	case int64:
		if n < MinIndicatorWindow || n > MaxIndicatorWindow {
			return 0, errors.Wrapf(errors.ErrInvalidInput, "window %d is outside %d to %d", n, MinIndicatorWindow, MaxIndicatorWindow)
		}
		return int(n), nil
	case float64:
		f = n
	default:
		return 0, errors.Wrapf(errors.ErrInvalidInput, "window must be a number, got %T", v)
	}
	if math.IsNaN(f) || f < MinIndicatorWindow || f > MaxIndicatorWindow {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "window %v is outside %d to %d", f, MinIndicatorWindow, MaxIndicatorWindow)
	}
	return int(f), nil
}
