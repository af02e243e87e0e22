package agents

import (
	"regexp"
	"strconv"
	"strings"

	"strategist/pkg/errors"
)

// Intent is the sub-flow a user request is routed to.
type Intent string

const (
	IntentVisualization    Intent = "visualization"
	IntentDataAvailability Intent = "data_availability"
	IntentIndicator        Intent = "indicator"
	IntentGeneric          Intent = "generic"
)

// Keyword lists, matched case-insensitively as substrings.
var (
	VisualizationKeywords = []string{"chart", "graph", "plot", "visualization", "visualize"}
	AvailabilityKeywords  = []string{"availability", "available", "have data", "data for"}
	ExplanationKeywords   = []string{"what is", "explain", "how does", "definition"}
	DataRequestKeywords   = []string{"show me", "display", "draw", "price history", "candlestick", "candles", "ohlc", "price action"}
)

// IndicatorSynonyms maps each supported indicator to the phrases naming it.
// Short names match as whole words only.
var IndicatorSynonyms = map[string][]string{
	"sma":  {"sma", "simple moving average"},
	"ema":  {"ema", "exponential moving average"},
	"rsi":  {"rsi", "relative strength index"},
	"macd": {"macd", "moving average convergence divergence"},
	"bb":   {"bb", "bollinger bands", "bollinger band", "bollinger"},
}

// indicatorOrder fixes detection priority: longer phrases first, so
// "moving average convergence divergence" never reads as an SMA.
var indicatorOrder = []string{"macd", "bb", "rsi", "ema", "sma"}

// DefaultIndicatorWindow is used when the text names no window.
const DefaultIndicatorWindow = 20

// Indicator windows outside MinIndicatorWindow..MaxIndicatorWindow are rejected.
const (
	MinIndicatorWindow = 2
	MaxIndicatorWindow = 500
)

// IntentRule pairs a predicate with the intent it selects.
type IntentRule struct {
	Intent Intent
	Match  func(text string) bool
}

// IntentRules is evaluated in order; the first match wins.
var IntentRules = []IntentRule{
	{Intent: IntentVisualization, Match: func(t string) bool { return containsAny(t, VisualizationKeywords) }},
	{Intent: IntentDataAvailability, Match: func(t string) bool { return containsAny(t, AvailabilityKeywords) }},
	{Intent: IntentIndicator, Match: func(t string) bool {
		_, ok := DetectIndicator(t)
		return ok && containsAny(t, ExplanationKeywords)
	}},
	{Intent: IntentVisualization, Match: func(t string) bool { return containsAny(t, DataRequestKeywords) }},
}

// ClassifyIntent picks the sub-flow for a user message.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)
	for _, rule := range IntentRules {
		if rule.Match(lower) {
			return rule.Intent
		}
	}
	return IntentGeneric
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// DetectIndicator returns the canonical name of the first indicator mentioned.
func DetectIndicator(text string) (string, bool) {
	found := DetectIndicators(text)
	if len(found) == 0 {
		return "", false
	}
	return found[0], true
}

// DetectIndicators lists every indicator mentioned, in detection order.
func DetectIndicators(text string) []string {
	lower := strings.ToLower(text)
	words := map[string]bool{}
	for _, w := range wordPattern.FindAllString(lower, -1) {
		words[w] = true
	}

	var found []string
	for _, name := range indicatorOrder {
		for _, phrase := range IndicatorSynonyms[name] {
			hit := words[phrase]
			if strings.Contains(phrase, " ") {
				hit = strings.Contains(lower, phrase)
			}
			if hit {
				found = append(found, name)
				break
			}
		}
	}
	return found
}

var integerPattern = regexp.MustCompile(`\b\d+\b`)

// ParseWindow returns the last standalone integer in text, or
// DefaultIndicatorWindow. Timeframes such as 1h do not count. Numbers
// above MaxIndicatorWindow come back as MaxIndicatorWindow+1 so the
// data-feature agent rejects them instead of overflowing.
func ParseWindow(text string) int {
	matches := integerPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return DefaultIndicatorWindow
	}
	n, err := strconv.Atoi(matches[len(matches)-1])
	switch {
	case errors.Is(err, strconv.ErrRange), err == nil && n > MaxIndicatorWindow:
		return MaxIndicatorWindow + 1
	case err != nil || n <= 0:
		return DefaultIndicatorWindow
	}
	return n
}

var (
	pairPattern      = regexp.MustCompile(`(?i)\b([a-z]{2,10})\s*[/-]\s*(usdt|usdc|usd|btc|eth|eur)\b`)
	basePattern      = regexp.MustCompile(`(?i)\b(btc|eth|sol|bnb|xrp|ada|doge|avax)(usdt|usd)?\b`)
	timeframePattern = regexp.MustCompile(`(?i)\b(1m|5m|15m|30m|1h|4h|1d|1w)\b`)
)

var timeframeWords = map[string]string{
	"hourly": "1h",
	"daily":  "1d",
	"weekly": "1w",
}

// ParseSymbol extracts a trading pair such as BTC/USDT. Bare base assets
// are quoted in USDT.
func ParseSymbol(text string) string {
	if m := pairPattern.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1] + "/" + m[2])
	}
	if m := basePattern.FindStringSubmatch(text); m != nil {
		quote := m[2]
		if quote == "" {
			quote = "usdt"
		}
		return strings.ToUpper(m[1] + "/" + quote)
	}
	return ""
}

// ParseTimeframe extracts a bar interval such as 1h.
func ParseTimeframe(text string) string {
	if m := timeframePattern.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1])
	}
	lower := strings.ToLower(text)
	for word, tf := range timeframeWords {
		if strings.Contains(lower, word) {
			return tf
		}
	}
	return ""
}
