package agents

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"strategist/internal/domain/strategy"
	"strategist/pkg/templates"
)

// Data-feature request and result types carried in content.type.
const (
	DataTypeAvailability        = "data_availability"
	DataTypeVisualization       = "visualization"
	DataTypeIndicator           = "indicator"
	DataTypeAvailabilityResult  = "data_availability_result"
	DataTypeVisualizationResult = "visualization_result"
	DataTypeIndicatorResult     = "indicator_result"
	DataTypeError               = "error"
)

// Prompt template ids used by the conversational agent.
const (
	tmplSystem             = "prompts/conversational/system"
	tmplExtractParams      = "prompts/conversational/extract_params"
	tmplIdentifyStrategy   = "prompts/conversational/identify_strategy"
	tmplChat               = "prompts/conversational/chat"
	tmplValidationFeedback = "prompts/conversational/validation_feedback"
	tmplDataAvailability   = "prompts/conversational/data_availability"
	tmplVisualization      = "prompts/conversational/visualization"
	tmplIndicator          = "prompts/conversational/indicator"
	tmplDataError          = "prompts/conversational/data_error"
	tmplDataUnknown        = "prompts/conversational/data_unknown"
)

// dataPrompt is a rendered prompt for one data-feature result.
type dataPrompt struct {
	Template string
	Data     map[string]any
}

// formatDataResult maps a data-feature result to its prompt template.
// chartURL builds the link for visualization results.
func formatDataResult(text string, content map[string]any, chartURL func(string) string) dataPrompt {
	switch str(content["type"]) {
	case DataTypeAvailabilityResult:
		return dataPrompt{Template: tmplDataAvailability, Data: map[string]any{
			"Text":  text,
			"Lines": stringList(content["lines"]),
		}}
	case DataTypeVisualizationResult:
		return dataPrompt{Template: tmplVisualization, Data: map[string]any{
			"Text":       text,
			"Symbol":     str(content["symbol"]),
			"Timeframe":  str(content["timeframe"]),
			"Points":     content["points"],
			"Indicators": stringList(content["indicators"]),
			"URL":        chartURL(str(content["chart_id"])),
			"Summary":    str(content["summary"]),
		}}
	case DataTypeIndicatorResult:
		return dataPrompt{Template: tmplIndicator, Data: map[string]any{
			"Text":        text,
			"Name":        str(content["indicator"]),
			"FullName":    str(content["full_name"]),
			"Description": str(content["description"]),
			"Window":      content["window"],
			"Symbol":      str(content["symbol"]),
			"Latest":      str(content["latest"]),
		}}
	case DataTypeError:
		return dataPrompt{Template: tmplDataError, Data: map[string]any{
			"Text":  text,
			"Error": str(content["error"]),
		}}
	default:
		return dataPrompt{Template: tmplDataUnknown, Data: map[string]any{
			"Text":    text,
			"Content": templates.IndentJSON(content),
		}}
	}
}

// describeStrategy is the short reply sent after parameters were extracted.
func describeStrategy(p *strategy.Params) string {
	if p.IsEmpty() {
		return "I could not find a strategy in your message."
	}

	var b strings.Builder
	kind := p.StrategyType
	if kind == "" {
		kind = "trading"
	}
	fmt.Fprintf(&b, "I captured a %s strategy", strings.ReplaceAll(kind, "_", " "))
	if m := p.Market(); m != "" {
		fmt.Fprintf(&b, " on %s", m)
	}
	if iv := p.Interval(); iv != "" {
		fmt.Fprintf(&b, " (%s)", iv)
	}

	if len(p.Parameters) > 0 {
		names := make([]string, 0, len(p.Parameters))
		for name := range p.Parameters {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%s", name, strategy.FormatNumber(p.Parameters[name]))
		}
		fmt.Fprintf(&b, " with %s", strings.Join(parts, ", "))
	}
	b.WriteString(".")

	if len(p.Indicators) > 0 {
		names := make([]string, len(p.Indicators))
		for i, ind := range p.Indicators {
			names[i] = ind.Name
		}
		fmt.Fprintf(&b, " Suggested indicators: %s.", strings.Join(names, ", "))
	}
	if p.PositionSizing != "" {
		fmt.Fprintf(&b, " Position sizing: %s.", p.PositionSizing)
	}
	if len(p.RiskManagement) > 0 {
		fmt.Fprintf(&b, " Risk management: %s.", strings.Join(p.RiskManagement, ", "))
	}
	return b.String()
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// stringList reads a list of strings from decoded JSON or typed content.
func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case json.RawMessage:
		var out []string
		_ = json.Unmarshal(t, &out)
		return out
	default:
		return nil
	}
}

func boolValue(v any) bool {
	b, _ := v.(bool)
	return b
}

// missingFrom returns the items of extra that base does not already hold.
func missingFrom(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	var out []string
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
