package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"strategist/pkg/errors"
)

// Top-level keys of a strategy parameter object.
const (
	FieldStrategyType   = "strategy_type"
	FieldParameters     = "parameters"
	FieldInstrument     = "instrument"
	FieldSymbol         = "symbol"
	FieldFrequency      = "frequency"
	FieldTimeframe      = "timeframe"
	FieldIndicators     = "indicators"
	FieldPositionSizing = "position_sizing"
	FieldRiskManagement = "risk_management"
	FieldExplanation    = "explanation"
)

// Indicator is an enhanced indicator entry with its default parameters.
type Indicator struct {
	Name       string             `json:"name"`
	Parameters map[string]float64 `json:"parameters"`
}

// Params is a strategy parameter object. Keys the system does not
// know about are kept in Extra and survive a JSON round trip.
type Params struct {
	StrategyType   string
	Parameters     map[string]float64
	Instrument     string
	Symbol         string
	Frequency      string
	Timeframe      string
	Indicators     []Indicator
	PositionSizing string
	RiskManagement []string
	Explanation    string
	Extra          map[string]json.RawMessage
}

// Market returns the instrument, falling back to symbol.
func (p *Params) Market() string {
	if p.Instrument != "" {
		return p.Instrument
	}
	return p.Symbol
}

// Interval returns the timeframe, falling back to frequency.
func (p *Params) Interval() string {
	if p.Timeframe != "" {
		return p.Timeframe
	}
	return p.Frequency
}

// Keys lists the top-level keys present on the object, sorted.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	var keys []string
	add := func(present bool, k string) {
		if present {
			keys = append(keys, k)
		}
	}
	add(p.StrategyType != "", FieldStrategyType)
	add(p.Parameters != nil, FieldParameters)
	add(p.Instrument != "", FieldInstrument)
	add(p.Symbol != "", FieldSymbol)
	add(p.Frequency != "", FieldFrequency)
	add(p.Timeframe != "", FieldTimeframe)
	add(p.Indicators != nil, FieldIndicators)
	add(p.PositionSizing != "", FieldPositionSizing)
	add(p.RiskManagement != nil, FieldRiskManagement)
	add(p.Explanation != "", FieldExplanation)
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether the object carries no keys at all.
func (p *Params) IsEmpty() bool {
	return p == nil || len(p.Keys()) == 0
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	c := *p
	if p.Parameters != nil {
		c.Parameters = make(map[string]float64, len(p.Parameters))
		for k, v := range p.Parameters {
			c.Parameters[k] = v
		}
	}
	if p.Indicators != nil {
		c.Indicators = make([]Indicator, len(p.Indicators))
		for i, ind := range p.Indicators {
			c.Indicators[i] = Indicator{Name: ind.Name}
			if ind.Parameters != nil {
				c.Indicators[i].Parameters = make(map[string]float64, len(ind.Parameters))
				for k, v := range ind.Parameters {
					c.Indicators[i].Parameters[k] = v
				}
			}
		}
	}
	if p.RiskManagement != nil {
		c.RiskManagement = append([]string{}, p.RiskManagement...)
	}
	if p.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// MarshalJSON writes known fields under their wire names and merges Extra.
func (p Params) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+10)
	for k, v := range p.Extra {
		out[k] = v
	}
	setString := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	setString(FieldStrategyType, p.StrategyType)
	setString(FieldInstrument, p.Instrument)
	setString(FieldSymbol, p.Symbol)
	setString(FieldFrequency, p.Frequency)
	setString(FieldTimeframe, p.Timeframe)
	setString(FieldPositionSizing, p.PositionSizing)
	setString(FieldExplanation, p.Explanation)
	if p.Parameters != nil {
		out[FieldParameters] = p.Parameters
	}
	if p.Indicators != nil {
		out[FieldIndicators] = p.Indicators
	}
	if p.RiskManagement != nil {
		out[FieldRiskManagement] = p.RiskManagement
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the loose shapes LLMs tend to produce: numeric
// strings for parameters, bare names for indicators, a single string
// for risk management.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.ErrInvalidInput, err.Error())
	}

	*p = Params{}
	for key, value := range raw {
		var err error
		switch key {
		case FieldStrategyType:
			p.StrategyType, err = decodeString(key, value)
		case FieldInstrument:
			p.Instrument, err = decodeString(key, value)
		case FieldSymbol:
			p.Symbol, err = decodeString(key, value)
		case FieldFrequency:
			p.Frequency, err = decodeString(key, value)
		case FieldTimeframe:
			p.Timeframe, err = decodeString(key, value)
		case FieldExplanation:
			p.Explanation, err = decodeString(key, value)
		case FieldPositionSizing:
			p.PositionSizing, err = decodeLooseString(value)
		case FieldParameters:
			p.Parameters, err = decodeNumericMap(key, value)
		case FieldIndicators:
			p.Indicators, err = decodeIndicators(value)
		case FieldRiskManagement:
			p.RiskManagement, err = decodeStringList(key, value)
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]json.RawMessage)
			}
			p.Extra[key] = append(json.RawMessage(nil), value...)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FromContent converts an envelope content value into Params.
// Returns nil, nil for a nil value.
func FromContent(v any) (*Params, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *Params:
		return t, nil
	case Params:
		return &t, nil
	case json.RawMessage:
		return decode(t)
	case []byte:
		return decode(t)
	case map[string]any:
		data, err := json.Marshal(t)
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
		}
		return decode(data)
	default:
		return nil, errors.NewValidationError(FieldStrategyType, "strategy parameters must be an object", fmt.Sprintf("%T", v))
	}
}

func decode(data []byte) (*Params, error) {
	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ToMap renders the params as a plain map, as they appear on the wire.
func (p *Params) ToMap() map[string]any {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}

// String renders indented JSON for prompts.
func (p *Params) String() string {
	if p == nil {
		return "{}"
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

func decodeString(field string, value json.RawMessage) (string, error) {
	if isNull(value) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", errors.NewValidationError(field, "must be a string", string(value))
	}
	return s, nil
}

func decodeLooseString(value json.RawMessage) (string, error) {
	if isNull(value) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	return string(value), nil
}

func decodeStringList(field string, value json.RawMessage) ([]string, error) {
	if isNull(value) {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(value, &single); err == nil {
		return []string{single}, nil
	}
	return nil, errors.NewValidationError(field, "must be a string or list of strings", string(value))
}

func decodeNumericMap(field string, value json.RawMessage) (map[string]float64, error) {
	if isNull(value) {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(value, &raw); err != nil {
		return nil, errors.NewValidationError(field, "must be an object", string(value))
	}
	out := make(map[string]float64, len(raw))
	for name, v := range raw {
		f, err := toFloat(v)
		if err != nil {
			return nil, errors.NewValidationError(field+"."+name, "must be numeric", v)
		}
		out[name] = f
	}
	return out, nil
}

func decodeIndicators(value json.RawMessage) ([]Indicator, error) {
	if isNull(value) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, errors.NewValidationError(FieldIndicators, "must be a list", string(value))
	}
	out := make([]Indicator, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			out = append(out, Indicator{Name: name})
			continue
		}
		var obj struct {
			Name       string          `json:"name"`
			Parameters json.RawMessage `json:"parameters"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, errors.NewValidationError(FieldIndicators, "entries must be names or objects", string(item))
		}
		params, err := decodeNumericMap(FieldIndicators+"."+obj.Name, obj.Parameters)
		if err != nil {
			return nil, err
		}
		out = append(out, Indicator{Name: obj.Name, Parameters: params})
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, errors.ErrInvalidInput
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.ErrInvalidInput
	}
	return f, nil
}

func isNull(value json.RawMessage) bool {
	return len(value) == 0 || string(value) == "null"
}

// FormatNumber renders a float without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
