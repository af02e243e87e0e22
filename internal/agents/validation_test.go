package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/agents/state"
	"strategist/internal/domain/message"
	"strategist/internal/domain/strategy"
	"strategist/internal/llm"
	"strategist/pkg/errors"
)

func validationRequest(params map[string]any) *message.Envelope {
	content := map[string]any{}
	if params != nil {
		content[message.KeyStrategyParams] = params
	}
	return message.New(message.AgentConversational, message.AgentValidation, message.TypeValidationRequest,
		content, map[string]any{message.CtxSessionID: "s1"})
}

func fixture(params map[string]any) map[string]any {
	return map[string]any{"strategy_type": "momentum", "parameters": params}
}

func TestValidateMissingRequiredParameter(t *testing.T) {
	ag := NewValidationAgent(nil, nil, nil)

	out, err := ag.Process(context.Background(), validationRequest(fixture(map[string]any{"threshold": 0.05})), state.NewSession("s1"))
	require.NoError(t, err)

	assert.Equal(t, message.TypeValidationResult, out.MessageType)
	assert.Equal(t, message.AgentConversational, out.Recipient)
	assert.Equal(t, false, out.Content[message.KeyIsValid])
	errs := out.Content[message.KeyErrors].([]string)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "lookback_period")
	assert.NotEmpty(t, out.Content[message.KeySuggestions])
	assert.NotContains(t, out.Content, message.KeyStrategyParams)
}

func TestValidateMomentumRanges(t *testing.T) {
	tests := []struct {
		name         string
		lookback     float64
		threshold    float64
		valid        bool
		wantWarnings int
	}{
		{name: "below hard min", lookback: 0, threshold: 0.05, valid: false},
		{name: "above hard max", lookback: 501, threshold: 0.05, valid: false},
		{name: "recommended", lookback: 20, threshold: 0.05, valid: true},
		{name: "recommended bounds", lookback: 10, threshold: 0.1, valid: true},
		{name: "outside recommended", lookback: 3, threshold: 0.05, valid: true, wantWarnings: 1},
	}

	ag := NewValidationAgent(&fakeLLM{}, nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := strategy.FromContent(fixture(map[string]any{
				"lookback_period": tt.lookback,
				"threshold":       tt.threshold,
			}))
			require.NoError(t, err)

			v := ag.Validate(context.Background(), params)
			assert.Equal(t, tt.valid, v.IsValid)
			assert.Equal(t, len(v.Errors) == 0, v.IsValid)
			assert.Len(t, v.Warnings, tt.wantWarnings)
		})
	}
}

func TestValidateNonFiniteParameter(t *testing.T) {
	ag := NewValidationAgent(nil, nil, nil)

	for _, raw := range []string{"NaN", "Inf", "-Inf"} {
		t.Run(raw, func(t *testing.T) {
			out, err := ag.Process(context.Background(),
				validationRequest(fixture(map[string]any{"lookback_period": raw, "threshold": 0.05})), state.NewSession("s1"))
			require.NoError(t, err)

			assert.Equal(t, false, out.Content[message.KeyIsValid])
			errs := out.Content[message.KeyErrors].([]string)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "lookback_period")
			assert.Contains(t, errs[0], "must be numeric")
			assert.Empty(t, out.Content[message.KeyWarnings])
		})
	}
}

func TestValidateLookbackThreeWarnsWithRecommendedMinimum(t *testing.T) {
	ag := NewValidationAgent(&fakeLLM{answers: []map[string]any{{"errors": []any{}, "suggestions": []any{}}}}, knowledgeRepo(), nil)

	out, err := ag.Process(context.Background(),
		validationRequest(fixture(map[string]any{"lookback_period": 3, "threshold": 0.05})), state.NewSession("s1"))
	require.NoError(t, err)

	assert.Equal(t, true, out.Content[message.KeyIsValid])
	warnings := out.Content[message.KeyWarnings].([]string)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "lookback_period")
	assert.Contains(t, warnings[0], "3")
	assert.Contains(t, warnings[0], "10")
	assert.NotNil(t, out.Content[message.KeyStrategyParams])
}

func TestValidateStructuralErrorsComeFirst(t *testing.T) {
	model := &fakeLLM{answers: []map[string]any{{
		"errors":      []any{"threshold too tight for the lookback"},
		"suggestions": []any{"widen the threshold"},
	}}}
	ag := NewValidationAgent(model, nil, nil)

	params := &strategy.Params{
		StrategyType: "momentum",
		Parameters:   map[string]float64{"lookback_period": 700, "threshold": 0.05},
		Explanation:  "third key disables the fixture shortcut",
	}
	v := ag.Validate(context.Background(), params)

	require.Len(t, v.Errors, 4)
	assert.Contains(t, v.Errors[0], "instrument or symbol")
	assert.Contains(t, v.Errors[1], "frequency or timeframe")
	assert.Contains(t, v.Errors[2], "exceeds maximum 500")
	assert.Equal(t, "threshold too tight for the lookback", v.Errors[3])
	assert.Contains(t, v.Suggestions, "Decrease 'lookback_period' to at most 500")
	assert.Contains(t, v.Suggestions, "widen the threshold")
	require.Len(t, model.extractPrompts, 1)
	assert.Contains(t, model.extractPrompts[0], `"lookback_period": 700`)
}

func TestValidateUnknownTypeOnlyWarns(t *testing.T) {
	ag := NewValidationAgent(nil, nil, nil)
	v := ag.Validate(context.Background(), &strategy.Params{
		StrategyType: "pairs_trading",
		Parameters:   map[string]float64{"z": 2},
	})
	assert.True(t, v.IsValid)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "pairs_trading")
}

func TestValidateLLMParseFailureBecomesOneError(t *testing.T) {
	model := &fakeLLM{answers: []map[string]any{llm.ParseFailure(errors.New("unexpected token"), "not json")}}
	ag := NewValidationAgent(model, nil, nil)

	params, err := strategy.FromContent(fixture(map[string]any{"lookback_period": 20, "threshold": 0.05}))
	require.NoError(t, err)

	v := ag.Validate(context.Background(), params)
	assert.False(t, v.IsValid)
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], "Failed to parse JSON response")
}

func TestValidateLLMFaultBecomesOneError(t *testing.T) {
	model := &fakeLLM{jsonErr: errors.Wrap(errors.ErrUnavailable, "provider down")}
	ag := NewValidationAgent(model, nil, nil)

	params, err := strategy.FromContent(fixture(map[string]any{"lookback_period": 20, "threshold": 0.05}))
	require.NoError(t, err)

	v := ag.Validate(context.Background(), params)
	require.Len(t, v.Errors, 1)
	assert.Contains(t, v.Errors[0], "provider down")
}

func TestValidateInjectsKnowledgeSuggestions(t *testing.T) {
	ag := NewValidationAgent(nil, knowledgeRepo(), nil)
	params, err := strategy.FromContent(fixture(map[string]any{"threshold": 0.05}))
	require.NoError(t, err)

	v := ag.Validate(context.Background(), params)
	require.False(t, v.IsValid)

	assert.Contains(t, v.Suggestions,
		"For momentum strategies, calibrate the period against RSI, MACD, ADX, the indicators the knowledge base recommends.")
}

func TestValidateFallsBackToSessionStrategy(t *testing.T) {
	ag := NewValidationAgent(nil, nil, nil)
	sess := state.NewSession("s1")
	sess.CurrentStrategy = &strategy.Params{
		StrategyType: "rsi",
		Symbol:       "BTC/USDT",
		Timeframe:    "1h",
		Parameters:   map[string]float64{"period": 14, "overbought": 70, "oversold": 30},
	}

	out, err := ag.Process(context.Background(), validationRequest(nil), sess)
	require.NoError(t, err)
	assert.Equal(t, true, out.Content[message.KeyIsValid])
}

func TestValidateNothingToValidate(t *testing.T) {
	ag := NewValidationAgent(nil, nil, nil)

	out, err := ag.Process(context.Background(), validationRequest(nil), state.NewSession("s1"))
	require.NoError(t, err)

	assert.Equal(t, message.TypeError, out.MessageType)
	assert.Equal(t, false, out.Content[message.KeyIsValid])
	assert.Equal(t, []string{NoStrategyParams}, out.Content[message.KeyErrors])
}

func TestValidateRequestNeedsValidateFlag(t *testing.T) {
	ag := NewValidationAgent(nil, nil, nil)
	req := message.New(message.AgentUser, message.AgentValidation, message.TypeRequest,
		map[string]any{message.KeyStrategyParams: fixture(map[string]any{"lookback_period": 20, "threshold": 0.05})}, nil)

	out, err := ag.Process(context.Background(), req, state.NewSession(""))
	require.NoError(t, err)
	assert.Equal(t, message.TypeError, out.MessageType)

	req.Context[message.CtxValidate] = true
	out, err = ag.Process(context.Background(), req, state.NewSession(""))
	require.NoError(t, err)
	assert.Equal(t, message.TypeValidationResult, out.MessageType)
	assert.Equal(t, message.AgentUser, out.Recipient)
}

func TestFeedbackFor(t *testing.T) {
	ag := NewValidationAgent(nil, nil, nil)
	result, err := ag.Process(context.Background(), validationRequest(fixture(map[string]any{"threshold": 0.05})), state.NewSession("s1"))
	require.NoError(t, err)

	fb := ag.FeedbackFor(result)
	assert.Equal(t, message.TypeFeedback, fb.MessageType)
	assert.Equal(t, message.AgentValidation, fb.Sender)
	assert.Equal(t, message.AgentConversational, fb.Recipient)
	assert.Equal(t, "s1", fb.SessionID())
	assert.Equal(t, result.Content[message.KeyErrors], fb.Content[message.KeyErrors])
	assert.NotEqual(t, result.MessageID, fb.MessageID)
}
