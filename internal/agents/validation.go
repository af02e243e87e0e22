package agents

import (
	"context"
	"fmt"

	"strategist/internal/agents/state"
	kg "strategist/internal/domain/knowledge"
	"strategist/internal/domain/message"
	"strategist/internal/domain/strategy"
	"strategist/internal/knowledge"
	"strategist/internal/llm"
	"strategist/internal/metrics"
	"strategist/pkg/errors"
	"strategist/pkg/templates"
)

// Prompt template ids used by the validation agent.
const (
	tmplValidationSystem      = "prompts/validation/system"
	tmplValidationConsistency = "prompts/validation/consistency"
)

// NoStrategyParams is the single error of a request that carries nothing to validate.
const NoStrategyParams = "No strategy parameters provided"

// ValidationAgent checks strategy parameters: structure, the rule table,
// knowledge-base suggestions and an LLM consistency review.
type ValidationAgent struct {
	Base
	llm   LLM
	repo  kg.Repository
	rules *strategy.RuleTable
	tmpl  *templates.Registry
}

var _ Agent = (*ValidationAgent)(nil)

// NewValidationAgent creates the agent. llm and repo may be nil; a nil
// rule table means the built-in defaults.
func NewValidationAgent(model LLM, repo kg.Repository, rules *strategy.RuleTable) *ValidationAgent {
	if rules == nil {
		rules = strategy.DefaultRules()
	}
	return &ValidationAgent{
		Base:  NewBase(message.AgentValidation),
		llm:   model,
		repo:  repo,
		rules: rules,
		tmpl:  templates.Get(),
	}
}

// Process handles validation_request from any sender and request when
// the context carries the validate flag.
func (a *ValidationAgent) Process(ctx context.Context, msg *message.Envelope, sess *state.Session) (*message.Envelope, error) {
	if msg == nil {
		return nil, errors.ErrNilEnvelope
	}

	switch {
	case msg.MessageType == message.TypeValidationRequest:
	case msg.MessageType == message.TypeRequest && msg.HasFlag(message.CtxValidate):
	default:
		return a.Unsupported(msg), nil
	}

	if sess == nil {
		sess = state.NewSession(msg.SessionID())
	}
	sess.Lock()
	defer sess.Unlock()

	params, err := strategy.FromContent(msg.Content[message.KeyStrategyParams])
	if err != nil {
		v := strategy.NewVerdict()
		v.AddError(fmt.Sprintf("Invalid strategy parameters: %v", err))
		return a.result(msg, nil, v.Finalize()), nil
	}
	if params.IsEmpty() {
		params = sess.CurrentStrategy
	}
	if params.IsEmpty() {
		return a.Reply(msg, message.TypeError, map[string]any{
			message.KeyIsValid: false,
			message.KeyErrors:  []string{NoStrategyParams},
			message.KeyText:    NoStrategyParams,
		}), nil
	}

	return a.result(msg, params, a.Validate(ctx, params)), nil
}

// Validate runs the pipeline. Errors are ordered: structure, rule
// table, then LLM findings.
func (a *ValidationAgent) Validate(ctx context.Context, params *strategy.Params) *strategy.Verdict {
	v := strategy.NewVerdict()

	strategy.CheckStructure(params, v)
	if params.StrategyType != "" {
		a.rules.Check(params, v)
	}

	if len(v.Errors) > 0 && a.repo != nil {
		for _, s := range knowledge.EnhanceValidationFeedback(ctx, a.repo, v.Errors, params.StrategyType) {
			v.AddSuggestion(s)
		}
	}

	if params.StrategyType != "" && params.Parameters != nil && a.llm != nil {
		a.checkConsistency(ctx, params, v)
	}

	v.Finalize()
	metrics.RecordVerdict(params.StrategyType, v.IsValid)
	a.log.Debugw("strategy validated",
		"strategy_type", params.StrategyType,
		"is_valid", v.IsValid,
		"errors", len(v.Errors),
		"warnings", len(v.Warnings),
	)
	return v
}

func (a *ValidationAgent) checkConsistency(ctx context.Context, params *strategy.Params, v *strategy.Verdict) {
	prompt, err := a.tmpl.Render(tmplValidationConsistency, map[string]any{
		"StrategyType": params.StrategyType,
		"Params":       params.String(),
	})
	if err != nil {
		v.AddError(fmt.Sprintf("LLM consistency check failed: %v", err))
		return
	}
	system, _ := a.tmpl.Render(tmplValidationSystem, nil)

	res, err := a.llm.ExtractJSON(ctx, prompt, system)
	if err != nil {
		a.log.ErrorWithContext(ctx, err, "strategy_type", params.StrategyType)
		v.AddError(fmt.Sprintf("LLM consistency check failed: %v", err))
		return
	}
	if llm.IsParseFailure(res) {
		v.AddError(fmt.Sprintf("LLM consistency check failed: %v", res[llm.KeyError]))
		return
	}

	for _, e := range stringList(res[message.KeyErrors]) {
		v.AddError(e)
	}
	for _, s := range stringList(res[message.KeySuggestions]) {
		v.AddSuggestion(s)
	}
}

func (a *ValidationAgent) result(msg *message.Envelope, params *strategy.Params, v *strategy.Verdict) *message.Envelope {
	content := map[string]any{
		message.KeyIsValid:     v.IsValid,
		message.KeyWarnings:    v.Warnings,
		message.KeySuggestions: v.Suggestions,
	}
	if v.IsValid {
		content[message.KeyStrategyParams] = params.ToMap()
	} else {
		content[message.KeyErrors] = v.Errors
	}
	return a.Reply(msg, message.TypeValidationResult, content)
}

// FeedbackFor relabels a validation result as feedback for the conversational agent.
func (a *ValidationAgent) FeedbackFor(result *message.Envelope) *message.Envelope {
	content := make(map[string]any, len(result.Content))
	for k, v := range result.Content {
		content[k] = v
	}
	return a.CreateMessage(message.AgentConversational, message.TypeFeedback, content, message.CopySession(result.Context))
}
