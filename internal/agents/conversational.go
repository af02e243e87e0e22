package agents

import (
	"context"
	"fmt"
	"strings"

	"strategist/internal/agents/state"
	kg "strategist/internal/domain/knowledge"
	"strategist/internal/domain/message"
	"strategist/internal/domain/strategy"
	"strategist/internal/knowledge"
	"strategist/internal/llm"
	"strategist/pkg/errors"
	"strategist/pkg/templates"
)

// DefaultHistoryWindow is how many recent turns are rendered into prompts.
const DefaultHistoryWindow = 5

// ConversationalConfig tunes the conversational agent.
type ConversationalConfig struct {
	HistoryWindow int
	// ChartURL turns a chart id into a link. Defaults to a relative path.
	ChartURL func(chartID string) string
}

// ConversationalAgent is the front door: it classifies user requests,
// extracts and enhances strategies, relays data requests and explains
// validation results.
type ConversationalAgent struct {
	Base
	llm           LLM
	repo          kg.Repository
	bus           Sender
	tmpl          *templates.Registry
	historyWindow int
	chartURL      func(string) string
}

var _ Agent = (*ConversationalAgent)(nil)

// NewConversationalAgent creates the agent. repo may be nil; bus is used
// for data-feature requests.
func NewConversationalAgent(model LLM, repo kg.Repository, bus Sender, cfg ConversationalConfig) *ConversationalAgent {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.ChartURL == nil {
		cfg.ChartURL = func(id string) string { return fmt.Sprintf("charts/%s.png", id) }
	}
	return &ConversationalAgent{
		Base:          NewBase(message.AgentConversational),
		llm:           model,
		repo:          repo,
		bus:           bus,
		tmpl:          templates.Get(),
		historyWindow: cfg.HistoryWindow,
		chartURL:      cfg.ChartURL,
	}
}

// knowledgeContext feeds the chat prompt.
type knowledgeContext struct {
	StrategyType        string
	Indicators          []string
	PositionSizing      []string
	RiskManagement      []string
	TemplateDescription string
	Defaults            map[string]float64
	Explanation         string
}

func (a *ConversationalAgent) Process(ctx context.Context, msg *message.Envelope, sess *state.Session) (*message.Envelope, error) {
	if msg == nil {
		return nil, errors.ErrNilEnvelope
	}
	if sess == nil {
		sess = state.NewSession(msg.SessionID())
	}

	var handle func(context.Context, *message.Envelope, *state.Session) *message.Envelope
	switch {
	case msg.MessageType == message.TypeRequest && msg.Sender == message.AgentUser:
		handle = a.handleRequest
	case msg.MessageType == message.TypeFeedback && msg.Sender == message.AgentValidation:
		handle = a.handleFeedback
	case (msg.MessageType == message.TypeResponse || msg.MessageType == message.TypeError) && msg.Sender == message.AgentDataFeature:
		handle = a.handleDataResponse
	default:
		return a.Unsupported(msg), nil
	}

	sess.Lock()
	defer sess.Unlock()
	return handle(ctx, msg, sess), nil
}

func (a *ConversationalAgent) handleRequest(ctx context.Context, msg *message.Envelope, sess *state.Session) *message.Envelope {
	text := msg.Text()
	history := sess.RecentTurns(a.historyWindow)
	sess.AddTurn(state.RoleUser, text)

	intent := ClassifyIntent(text)
	a.log.Debugw("request classified", "session_id", sess.ID, "intent", intent)

	switch intent {
	case IntentVisualization:
		return a.requestData(ctx, msg, sess, a.visualizationRequest(text, sess))
	case IntentDataAvailability:
		return a.requestData(ctx, msg, sess, map[string]any{
			message.KeyType:  DataTypeAvailability,
			message.KeyQuery: text,
			"symbol":         ParseSymbol(text),
		})
	case IntentIndicator:
		return a.requestData(ctx, msg, sess, a.indicatorRequest(text, sess))
	}

	if msg.Flag(message.CtxExtractParams, false) {
		return a.extractParams(ctx, msg, sess, history)
	}
	return a.chat(ctx, msg, sess, history)
}

func (a *ConversationalAgent) extractParams(ctx context.Context, msg *message.Envelope, sess *state.Session, history []state.Turn) *message.Envelope {
	const failText = "Failed to extract strategy parameters"
	if a.llm == nil {
		return a.failure(ctx, msg, msg.Sender, failText, errors.Wrap(errors.ErrUnavailable, "language model not configured"))
	}

	prompt, err := a.tmpl.Render(tmplExtractParams, map[string]any{
		"History": history,
		"Text":    msg.Text(),
	})
	if err != nil {
		return a.failure(ctx, msg, msg.Sender, failText, err)
	}

	res, err := a.llm.ExtractJSON(ctx, prompt, a.system())
	if err != nil {
		return a.failure(ctx, msg, msg.Sender, failText, err)
	}
	if llm.IsParseFailure(res) {
		return a.failure(ctx, msg, msg.Sender, failText, errors.Wrap(errors.ErrLLMParse, str(res[llm.KeyError])))
	}

	params, err := strategy.FromContent(res)
	if err != nil {
		return a.failure(ctx, msg, msg.Sender, failText, err)
	}

	content := map[string]any{}
	if !params.IsEmpty() {
		if msg.Flag(message.CtxUseKnowledgeGraph, true) && a.repo != nil && params.StrategyType != "" {
			recs := knowledge.GetRecommendations(ctx, a.repo, params.StrategyType)
			params = knowledge.ApplyRecommendations(ctx, a.repo, params, recs)
			sess.KnowledgeRecommendations = recs
			content[message.KeyKnowledge] = recs
		}
		sess.CurrentStrategy = params
		content[message.KeyStrategyParams] = params.ToMap()
	}

	reply := describeStrategy(params)
	sess.AddTurn(state.RoleAssistant, reply)
	content[message.KeyText] = reply

	return a.Reply(msg, message.TypeResponse, content)
}

func (a *ConversationalAgent) chat(ctx context.Context, msg *message.Envelope, sess *state.Session, history []state.Turn) *message.Envelope {
	const failText = "Failed to generate a response"
	if a.llm == nil {
		return a.failure(ctx, msg, msg.Sender, failText, errors.Wrap(errors.ErrUnavailable, "language model not configured"))
	}

	text := msg.Text()
	var kc *knowledgeContext
	if a.repo != nil && strings.Contains(strings.ToLower(text), "strategy") {
		kc = a.knowledgeFor(ctx, text, sess)
	}

	var current string
	if !sess.CurrentStrategy.IsEmpty() {
		current = sess.CurrentStrategy.String()
	}

	prompt, err := a.tmpl.Render(tmplChat, map[string]any{
		"History":   history,
		"Strategy":  current,
		"Knowledge": kc,
		"Text":      text,
	})
	if err != nil {
		return a.failure(ctx, msg, msg.Sender, failText, err)
	}

	reply, err := a.llm.Generate(ctx, prompt, a.system())
	if err != nil {
		return a.failure(ctx, msg, msg.Sender, failText, err)
	}
	sess.AddTurn(state.RoleAssistant, reply)

	content := map[string]any{message.KeyText: reply}
	if kc != nil {
		content[message.KeyKnowledge] = sess.KnowledgeRecommendations
	}
	return a.Reply(msg, message.TypeResponse, content)
}

// knowledgeFor asks the LLM which strategy type the text refers to and
// collects recommendations for it. Recommendations are cached on the
// session per strategy type. Failures only drop the augmentation.
func (a *ConversationalAgent) knowledgeFor(ctx context.Context, text string, sess *state.Session) *knowledgeContext {
	prompt, err := a.tmpl.Render(tmplIdentifyStrategy, map[string]any{"Text": text})
	if err != nil {
		a.log.Warnw("identify strategy prompt failed", "error", err)
		return nil
	}
	res, err := a.llm.ExtractJSON(ctx, prompt, a.system())
	if err != nil || llm.IsParseFailure(res) {
		a.log.Warnw("strategy type not identified", "session_id", sess.ID, "error", err)
		return nil
	}

	strategyType := strings.ToLower(strings.TrimSpace(str(res[strategy.FieldStrategyType])))
	strategyType = strings.NewReplacer(" ", "_", "-", "_").Replace(strategyType)
	if strategyType == "" {
		return nil
	}

	recs := sess.KnowledgeRecommendations
	if recs == nil || recs.StrategyType != strategyType {
		recs = knowledge.GetRecommendations(ctx, a.repo, strategyType)
		sess.KnowledgeRecommendations = recs
	}

	kc := &knowledgeContext{
		StrategyType:   strategyType,
		Indicators:     recs.Indicators,
		RiskManagement: recs.RiskManagement,
		Explanation:    recs.Explanation,
	}
	if recs.PositionSizing != "" {
		kc.PositionSizing = []string{recs.PositionSizing}
	}
	if tpl, err := a.repo.GetStrategyTemplate(ctx, strategyType); err == nil && tpl != nil {
		kc.TemplateDescription = tpl.Description
		kc.Defaults = tpl.DefaultParameters
	}
	return kc
}

func (a *ConversationalAgent) visualizationRequest(text string, sess *state.Session) map[string]any {
	symbol, timeframe := a.market(text, sess)
	return map[string]any{
		message.KeyType:  DataTypeVisualization,
		message.KeyQuery: text,
		"symbol":         symbol,
		"timeframe":      timeframe,
		"indicators":     DetectIndicators(text),
	}
}

func (a *ConversationalAgent) indicatorRequest(text string, sess *state.Session) map[string]any {
	name, _ := DetectIndicator(text)
	symbol, timeframe := a.market(text, sess)
	return map[string]any{
		message.KeyType:  DataTypeIndicator,
		message.KeyQuery: text,
		"indicator":      name,
		"window":         ParseWindow(text),
		"symbol":         symbol,
		"timeframe":      timeframe,
	}
}

// market reads symbol and timeframe from the text, falling back to the current strategy.
func (a *ConversationalAgent) market(text string, sess *state.Session) (string, string) {
	symbol, timeframe := ParseSymbol(text), ParseTimeframe(text)
	if cur := sess.CurrentStrategy; cur != nil {
		if symbol == "" {
			symbol = cur.Market()
		}
		if timeframe == "" {
			timeframe = cur.Interval()
		}
	}
	return symbol, timeframe
}

func (a *ConversationalAgent) requestData(ctx context.Context, msg *message.Envelope, sess *state.Session, content map[string]any) *message.Envelope {
	if a.bus == nil {
		return a.failure(ctx, msg, msg.Sender, "Market data is not available", errors.ErrUnavailable)
	}

	req := a.CreateMessage(message.AgentDataFeature, message.TypeRequest, content, message.CopySession(msg.Context))
	resp, err := a.bus.Send(ctx, req)
	if err != nil {
		return a.failure(ctx, msg, msg.Sender, "Market data request failed", err)
	}
	return a.handleDataResponse(ctx, resp, sess)
}

// handleDataResponse turns a data-feature result into a user-facing explanation.
func (a *ConversationalAgent) handleDataResponse(ctx context.Context, resp *message.Envelope, sess *state.Session) *message.Envelope {
	content := resp.Content
	if resp.MessageType == message.TypeError && str(content[message.KeyType]) == "" {
		content = map[string]any{
			message.KeyType:  DataTypeError,
			message.KeyQuery: content[message.KeyQuery],
			message.KeyError: firstNonEmpty(str(content[message.KeyError]), str(content[message.KeyText])),
		}
	}

	dp := formatDataResult(str(content[message.KeyQuery]), content, a.chartURL)
	if a.llm == nil {
		return a.failure(ctx, resp, message.AgentUser, "Failed to explain market data", errors.Wrap(errors.ErrUnavailable, "language model not configured"))
	}
	prompt, err := a.tmpl.Render(dp.Template, dp.Data)
	if err != nil {
		return a.failure(ctx, resp, message.AgentUser, "Failed to explain market data", err)
	}
	reply, err := a.llm.Generate(ctx, prompt, a.system())
	if err != nil {
		return a.failure(ctx, resp, message.AgentUser, "Failed to explain market data", err)
	}
	sess.AddTurn(state.RoleAssistant, reply)

	out := map[string]any{
		message.KeyText: reply,
		message.KeyType: content[message.KeyType],
	}
	switch str(content[message.KeyType]) {
	case DataTypeVisualizationResult:
		out[message.KeyVisualization] = dp.Data["URL"]
		out["chart_id"] = content["chart_id"]
	case DataTypeError:
		out[message.KeyError] = content[message.KeyError]
	}
	return a.CreateMessage(message.AgentUser, message.TypeResponse, out, message.CopySession(resp.Context))
}

// handleFeedback explains a validation result to the user.
func (a *ConversationalAgent) handleFeedback(ctx context.Context, msg *message.Envelope, sess *state.Session) *message.Envelope {
	const failText = "Failed to explain the validation result"

	isValid := boolValue(msg.Content[message.KeyIsValid])
	errs := stringList(msg.Content[message.KeyErrors])
	warnings := stringList(msg.Content[message.KeyWarnings])
	suggestions := stringList(msg.Content[message.KeySuggestions])

	params, err := strategy.FromContent(msg.Content[message.KeyStrategyParams])
	if err != nil {
		a.log.Warnw("feedback carries unreadable strategy", "error", err)
	}
	if params.IsEmpty() {
		params = sess.CurrentStrategy
	} else if isValid {
		sess.CurrentStrategy = params
	}

	var hints []string
	if !isValid && a.repo != nil {
		strategyType := ""
		if params != nil {
			strategyType = params.StrategyType
		}
		hints = missingFrom(suggestions, knowledge.EnhanceValidationFeedback(ctx, a.repo, errs, strategyType))
		sess.KnowledgeSuggestions = hints
	}

	if a.llm == nil {
		return a.failure(ctx, msg, message.AgentUser, failText, errors.Wrap(errors.ErrUnavailable, "language model not configured"))
	}
	prompt, err := a.tmpl.Render(tmplValidationFeedback, map[string]any{
		"Strategy":             params.String(),
		"IsValid":              isValid,
		"Errors":               errs,
		"Warnings":             warnings,
		"Suggestions":          suggestions,
		"KnowledgeSuggestions": hints,
	})
	if err != nil {
		return a.failure(ctx, msg, message.AgentUser, failText, err)
	}
	reply, err := a.llm.Generate(ctx, prompt, a.system())
	if err != nil {
		return a.failure(ctx, msg, message.AgentUser, failText, err)
	}
	sess.AddTurn(state.RoleAssistant, reply)

	return a.CreateMessage(message.AgentUser, message.TypeResponse, map[string]any{
		message.KeyText:           reply,
		message.KeyIsValid:        isValid,
		message.KeyErrors:         errs,
		message.KeyWarnings:       warnings,
		message.KeySuggestions:    suggestions,
		message.KeyKnowledgeHints: hints,
	}, message.CopySession(msg.Context))
}

func (a *ConversationalAgent) system() string {
	system, err := a.tmpl.Render(tmplSystem, nil)
	if err != nil {
		a.log.Warnw("system prompt unavailable", "error", err)
	}
	return system
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
