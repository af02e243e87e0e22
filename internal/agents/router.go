package agents

import (
	"context"
	"strings"

	"strategist/internal/domain/message"
	"strategist/pkg/logger"
)

// ValidationKeywords route a message straight to the validation agent.
var ValidationKeywords = []string{"validate", "check my strategy"}

// Router is the master entry point: it picks the target agent for user
// text and drives the validation round trip.
type Router struct {
	bus          Sender
	validation   *ValidationAgent
	autoValidate bool
	log          *logger.Logger
}

// NewRouter creates a router. With autoValidate, every strategy the
// conversational agent extracts is validated and explained before returning.
func NewRouter(bus Sender, validation *ValidationAgent, autoValidate bool) *Router {
	return &Router{
		bus:          bus,
		validation:   validation,
		autoValidate: autoValidate,
		log:          logger.Get().WithComponent(string(message.AgentMaster)),
	}
}

// Route maps free text to the agent that should handle it.
func (r *Router) Route(text string) message.AgentName {
	if containsAny(strings.ToLower(text), ValidationKeywords) {
		return message.AgentValidation
	}
	return message.AgentConversational
}

// Handle sends one user message and returns the final user-facing envelope.
func (r *Router) Handle(ctx context.Context, sessionID, text string, flags map[string]any) (*message.Envelope, error) {
	msgCtx := make(map[string]any, len(flags)+2)
	for k, v := range flags {
		msgCtx[k] = v
	}
	if sessionID != "" {
		msgCtx[message.CtxSessionID] = sessionID
	}

	target := r.Route(text)
	if target == message.AgentValidation {
		msgCtx[message.CtxValidate] = true
	}
	r.log.Debugw("routing", "session_id", sessionID, "target", target)

	reply, err := r.bus.Send(ctx, message.New(message.AgentUser, target, message.TypeRequest,
		map[string]any{message.KeyText: text}, msgCtx))
	if err != nil {
		return nil, err
	}

	if target == message.AgentValidation {
		if reply.MessageType != message.TypeValidationResult {
			return reply, nil
		}
		return r.explain(ctx, reply)
	}

	params, ok := reply.Content[message.KeyStrategyParams]
	if !r.autoValidate || r.validation == nil || !ok || reply.MessageType != message.TypeResponse {
		return reply, nil
	}

	result, err := r.bus.Send(ctx, message.New(message.AgentMaster, message.AgentValidation, message.TypeValidationRequest,
		map[string]any{message.KeyStrategyParams: params}, message.CopySession(reply.Context)))
	if err != nil {
		return nil, err
	}
	if result.MessageType != message.TypeValidationResult {
		return reply, nil
	}

	final, err := r.explain(ctx, result)
	if err != nil {
		return nil, err
	}
	if final.MessageType == message.TypeResponse {
		final.Content[message.KeyStrategyParams] = params
		if recs, ok := reply.Content[message.KeyKnowledge]; ok {
			final.Content[message.KeyKnowledge] = recs
		}
	}
	return final, nil
}

// explain turns a verdict into feedback and lets the conversational agent phrase it.
func (r *Router) explain(ctx context.Context, result *message.Envelope) (*message.Envelope, error) {
	if r.validation == nil {
		return result, nil
	}
	return r.bus.Send(ctx, r.validation.FeedbackFor(result))
}
