package agents

import (
	"context"
	"fmt"

	"strategist/internal/agents/state"
	"strategist/internal/domain/message"
	"strategist/pkg/logger"
)

// Agent handles one envelope at a time. The returned error is reserved
// for contract violations; every other failure is an error envelope.
type Agent interface {
	Name() message.AgentName
	Process(ctx context.Context, msg *message.Envelope, sess *state.Session) (*message.Envelope, error)
}

// LLM is the language capability the agents consume. *llm.Service implements it.
type LLM interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
	// ExtractJSON returns {"error", "raw_response"} with a nil error when the reply is not JSON.
	ExtractJSON(ctx context.Context, prompt, systemPrompt string) (map[string]any, error)
}

// Sender delivers an envelope to its recipient and returns the reply.
type Sender interface {
	Send(ctx context.Context, msg *message.Envelope) (*message.Envelope, error)
}

// Base carries what every agent shares: its name and a tagged logger.
type Base struct {
	name message.AgentName
	log  *logger.Logger
}

// NewBase creates the shared part of an agent.
func NewBase(name message.AgentName) Base {
	return Base{
		name: name,
		log:  logger.Get().WithComponent(string(name)),
	}
}

func (b Base) Name() message.AgentName { return b.name }

// CreateMessage builds an envelope sent by this agent.
func (b Base) CreateMessage(recipient message.AgentName, msgType message.Type, content, ctx map[string]any) *message.Envelope {
	return message.New(b.name, recipient, msgType, content, ctx)
}

// Reply addresses an envelope back to the sender of msg, keeping its session.
func (b Base) Reply(msg *message.Envelope, msgType message.Type, content map[string]any) *message.Envelope {
	return b.CreateMessage(msg.Sender, msgType, content, message.CopySession(msg.Context))
}

// Unsupported is the fallback for an unmatched (message_type, sender) pair.
func (b Base) Unsupported(msg *message.Envelope) *message.Envelope {
	return b.Reply(msg, message.TypeError, map[string]any{
		message.KeyText: UnsupportedText(msg.MessageType, msg.Sender),
	})
}

// UnsupportedText names the rejected combination.
func UnsupportedText(msgType message.Type, sender message.AgentName) string {
	return fmt.Sprintf("Unsupported message type '%s' from sender '%s'", msgType, sender)
}

// failure logs a downstream fault and turns it into an error envelope for recipient.
func (b Base) failure(ctx context.Context, msg *message.Envelope, recipient message.AgentName, text string, err error) *message.Envelope {
	b.log.ErrorWithContext(ctx, err,
		"message_id", msg.MessageID,
		"message_type", msg.MessageType,
		"sender", msg.Sender,
	)
	return b.CreateMessage(recipient, message.TypeError, map[string]any{
		message.KeyText:  fmt.Sprintf("%s: %v", text, err),
		message.KeyError: err.Error(),
	}, message.CopySession(msg.Context))
}
