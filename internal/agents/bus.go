package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"strategist/internal/agents/state"
	"strategist/internal/domain/message"
	"strategist/internal/events"
	"strategist/internal/metrics"
	"strategist/pkg/errors"
	"strategist/pkg/logger"
)

// Bus delivers envelopes in-process. It resolves the recipient and the
// session, records the traffic and never locks the session itself: agents
// do that, which lets a handler send nested envelopes for its own session.
type Bus struct {
	registry *Registry
	sessions *state.Store
	recorder events.Recorder
	log      *logger.Logger
}

// NewBus creates a bus. A nil recorder discards the audit trail.
func NewBus(registry *Registry, sessions *state.Store, recorder events.Recorder) *Bus {
	if recorder == nil {
		recorder = events.NoopRecorder{}
	}
	return &Bus{
		registry: registry,
		sessions: sessions,
		recorder: recorder,
		log:      logger.Get().WithComponent("bus"),
	}
}

var _ Sender = (*Bus)(nil)

// Send delivers msg to its recipient and returns the reply. Malformed
// envelopes and unknown recipients produce error envelopes; the error
// return is kept for agents that break their contract.
func (b *Bus) Send(ctx context.Context, msg *message.Envelope) (*message.Envelope, error) {
	if msg == nil {
		return nil, errors.ErrNilEnvelope
	}
	if sessionID := msg.SessionID(); sessionID != "" {
		ctx = errors.WithSessionID(ctx, sessionID)
	}
	b.recorder.Record(ctx, events.DirectionIn, msg)

	if missing := msg.MissingFields(); len(missing) > 0 {
		return b.reject(ctx, msg, fmt.Sprintf("Malformed envelope: missing %s", strings.Join(missing, ", ")), errors.ErrInvalidInput), nil
	}

	ag, ok := b.registry.Get(msg.Recipient)
	if !ok {
		return b.reject(ctx, msg, fmt.Sprintf("Unknown recipient '%s'", msg.Recipient), errors.ErrUnknownAgent), nil
	}

	start := time.Now()
	reply, panicked, err := b.process(ctx, ag, msg)
	if err == nil && reply == nil {
		err = errors.ErrNilEnvelope
	}
	metrics.RecordAgentMessage(string(ag.Name()), string(msg.MessageType), time.Since(start), err)
	if panicked {
		return b.reject(ctx, msg, fmt.Sprintf("Agent '%s' failed to process the message", ag.Name()), errors.ErrInternal), nil
	}
	if err != nil {
		b.log.ErrorWithContext(ctx, errors.Wrapf(err, "agent %s", ag.Name()), "message_id", msg.MessageID)
		return nil, err
	}

	b.log.Debugw("delivered",
		"message_id", msg.MessageID,
		"recipient", msg.Recipient,
		"message_type", msg.MessageType,
		"reply_type", reply.MessageType,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	b.recorder.Record(ctx, events.DirectionOut, reply)
	return reply, nil
}

// process runs the agent, turning a panic into an ErrInternal failure.
func (b *Bus) process(ctx context.Context, ag Agent, msg *message.Envelope) (reply *message.Envelope, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("agent panicked",
				"agent", ag.Name(),
				"message_id", msg.MessageID,
				"panic", r,
			)
			reply, panicked, err = nil, true, errors.Wrapf(errors.ErrInternal, "agent %s panicked: %v", ag.Name(), r)
		}
	}()
	reply, err = ag.Process(ctx, msg, b.sessions.Get(msg.SessionID()))
	return reply, false, err
}

func (b *Bus) reject(ctx context.Context, msg *message.Envelope, text string, cause error) *message.Envelope {
	b.log.Warnw("envelope rejected", "message_id", msg.MessageID, "reason", text)

	sender := msg.Recipient
	if sender == "" {
		sender = message.AgentMaster
	}
	recipient := msg.Sender
	if recipient == "" {
		recipient = message.AgentUser
	}
	reply := message.New(sender, recipient, message.TypeError, map[string]any{
		message.KeyText:  text,
		message.KeyError: cause.Error(),
	}, message.CopySession(msg.Context))
	b.recorder.Record(ctx, events.DirectionOut, reply)
	return reply
}
