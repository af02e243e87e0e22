package events

import (
	"context"
	"time"

	"strategist/internal/domain/message"
	"strategist/pkg/logger"
)

// Sink is the transport an audit publisher writes to. *kafka.Producer satisfies it.
type Sink interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// EnvelopeEvent is the audit record for one delivered envelope.
type EnvelopeEvent struct {
	Envelope   *message.Envelope `json:"envelope"`
	SessionID  string            `json:"session_id,omitempty"`
	Direction  string            `json:"direction"`
	RecordedAt time.Time         `json:"recorded_at"`
}

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Recorder receives every envelope the bus delivers.
type Recorder interface {
	Record(ctx context.Context, direction string, env *message.Envelope)
}

// EnvelopePublisher writes envelopes to an audit topic keyed by session id.
// Publish failures are logged and never reach the caller.
type EnvelopePublisher struct {
	sink  Sink
	topic string
	log   *logger.Logger
}

// NewEnvelopePublisher creates a publisher for the given topic
func NewEnvelopePublisher(sink Sink, topic string, log *logger.Logger) *EnvelopePublisher {
	return &EnvelopePublisher{
		sink:  sink,
		topic: topic,
		log:   log.WithComponent("envelope_publisher"),
	}
}

// Record publishes env. It never fails the calling flow.
func (p *EnvelopePublisher) Record(ctx context.Context, direction string, env *message.Envelope) {
	if env == nil {
		return
	}
	event := EnvelopeEvent{
		Envelope:   env,
		SessionID:  env.SessionID(),
		Direction:  direction,
		RecordedAt: time.Now().UTC(),
	}
	key := event.SessionID
	if key == "" {
		key = env.MessageID
	}
	if err := p.sink.Publish(ctx, p.topic, key, event); err != nil {
		p.log.Warnw("envelope audit publish failed",
			"message_id", env.MessageID,
			"message_type", env.MessageType,
			"error", err,
		)
	}
}

// NoopRecorder discards envelopes.
type NoopRecorder struct{}

func (NoopRecorder) Record(context.Context, string, *message.Envelope) {}
