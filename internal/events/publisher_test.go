package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/domain/message"
	"strategist/pkg/errors"
	"strategist/pkg/logger"
)

type call struct {
	topic string
	key   string
	event interface{}
}

type fakeSink struct {
	calls []call
	err   error
}

func (f *fakeSink) Publish(_ context.Context, topic, key string, event interface{}) error {
	f.calls = append(f.calls, call{topic, key, event})
	return f.err
}

func TestRecordKeysBySession(t *testing.T) {
	sink := &fakeSink{}
	pub := NewEnvelopePublisher(sink, "audit", logger.Nop())

	env := message.New(message.AgentUser, message.AgentConversational, message.TypeRequest,
		map[string]any{message.KeyText: "hi"}, map[string]any{message.CtxSessionID: "s-9"})
	pub.Record(context.Background(), DirectionIn, env)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, "audit", sink.calls[0].topic)
	assert.Equal(t, "s-9", sink.calls[0].key)

	ev, ok := sink.calls[0].event.(EnvelopeEvent)
	require.True(t, ok)
	assert.Equal(t, DirectionIn, ev.Direction)
	assert.Same(t, env, ev.Envelope)
}

func TestRecordFallsBackToMessageID(t *testing.T) {
	sink := &fakeSink{}
	pub := NewEnvelopePublisher(sink, "audit", logger.Nop())

	env := message.New(message.AgentValidation, message.AgentUser, message.TypeValidationResult, nil, nil)
	pub.Record(context.Background(), DirectionOut, env)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, env.MessageID, sink.calls[0].key)
}

func TestRecordSwallowsSinkErrors(t *testing.T) {
	sink := &fakeSink{err: errors.ErrUnavailable}
	pub := NewEnvelopePublisher(sink, "audit", logger.Nop())

	assert.NotPanics(t, func() {
		pub.Record(context.Background(), DirectionOut, message.New(message.AgentUser, message.AgentMaster, message.TypeRequest, nil, nil))
		pub.Record(context.Background(), DirectionOut, nil)
	})
	assert.Len(t, sink.calls, 1)
}
