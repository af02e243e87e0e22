package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrapf(ErrNoStrategyParams, "session %s", "abc")
	require.Error(t, err)
	assert.True(t, Is(err, ErrNoStrategyParams))
	assert.Equal(t, "session abc: no strategy parameters provided", err.Error())

	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))
}

func TestValidationErrorMatchesInvalidInput(t *testing.T) {
	err := fmt.Errorf("decode: %w", NewValidationError("parameters.threshold", "must be numeric", "high"))

	assert.True(t, Is(err, ErrInvalidInput))

	var ve *ValidationError
	require.True(t, As(err, &ve))
	assert.Equal(t, "parameters.threshold", ve.Field)
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.Nil(t, m.ToError())
	assert.Equal(t, "no errors", m.Error())

	m.Add(nil)
	m.Add(ErrTimeout)
	m.Add(NewDomainError("LLM", "reply rejected", ErrLLMParse))

	require.True(t, m.HasErrors())
	assert.Len(t, m.Errors, 2)
	assert.True(t, Is(m.ToError(), ErrLLMParse))
	assert.Contains(t, m.Error(), "multiple errors (2)")
}

func TestDomainError(t *testing.T) {
	err := NewDomainError("ROUTE", "no handler", ErrUnsupportedMessage)
	assert.Equal(t, "ROUTE: no handler: unsupported message", err.Error())
	assert.True(t, Is(err, ErrUnsupportedMessage))

	bare := NewDomainError("ROUTE", "no handler", nil)
	assert.Equal(t, "ROUTE: no handler", bare.Error())
}
