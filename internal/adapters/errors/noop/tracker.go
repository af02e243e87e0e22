package noop

import (
	"context"
	"sync"

	"strategist/pkg/errors"
)

var _ errors.Tracker = (*Tracker)(nil)

// Tracker discards events. It counts captured errors so tests can assert
// that a failure path reported something.
type Tracker struct {
	mu       sync.Mutex
	captured int
}

// New creates a new no-op tracker
func New() *Tracker {
	return &Tracker{}
}

func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	t.mu.Lock()
	t.captured++
	t.mu.Unlock()
	return nil
}

func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

func (t *Tracker) SetSession(ctx context.Context, sessionID string) {}

func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
}

func (t *Tracker) Flush(ctx context.Context) error {
	return nil
}

// Captured returns how many errors were passed to CaptureError.
func (t *Tracker) Captured() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.captured
}
