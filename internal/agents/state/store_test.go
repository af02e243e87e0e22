package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, max int, ttl time.Duration) (*Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore(max, ttl)
	s.now = c.now
	return s, c
}

func TestStoreGetCreatesOnce(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)

	a := s.Get("s1")
	a.AddTurn(RoleUser, "hello")
	b := s.Get("s1")

	assert.Same(t, a, b)
	assert.Len(t, b.History, 1)
	assert.Equal(t, 1, s.Len())
}

func TestStoreEmptyIDIsEphemeral(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)

	a := s.Get("")
	b := s.Get("")
	assert.NotSame(t, a, b)
	assert.Equal(t, 0, s.Len())
}

func TestStoreEvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestStore(t, 2, time.Hour)

	s.Get("a")
	s.Get("b")
	s.Get("a")
	s.Get("c")

	_, ok := s.Peek("b")
	assert.False(t, ok)
	_, ok = s.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestStoreExpiry(t *testing.T) {
	s, c := newTestStore(t, 10, time.Hour)

	first := s.Get("s1")
	first.AddTurn(RoleUser, "hello")

	c.advance(30 * time.Minute)
	assert.Same(t, first, s.Get("s1"))

	c.advance(61 * time.Minute)
	_, ok := s.Peek("s1")
	assert.False(t, ok)

	second := s.Get("s1")
	assert.NotSame(t, first, second)
	assert.Empty(t, second.History)
}

func TestStoreSweep(t *testing.T) {
	s, c := newTestStore(t, 10, time.Hour)

	s.Get("old")
	c.advance(2 * time.Hour)
	s.Get("fresh")

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
	_, ok := s.Peek("fresh")
	assert.True(t, ok)
}

func TestStoreDelete(t *testing.T) {
	s, _ := newTestStore(t, 10, time.Hour)
	s.Get("s1")
	s.Delete("s1")
	assert.Equal(t, 0, s.Len())
}

func TestRunJanitorStopsOnCancel(t *testing.T) {
	s := NewStore(10, time.Millisecond)
	s.Get("s1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestRecentTurnsSkipsSystem(t *testing.T) {
	sess := NewSession("s1")
	sess.AddTurn(RoleSystem, "sys")
	for _, text := range []string{"1", "2", "3", "4", "5", "6"} {
		sess.AddTurn(RoleUser, text)
	}
	sess.AddTurn(RoleSystem, "sys2")

	turns := sess.RecentTurns(5)
	require.Len(t, turns, 5)
	assert.Equal(t, "2", turns[0].Content)
	assert.Equal(t, "6", turns[4].Content)
	assert.Nil(t, sess.RecentTurns(0))
}
