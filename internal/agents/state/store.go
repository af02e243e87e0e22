package state

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"strategist/pkg/logger"
)

// Store defaults.
const (
	DefaultMaxEntries = 1000
	DefaultTTL        = 24 * time.Hour
)

// Store owns the sessions of one agent instance. Least recently used
// sessions are evicted at capacity; idle sessions expire after the TTL.
type Store struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *Session]
	ttl   time.Duration
	now   func() time.Time
	log   *logger.Logger
}

// NewStore creates a session store. Non-positive values fall back to the defaults.
func NewStore(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		ttl: ttl,
		now: func() time.Time { return time.Now().UTC() },
		log: logger.Get().WithComponent("session_store"),
	}
	// Size is positive, so NewWithEvict cannot fail.
	s.cache, _ = lru.NewWithEvict[string, *Session](maxEntries, func(id string, _ *Session) {
		s.log.Debugw("session evicted", "session_id", id)
	})
	return s
}

// Get returns the session for id, creating it on first reference or when
// the previous one expired. It marks the session active. An empty id
// yields a fresh ephemeral session.
func (s *Store) Get(id string) *Session {
	if id == "" {
		return NewSession("")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.cache.Get(id); ok && !s.expired(sess, now) {
		sess.LastActive = now
		return sess
	}

	sess := NewSession(id)
	sess.CreatedAt, sess.LastActive = now, now
	s.cache.Add(id, sess)
	return sess
}

// Peek returns a live session without creating or touching it.
func (s *Store) Peek(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.cache.Peek(id)
	if !ok || s.expired(sess, s.now()) {
		return nil, false
	}
	return sess, true
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(id)
}

// Len reports the number of held sessions, expired ones included until swept.
func (s *Store) Len() int {
	return s.cache.Len()
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, id := range s.cache.Keys() {
		sess, ok := s.cache.Peek(id)
		if ok && s.expired(sess, now) {
			s.cache.Remove(id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps on every tick until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Infow("expired sessions swept", "removed", n, "remaining", s.Len())
			}
		}
	}
}

// LastActive is read under the store lock only; agents never write it.
func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.LastActive) > s.ttl
}
