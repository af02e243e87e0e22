// Package state holds per-session conversation state for the agents.
// Sessions live in process memory only.
package state

import (
	"sync"
	"time"

	"strategist/internal/domain/strategy"
	"strategist/internal/knowledge"
)

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one entry of the conversation history.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is the mutable record for one session id. Callers hold Lock
// for the whole handling of a message.
type Session struct {
	ID string

	mu sync.Mutex

	History                  []Turn
	CurrentStrategy          *strategy.Params
	KnowledgeRecommendations *knowledge.Recommendations
	KnowledgeSuggestions     []string

	CreatedAt  time.Time
	LastActive time.Time
}

// NewSession creates an empty session. An empty id yields an ephemeral
// session that no store tracks.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		History:    []Turn{},
		CreatedAt:  now,
		LastActive: now,
	}
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// AddTurn appends to the history.
func (s *Session) AddTurn(role, content string) {
	s.History = append(s.History, Turn{Role: role, Content: content, At: time.Now().UTC()})
}

// RecentTurns returns the last n non-system turns, oldest first.
func (s *Session) RecentTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	out := make([]Turn, 0, n)
	for i := len(s.History) - 1; i >= 0 && len(out) < n; i-- {
		if s.History[i].Role == RoleSystem {
			continue
		}
		out = append(out, s.History[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
