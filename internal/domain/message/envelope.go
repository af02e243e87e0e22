package message

import (
	"time"

	"github.com/google/uuid"
)

// Envelope is the unit of inter-agent communication.
type Envelope struct {
	MessageID   string         `json:"message_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Sender      AgentName      `json:"sender"`
	Recipient   AgentName      `json:"recipient"`
	MessageType Type           `json:"message_type"`
	Content     map[string]any `json:"content"`
	Context     map[string]any `json:"context"`
}

// New builds an envelope with a fresh id and a UTC timestamp.
// Nil content and context are replaced with empty maps.
func New(sender, recipient AgentName, msgType Type, content, ctx map[string]any) *Envelope {
	if content == nil {
		content = map[string]any{}
	}
	if ctx == nil {
		ctx = map[string]any{}
	}
	return &Envelope{
		MessageID:   uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Sender:      sender,
		Recipient:   recipient,
		MessageType: msgType,
		Content:     content,
		Context:     ctx,
	}
}

// SessionID returns context.session_id, or "" when absent.
func (e *Envelope) SessionID() string {
	if e == nil || e.Context == nil {
		return ""
	}
	id, _ := e.Context[CtxSessionID].(string)
	return id
}

// Text returns content.text, or "" when absent.
func (e *Envelope) Text() string {
	return e.ContentString(KeyText)
}

// ContentString returns a string content field, or "".
func (e *Envelope) ContentString(key string) string {
	if e == nil || e.Content == nil {
		return ""
	}
	s, _ := e.Content[key].(string)
	return s
}

// Flag reads a boolean context flag. A missing key yields def.
func (e *Envelope) Flag(key string, def bool) bool {
	if e == nil || e.Context == nil {
		return def
	}
	v, ok := e.Context[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "1" || b == "yes"
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return true
	}
}

// HasFlag reports whether the context carries key at all.
func (e *Envelope) HasFlag(key string) bool {
	if e == nil || e.Context == nil {
		return false
	}
	_, ok := e.Context[key]
	return ok
}

// MissingFields lists required envelope fields that are absent or empty.
func (e *Envelope) MissingFields() []string {
	if e == nil {
		return []string{"message_id", "timestamp", "sender", "recipient", "message_type", "content"}
	}
	var missing []string
	if e.MessageID == "" {
		missing = append(missing, "message_id")
	}
	if e.Timestamp.IsZero() {
		missing = append(missing, "timestamp")
	}
	if e.Sender == "" {
		missing = append(missing, "sender")
	}
	if e.Recipient == "" {
		missing = append(missing, "recipient")
	}
	if e.MessageType == "" {
		missing = append(missing, "message_type")
	}
	if e.Content == nil {
		missing = append(missing, "content")
	}
	return missing
}

// Validate checks that the required envelope fields are present.
// Content shape is not inspected.
func Validate(e *Envelope) bool {
	return len(e.MissingFields()) == 0
}

var requiredKeys = []string{"message_id", "timestamp", "sender", "recipient", "message_type", "content"}

// ValidateRaw applies the same presence check to a decoded wire object.
func ValidateRaw(raw map[string]any) bool {
	for _, k := range requiredKeys {
		v, ok := raw[k]
		if !ok || v == nil {
			return false
		}
	}
	return true
}

// CopySession copies session_id from src into a fresh context map.
func CopySession(src map[string]any) map[string]any {
	ctx := map[string]any{}
	if src == nil {
		return ctx
	}
	if id, ok := src[CtxSessionID]; ok {
		ctx[CtxSessionID] = id
	}
	return ctx
}
