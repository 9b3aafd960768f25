package ws

import (
	"bytes"
	"encoding/json"

	"github.com/fathima-sithara/teamchat-service/internal/models"
)

// Inbound action tags. Anything else is rejected with a scoped error event.
const (
	ActionJoin           = "join"
	ActionLeave          = "leave"
	ActionMessage        = "message"
	ActionTyping         = "typing"
	ActionRead           = "read"
	ActionPresence       = "presence"
	ActionHeartbeat      = "heartbeat"
	ActionReactionAdd    = "reaction:add"
	ActionReactionRemove = "reaction:remove"
)

// Outbound event tags.
const (
	EventMessage  = "message"
	EventTyping   = "typing"
	EventRead     = "read"
	EventPresence = "presence"
	EventReaction = "message:reaction"
	EventError    = "error"
)

// Envelope is the wire format in both directions: a tag plus a fixed
// payload shape per tag.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(typ string, payload any) *Envelope {
	b, err := json.Marshal(payload)
	if err != nil {
		return &Envelope{Type: typ}
	}
	return &Envelope{Type: typ, Payload: b}
}

// Decode unmarshals the payload into the tag's fixed shape. Unknown fields
// are rejected rather than silently accepted.
func (e *Envelope) Decode(v any) error {
	dec := json.NewDecoder(bytes.NewReader(e.Payload))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Inbound payload shapes.

type JoinPayload struct {
	ChatID string `json:"chat_id"`
}

type MessagePayload struct {
	ChatID    string `json:"chat_id"`
	Content   string `json:"content"`
	ReplyToID string `json:"reply_to_id,omitempty"`
}

type TypingPayload struct {
	ChatID   string `json:"chat_id"`
	IsTyping bool   `json:"is_typing"`
}

type ReadPayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id,omitempty"`
}

type PresencePayload struct {
	Status     string `json:"status"`
	StatusText string `json:"status_text,omitempty"`
}

type ReactionPayload struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// Outbound event shapes.

type MessageEvent struct {
	Message *models.MessageWithSender `json:"message"`
	Chat    ChatRef                   `json:"chat"`
}

type ChatRef struct {
	ID   string          `json:"id"`
	Type models.ChatType `json:"type"`
}

type TypingEvent struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	IsTyping bool   `json:"is_typing"`
}

type ReadEvent struct {
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

type PresenceEvent struct {
	UserID     string `json:"user_id"`
	Status     string `json:"status"`
	StatusText string `json:"status_text,omitempty"`
}

type ReactionEvent struct {
	MessageID string                 `json:"message_id"`
	Reactions []models.ReactionGroup `json:"reactions"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
