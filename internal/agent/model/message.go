package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType tags how a message payload is interpreted and persisted.
type MessageType string

const (
	MessageTypeHuman  MessageType = "HUMAN"
	MessageTypeAI     MessageType = "AI"
	MessageTypeSystem MessageType = "SYSTEM"
	MessageTypeHidden MessageType = "HIDDEN"
)

// ContextMessageTypes are the types a model is allowed to see as history.
// SYSTEM messages are bookkeeping only.
var ContextMessageTypes = []MessageType{MessageTypeHuman, MessageTypeAI, MessageTypeHidden}

// Valid reports whether t belongs to the closed set of message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeHuman, MessageTypeAI, MessageTypeSystem, MessageTypeHidden:
		return true
	}
	return false
}

func (t MessageType) String() string {
	return string(t)
}

// ParseMessageType accepts any casing of a known type.
func ParseMessageType(v string) (MessageType, error) {
	t := MessageType(strings.ToUpper(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown message type %q", v)
	}
	return t, nil
}

// ErrInvalidConversationID is returned when an operation needs a validated
// conversation identifier and none was supplied.
var ErrInvalidConversationID = errors.New("invalid conversation id")

// ValidateConversationID checks that id is a well-formed UUID and returns
// its canonical form.
func ValidateConversationID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidConversationID)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidConversationID, id)
	}
	return parsed.String(), nil
}

// Message is one persisted entry of a conversation transcript.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Type           MessageType `json:"type"`
	Text           string      `json:"message"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MessageFilter selects messages of a conversation. An empty Types slice
// matches every type.
type MessageFilter struct {
	ConversationID string
	Types          []MessageType
}

// Matches reports whether m satisfies the filter.
func (f MessageFilter) Matches(m Message) bool {
	if m.ConversationID != f.ConversationID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if m.Type == t {
			return true
		}
	}
	return false
}

// MessageStore persists and retrieves conversation messages.
type MessageStore interface {
	// Find returns at most limit of the most recent messages matching filter,
	// ordered by creation time ascending. limit <= 0 means no limit.
	Find(ctx context.Context, filter MessageFilter, limit int) ([]Message, error)

	// Insert stores m. Empty ID and zero CreatedAt are filled in by the store
	// and written back into m.
	Insert(ctx context.Context, m *Message) error
}

// Prepare fills defaults for a message about to be inserted.
func (m *Message) Prepare(now time.Time) error {
	if _, err := ValidateConversationID(m.ConversationID); err != nil {
		return err
	}
	if !m.Type.Valid() {
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now.UTC()
	}
	return nil
}
