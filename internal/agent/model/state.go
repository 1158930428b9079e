package model

import (
	"errors"
	"fmt"
)

// EndOfTurn is the sentinel a node leaves in state once generation for the
// turn is complete.
const EndOfTurn = "[END]"

// ConversationState is the record threaded through the workflow graph for
// one conversation turn.
//
// Ownership model:
//   - The state is a value. The engine hands a copy to the active node and
//     takes back the copy the node returns; nodes never share it.
//   - The conversation id is fixed at construction and cannot be changed
//     through any method. The engine still re-checks it after every node.
//   - Messages and Type are replaced together through WithMessages, never
//     edited in place.
type ConversationState struct {
	conversationID string

	Messages []string
	Type     MessageType
	NodeName string
	// Route is the successor label chosen by a routing node.
	Route string
}

// NewConversationState creates the state for one inbound request.
func NewConversationState(conversationID string, t MessageType, messages ...string) ConversationState {
	return ConversationState{
		conversationID: conversationID,
		Messages:       append([]string(nil), messages...),
		Type:           t,
	}
}

// ConversationID returns the immutable conversation identifier.
func (s ConversationState) ConversationID() string {
	return s.conversationID
}

// WithMessages returns a copy with messages and type replaced wholesale.
func (s ConversationState) WithMessages(t MessageType, messages ...string) ConversationState {
	s.Messages = append([]string(nil), messages...)
	s.Type = t
	return s
}

// WithNode records the node that produced the state.
func (s ConversationState) WithNode(name string) ConversationState {
	s.NodeName = name
	return s
}

// WithRoute records a successor-selection label.
func (s ConversationState) WithRoute(label string) ConversationState {
	s.Route = label
	return s
}

// LastMessage returns the final entry of Messages or "".
func (s ConversationState) LastMessage() string {
	if len(s.Messages) == 0 {
		return ""
	}
	return s.Messages[len(s.Messages)-1]
}

// Validate checks the state is internally consistent.
func (s ConversationState) Validate() error {
	var errs []error
	if s.conversationID == "" {
		errs = append(errs, errors.New("conversation id is empty"))
	}
	if !s.Type.Valid() {
		errs = append(errs, fmt.Errorf("message type %q is not one of HUMAN, AI, SYSTEM, HIDDEN", s.Type))
	}
	return errors.Join(errs...)
}
