package models

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Status is the lifecycle state of a message
type Status string

const (
	// StatusSending is the initial state of a user message awaiting the backend
	StatusSending Status = "sending"
	// StatusSent is terminal success for user messages
	StatusSent Status = "sent"
	// StatusReceived is the only state assistant messages are ever created in
	StatusReceived Status = "received"
	// StatusError is terminal failure; nothing transitions out of it
	StatusError Status = "error"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusSending, StatusSent, StatusReceived, StatusError:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusReceived || s == StatusError
}

// CanTransition reports whether a message in status s may move to next.
// Staying in the same status is always allowed so updates stay idempotent.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	return s == StatusSending && (next == StatusSent || next == StatusError)
}

// MessageType is the backend classification of an assistant reply
type MessageType string

const (
	MessageTypeEmotional MessageType = "emotional"
	MessageTypeLogical   MessageType = "logical"
)

// AgentType is the responder that produced an assistant reply
type AgentType string

const (
	AgentTherapist AgentType = "therapist"
	AgentLogical   AgentType = "logical"
)

// Valid reports whether a is a known agent
func (a AgentType) Valid() bool {
	return a == AgentTherapist || a == AgentLogical
}

// AgentFor returns the agent that answers messages of type t
func AgentFor(t MessageType) (AgentType, bool) {
	switch t {
	case MessageTypeEmotional:
		return AgentTherapist, true
	case MessageTypeLogical:
		return AgentLogical, true
	}
	return "", false
}

// TypeFor returns the message type handled by agent a
func TypeFor(a AgentType) (MessageType, bool) {
	switch a {
	case AgentTherapist:
		return MessageTypeEmotional, true
	case AgentLogical:
		return MessageTypeLogical, true
	}
	return "", false
}

// Message is one turn of a conversation
type Message struct {
	ID             string      `json:"id"`
	RemoteID       string      `json:"remoteId,omitempty"`
	ConversationID string      `json:"conversationId"`
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	Timestamp      time.Time   `json:"timestamp"`
	ServerTime     time.Time   `json:"serverTime,omitempty"`
	Status         Status      `json:"status"`
	MessageType    MessageType `json:"messageType,omitempty"`
	AgentUsed      AgentType   `json:"agentUsed,omitempty"`
	Confidence     *float64    `json:"confidence,omitempty"`
}

// Classified reports whether the backend classification is known
func (m Message) Classified() bool {
	return m.MessageType != "" && m.AgentUsed != ""
}

// Validate checks the invariants a message must satisfy before it is committed
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message id is empty")
	}
	if m.ConversationID == "" {
		return fmt.Errorf("message %s has no conversation id", m.ID)
	}
	if !m.Role.Valid() {
		return fmt.Errorf("message %s has unknown role %q", m.ID, m.Role)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("message %s has empty content", m.ID)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("message %s has unknown status %q", m.ID, m.Status)
	}
	if m.Role != RoleAssistant {
		if m.MessageType != "" || m.AgentUsed != "" || m.Confidence != nil {
			return fmt.Errorf("message %s: classification is only carried by assistant messages", m.ID)
		}
		return nil
	}
	if m.Status != StatusReceived {
		return fmt.Errorf("assistant message %s must be created as %q, got %q", m.ID, StatusReceived, m.Status)
	}
	return CheckClassification(m.MessageType, m.AgentUsed)
}

// CheckClassification enforces emotional <=> therapist and logical <=> logical.
// Both fields empty means the classification is not yet known, which is allowed.
func CheckClassification(t MessageType, a AgentType) error {
	if t == "" && a == "" {
		return nil
	}
	want, ok := AgentFor(t)
	if !ok {
		return fmt.Errorf("unknown message type %q", t)
	}
	if a != want {
		return fmt.Errorf("message type %q requires agent %q, got %q", t, want, a)
	}
	return nil
}
