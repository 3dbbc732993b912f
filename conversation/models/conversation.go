package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultTitle is shown until a title is set explicitly or derived from the first message
const DefaultTitle = "New Conversation"

const derivedTitleLength = 50

// Conversation is an ordered thread of messages.
// Messages are kept in commit order, never sorted by timestamp.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LastMessage returns the final message, if any. It is always derived from Messages.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// HasPlaceholderTitle reports whether the title was never set or derived
func (c Conversation) HasPlaceholderTitle() bool {
	return c.Title == "" || c.Title == DefaultTitle
}

// LastAgent returns the agent of the most recent assistant reply
func (c Conversation) LastAgent() (AgentType, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == RoleAssistant && m.AgentUsed != "" {
			return m.AgentUsed, true
		}
	}
	return "", false
}

// Clone returns a deep copy safe to hand to observers
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// Clone returns a copy that shares no pointers with m
func (m Message) Clone() Message {
	out := m
	if m.Confidence != nil {
		v := *m.Confidence
		out.Confidence = &v
	}
	return out
}

// DeriveTitle builds a conversation title from the first user message:
// the first 50 characters, with an ellipsis when truncated.
func DeriveTitle(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return DefaultTitle
	}
	if utf8.RuneCountInString(content) <= derivedTitleLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:derivedTitleLength]) + "..."
}

// ConversationSummary is the list view of a conversation as reported by the backend
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
	LastMessage  string    `json:"lastMessage,omitempty"`
}
