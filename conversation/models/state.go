package models

// ChatState is a point-in-time view of one authenticated session.
// It is produced by the lifecycle controller; mutating it has no effect.
type ChatState struct {
	Conversations         []Conversation `json:"conversations"`
	CurrentConversationID string         `json:"currentConversationId,omitempty"`
	IsTyping              bool           `json:"isTyping"`
	// TypingAgent is a best-effort hint, never the authoritative AgentUsed
	TypingAgent AgentType `json:"typingAgent,omitempty"`
	IsConnected bool      `json:"isConnected"`
	Error       string    `json:"error,omitempty"`
	// Fatal is set once an internal invariant violation was observed
	Fatal bool `json:"fatal,omitempty"`
}

// Current returns the selected conversation, if any
func (s ChatState) Current() (Conversation, bool) {
	if s.CurrentConversationID == "" {
		return Conversation{}, false
	}
	for _, c := range s.Conversations {
		if c.ID == s.CurrentConversationID {
			return c, true
		}
	}
	return Conversation{}, false
}

// EventType names a committed change that observers can react to
type EventType string

const (
	EventConversationCreated  EventType = "conversation_created"
	EventConversationSelected EventType = "conversation_selected"
	EventConversationRenamed  EventType = "conversation_renamed"
	EventMessageAppended      EventType = "message_appended"
	EventMessageUpdated       EventType = "message_updated"
	EventTypingChanged        EventType = "typing_changed"
	EventConnectionChanged    EventType = "connection_changed"
	EventErrorChanged         EventType = "error_changed"
)

// Event describes one committed change. Payload fields are copies.
type Event struct {
	Type           EventType     `json:"type"`
	ConversationID string        `json:"conversationId,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
	Message        *Message      `json:"message,omitempty"`
	IsTyping       bool          `json:"isTyping,omitempty"`
	TypingAgent    AgentType     `json:"typingAgent,omitempty"`
	IsConnected    bool          `json:"isConnected,omitempty"`
	Error          string        `json:"error,omitempty"`
}
