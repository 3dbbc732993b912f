package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"langgraph-chat/app/conversation/models"
)

// HealthResponse is the body of GET /api/health
type HealthResponse struct {
	Status          string   `json:"status"`
	Message         string   `json:"message"`
	Timestamp       WireTime `json:"timestamp"`
	LangGraphStatus string   `json:"langgraph_status"`
}

// Connected reports whether the backend considers itself usable
func (h HealthResponse) Connected() bool {
	return h.Status == "healthy" || h.Status == "degraded"
}

// ConversationRecord is one element of GET /api/conversations
type ConversationRecord struct {
	ID           WireID   `json:"id"`
	Title        string   `json:"title"`
	CreatedAt    WireTime `json:"created_at"`
	UpdatedAt    WireTime `json:"updated_at"`
	MessageCount int      `json:"message_count"`
	LastMessage  string   `json:"last_message,omitempty"`
}

// CreateConversationRequest is the body of POST /api/conversations
type CreateConversationRequest struct {
	Title string `json:"title,omitempty"`
}

// SendMessageRequest is the body of POST /api/conversations/{id}/messages
type SendMessageRequest struct {
	Content string `json:"content"`
}

// MessageRecord is a message as it travels on the wire
type MessageRecord struct {
	ID          WireID   `json:"id"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Timestamp   WireTime `json:"timestamp"`
	Status      string   `json:"status"`
	MessageType string   `json:"message_type,omitempty"`
	AgentUsed   string   `json:"agent_used,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// SendMessageResponse is returned by POST /api/conversations/{id}/messages
type SendMessageResponse struct {
	UserMessage    MessageRecord `json:"user_message"`
	AIMessage      MessageRecord `json:"ai_message"`
	ConversationID WireID        `json:"conversation_id"`
}

// SendResult is a send acknowledgment converted to entities
type SendResult struct {
	ConversationID   string
	UserMessage      models.Message
	AssistantMessage models.Message
}

// Summary converts the record to the client model
func (r ConversationRecord) Summary() models.ConversationSummary {
	updated := r.UpdatedAt.Time()
	if updated.IsZero() {
		updated = r.CreatedAt.Time()
	}
	title := r.Title
	if title == "" {
		title = models.DefaultTitle
	}
	return models.ConversationSummary{
		ID:           string(r.ID),
		Title:        title,
		CreatedAt:    r.CreatedAt.Time(),
		UpdatedAt:    updated,
		MessageCount: r.MessageCount,
		LastMessage:  r.LastMessage,
	}
}

// toUserMessage converts the echoed user message. Classification fields are dropped.
func (r MessageRecord) toUserMessage(conversationID string) (models.Message, error) {
	if r.ID == "" {
		return models.Message{}, fmt.Errorf("user message has no id")
	}
	return models.Message{
		ID:             string(r.ID),
		RemoteID:       string(r.ID),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        r.Content,
		Timestamp:      r.Timestamp.Time(),
		Status:         models.StatusSent,
	}, nil
}

// toAssistantMessage converts the generated reply, enforcing the classification bijection.
// Timestamp is the receipt time; the backend's own timestamp is kept in ServerTime.
// When only one of message_type and agent_used is present the other is derived from it.
func (r MessageRecord) toAssistantMessage(conversationID string) (models.Message, error) {
	if r.ID == "" {
		return models.Message{}, fmt.Errorf("assistant message has no id")
	}
	if r.Role != "" && r.Role != string(models.RoleAssistant) {
		return models.Message{}, fmt.Errorf("ai_message has role %q", r.Role)
	}
	if strings.TrimSpace(r.Content) == "" {
		return models.Message{}, fmt.Errorf("assistant message %s is empty", r.ID)
	}
	msgType := models.MessageType(r.MessageType)
	agent := models.AgentType(r.AgentUsed)
	switch {
	case msgType != "" && agent == "":
		a, ok := models.AgentFor(msgType)
		if !ok {
			return models.Message{}, fmt.Errorf("unknown message_type %q", msgType)
		}
		agent = a
	case msgType == "" && agent != "":
		t, ok := models.TypeFor(agent)
		if !ok {
			return models.Message{}, fmt.Errorf("unknown agent_used %q", agent)
		}
		msgType = t
	}
	if err := models.CheckClassification(msgType, agent); err != nil {
		return models.Message{}, err
	}

	return models.Message{
		ID:             string(r.ID),
		RemoteID:       string(r.ID),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        r.Content,
		Timestamp:      time.Now(),
		ServerTime:     r.Timestamp.Time(),
		Status:         models.StatusReceived,
		MessageType:    msgType,
		AgentUsed:      agent,
		Confidence:     r.Confidence,
	}, nil
}

// Result converts the acknowledgment, rejecting payloads that break message invariants
func (r SendMessageResponse) Result(requestedConversationID string) (SendResult, error) {
	convID := string(r.ConversationID)
	if convID == "" {
		convID = requestedConversationID
	}
	if convID != requestedConversationID {
		return SendResult{}, fmt.Errorf("response for conversation %s, requested %s", convID, requestedConversationID)
	}
	user, err := r.UserMessage.toUserMessage(convID)
	if err != nil {
		return SendResult{}, err
	}
	assistant, err := r.AIMessage.toAssistantMessage(convID)
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{ConversationID: convID, UserMessage: user, AssistantMessage: assistant}, nil
}

// WireID accepts identifiers encoded either as JSON strings or numbers
type WireID string

// UnmarshalJSON implements json.Unmarshaler
func (id *WireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = WireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = WireID(n.String())
	return nil
}

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// WireTime parses RFC 3339 timestamps as well as the zone-less ISO form some backends emit (read as UTC)
type WireTime time.Time

// Time returns the parsed instant
func (t WireTime) Time() time.Time {
	return time.Time(t)
}

// MarshalJSON implements json.Marshaler
func (t WireTime) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(time.Time(t).UTC().Format(time.RFC3339Nano))), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (t *WireTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = WireTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*t = WireTime{}
		return nil
	}
	for _, layout := range wireTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = WireTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
