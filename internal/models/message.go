package models

import (
	"time"
)

// Message represents a stored chat turn
type Message struct {
	ID             string    `json:"id" gorm:"primaryKey;size:36"`
	ConversationID string    `json:"conversation_id" gorm:"index;size:36"`
	Seq            int64     `json:"-" gorm:"index"`
	Role           string    `json:"role" gorm:"size:16"`
	Content        string    `json:"content" gorm:"type:text"`
	Status         string    `json:"status" gorm:"size:16"`
	MessageType    string    `json:"message_type,omitempty" gorm:"size:16"`
	AgentUsed      string    `json:"agent_used,omitempty" gorm:"size:16"`
	Confidence     *float64  `json:"confidence,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	CreatedAt      time.Time `json:"-"`
}

// Message roles and statuses as they appear on the wire
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	StatusSent     = "sent"
	StatusReceived = "received"
)
