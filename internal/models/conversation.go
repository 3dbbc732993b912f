package models

import (
	"time"
)

// Conversation is a chat thread owned by one user.
// OwnerID is empty for conversations created without authentication.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	OwnerID   string    `json:"-" gorm:"index;size:64"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationStats is a conversation with its list-view aggregates
type ConversationStats struct {
	Conversation
	MessageCount int
	LastMessage  string
}

// VisibleTo reports whether ownerID may read the conversation
func (c *Conversation) VisibleTo(ownerID string) bool {
	return c.OwnerID == "" || c.OwnerID == ownerID
}
