package repository

import (
	"context"
	"fmt"

	"langgraph-chat/app/internal/models"
	"langgraph-chat/app/pkg/errors"
)

// ConversationRepository persists conversations and their messages
type ConversationRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// ListConversations returns the owner's conversations, most recently updated first
	ListConversations(ctx context.Context, ownerID string) ([]models.ConversationStats, error)
	UpdateTitle(ctx context.Context, id, title string) error
	// AppendMessages stores msgs in order after the existing messages and bumps updated_at
	AppendMessages(ctx context.Context, conversationID string, msgs ...*models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	Ping(ctx context.Context) error
}

func conversationNotFound(id string) error {
	return errors.NewNotFoundError(fmt.Sprintf("Conversation %s not found", id))
}

// preview shortens a message for the conversation list
func preview(content string) string {
	const max = 100
	r := []rune(content)
	if len(r) <= max {
		return content
	}
	return string(r[:max]) + "..."
}
