package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"langgraph-chat/app/internal/models"
	"langgraph-chat/app/pkg/errors"
)

type memoryConversation struct {
	conv     models.Conversation
	messages []models.Message
}

// MemoryRepository keeps everything in process memory. Used by default and in tests.
type MemoryRepository struct {
	mu            sync.RWMutex
	conversations map[string]*memoryConversation
	now           func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		conversations: make(map[string]*memoryConversation),
		now:           time.Now,
	}
}

func (r *MemoryRepository) CreateConversation(_ context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conv.ID]; exists {
		return errors.NewConflictError("Conversation " + conv.ID + " already exists")
	}
	now := r.now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = conv.CreatedAt
	}
	r.conversations[conv.ID] = &memoryConversation{conv: *conv}
	return nil
}

func (r *MemoryRepository) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mc, ok := r.conversations[id]
	if !ok {
		return nil, conversationNotFound(id)
	}
	conv := mc.conv
	return &conv, nil
}

func (r *MemoryRepository) ListConversations(_ context.Context, ownerID string) ([]models.ConversationStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]models.ConversationStats, 0, len(r.conversations))
	for _, mc := range r.conversations {
		if mc.conv.OwnerID != ownerID {
			continue
		}
		stats := models.ConversationStats{
			Conversation: mc.conv,
			MessageCount: len(mc.messages),
		}
		if n := len(mc.messages); n > 0 {
			stats.LastMessage = preview(mc.messages[n-1].Content)
		}
		result = append(result, stats)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) UpdateTitle(_ context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mc, ok := r.conversations[id]
	if !ok {
		return conversationNotFound(id)
	}
	mc.conv.Title = title
	mc.conv.UpdatedAt = r.now().UTC()
	return nil
}

func (r *MemoryRepository) AppendMessages(_ context.Context, conversationID string, msgs ...*models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	mc, ok := r.conversations[conversationID]
	if !ok {
		return conversationNotFound(conversationID)
	}
	now := r.now().UTC()
	for _, msg := range msgs {
		msg.ConversationID = conversationID
		msg.Seq = int64(len(mc.messages) + 1)
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		mc.messages = append(mc.messages, *msg)
	}
	mc.conv.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mc, ok := r.conversations[conversationID]
	if !ok {
		return nil, conversationNotFound(conversationID)
	}
	out := make([]models.Message, len(mc.messages))
	copy(out, mc.messages)
	return out, nil
}

func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}
