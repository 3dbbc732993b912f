package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"langgraph-chat/app/internal/models"
)

// GormRepository stores conversations in postgres
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository on an open database
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the tables
func (r *GormRepository) Migrate() error {
	if err := r.db.AutoMigrate(&models.Conversation{}, &models.Message{}); err != nil {
		return fmt.Errorf("failed to migrate chat tables: %w", err)
	}
	if err := r.db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_conv_seq_unique ON messages(conversation_id, seq)").Error; err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}
	return nil
}

func (r *GormRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

func (r *GormRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, conversationNotFound(id)
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

type messageCount struct {
	ConversationID string
	Count          int
}

type lastMessage struct {
	ConversationID string
	Content        string
}

// lockConversation selects the conversation row FOR UPDATE so appends to one
// conversation serialize on it
func lockConversation(tx *gorm.DB, id string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id)
}

// lastMessages selects the newest message of each conversation in one query
func lastMessages(db *gorm.DB, ids []string) *gorm.DB {
	return db.Model(&models.Message{}).
		Select("DISTINCT ON (conversation_id) conversation_id, content").
		Where("conversation_id IN ?", ids).
		Order("conversation_id, seq desc")
}

func (r *GormRepository) ListConversations(ctx context.Context, ownerID string) ([]models.ConversationStats, error) {
	db := r.db.WithContext(ctx)

	var convs []models.Conversation
	if err := db.Where("owner_id = ?", ownerID).Order("updated_at desc").Find(&convs).Error; err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []models.ConversationStats{}, nil
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	var counts []messageCount
	err := db.Model(&models.Message{}).
		Select("conversation_id, count(*) as count").
		Where("conversation_id IN ?", ids).
		Group("conversation_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(counts))
	for _, c := range counts {
		byID[c.ConversationID] = c.Count
	}

	var lasts []lastMessage
	if err := lastMessages(db, ids).Scan(&lasts).Error; err != nil {
		return nil, err
	}
	lastByID := make(map[string]string, len(lasts))
	for _, l := range lasts {
		lastByID[l.ConversationID] = preview(l.Content)
	}

	result := make([]models.ConversationStats, 0, len(convs))
	for _, c := range convs {
		result = append(result, models.ConversationStats{
			Conversation: c,
			MessageCount: byID[c.ID],
			LastMessage:  lastByID[c.ID],
		})
	}
	return result, nil
}

func (r *GormRepository) UpdateTitle(ctx context.Context, id, title string) error {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return conversationNotFound(id)
	}
	return nil
}

func (r *GormRepository) AppendMessages(ctx context.Context, conversationID string, msgs ...*models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := lockConversation(tx, conversationID).First(&conv).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return conversationNotFound(conversationID)
			}
			return err
		}

		var maxSeq int64
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ?", conversationID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return err
		}

		for i, msg := range msgs {
			msg.ConversationID = conversationID
			msg.Seq = maxSeq + int64(i) + 1
			if err := tx.Create(msg).Error; err != nil {
				return err
			}
		}
		return tx.Model(&conv).Update("updated_at", time.Now().UTC()).Error
	})
}

func (r *GormRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	if _, err := r.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq asc").
		Find(&msgs).Error
	return msgs, err
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
