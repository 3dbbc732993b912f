package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"langgraph-chat/app/internal/models"
	"langgraph-chat/app/pkg/errors"
)

// dryRunDB renders postgres statements without a server
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=test dbname=test sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               gormlogger.Discard,
	})
	require.NoError(t, err)
	return db
}

func TestAppendLocksConversationRow(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var conv models.Conversation
		return lockConversation(tx, "c-1").First(&conv)
	})
	assert.Contains(t, sql, `"conversations"`)
	assert.Contains(t, sql, "id = 'c-1'")
	assert.Contains(t, sql, "FOR UPDATE")
}

func TestLastMessagesIsOneQuery(t *testing.T) {
	db := dryRunDB(t)

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var lasts []lastMessage
		return lastMessages(tx, []string{"a", "b"}).Find(&lasts)
	})
	assert.Contains(t, sql, "DISTINCT ON (conversation_id)")
	assert.Contains(t, sql, "conversation_id IN ('a','b')")
	assert.Contains(t, sql, "ORDER BY conversation_id, seq desc")
}

// liveRepository connects to TEST_DATABASE_DSN or skips
func liveRepository(t *testing.T) *GormRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	repo := NewGormRepository(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func TestGormConcurrentAppendsKeepSequence(t *testing.T) {
	repo := liveRepository(t)
	ctx := context.Background()
	owner := uuid.New().String()
	convID := uuid.New().String()
	require.NoError(t, repo.CreateConversation(ctx, &models.Conversation{ID: convID, OwnerID: owner, Title: "race"}))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.AppendMessages(ctx, convID,
				&models.Message{ID: uuid.New().String(), Role: models.RoleUser, Content: fmt.Sprintf("q%d", i)},
				&models.Message{ID: uuid.New().String(), Role: models.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
			)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	msgs, err := repo.ListMessages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 2*writers)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
	// each writer's pair stays adjacent
	for i := 0; i < len(msgs); i += 2 {
		assert.Equal(t, "q"+msgs[i+1].Content[1:], msgs[i].Content)
	}

	stats, err := repo.ListConversations(ctx, owner)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2*writers, stats[0].MessageCount)
	assert.Equal(t, msgs[len(msgs)-1].Content, stats[0].LastMessage)

	err = repo.AppendMessages(ctx, uuid.New().String(), &models.Message{ID: uuid.New().String(), Role: models.RoleUser, Content: "x"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
