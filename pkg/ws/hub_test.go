package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/pkg/logger"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	return startHubWith(t, func() models.ChatState {
		return models.ChatState{CurrentConversationID: "c-1", IsConnected: true}
	})
}

func startHubWith(t *testing.T, snapshot SnapshotFunc) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(snapshot, nil, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()

	r := gin.New()
	hub.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/projection"
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f Frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestProjectionSnapshotAndEvents(t *testing.T) {
	hub, url := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the snapshot is sent on registration, so events published afterwards reach the client
	snap := readFrame(t, conn)
	assert.Equal(t, FrameSnapshot, snap.Type)
	require.NotNil(t, snap.State)
	assert.Equal(t, "c-1", snap.State.CurrentConversationID)
	assert.Equal(t, uint64(0), snap.Seq)

	hub.Publish(models.Event{Type: models.EventTypingChanged, ConversationID: "c-1", IsTyping: true, TypingAgent: models.AgentLogical})
	ev := readFrame(t, conn)
	assert.Equal(t, FrameEvent, ev.Type)
	require.NotNil(t, ev.Event)
	assert.Equal(t, models.EventTypingChanged, ev.Event.Type)
	assert.True(t, ev.Event.IsTyping)
	assert.Equal(t, uint64(1), ev.Seq)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "resync"}))
	assert.Equal(t, FrameSnapshot, readFrame(t, conn).Type)
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://allowed.test"})

	req := httptest.NewRequest("GET", "/ws/projection", nil)
	req.Header.Set("Origin", "http://allowed.test")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}

func TestSnapshotCarriesLastIncludedSequence(t *testing.T) {
	var mu sync.Mutex
	titles := []string{}
	snapshot := func() models.ChatState {
		mu.Lock()
		defer mu.Unlock()
		convs := make([]models.Conversation, len(titles))
		for i, title := range titles {
			convs[i] = models.Conversation{ID: title, Title: title}
		}
		return models.ChatState{Conversations: convs}
	}
	hub, url := startHubWith(t, snapshot)

	commit := func(title string) {
		mu.Lock()
		titles = append(titles, title)
		mu.Unlock()
		hub.Publish(models.Event{Type: models.EventConversationCreated, ConversationID: title})
	}
	commit("a")
	commit("b")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snap := readFrame(t, conn)
	require.Equal(t, FrameSnapshot, snap.Type)
	assert.Equal(t, uint64(2), snap.Seq)
	assert.Len(t, snap.State.Conversations, 2)

	commit("c")
	ev := readFrame(t, conn)
	assert.Equal(t, FrameEvent, ev.Type)
	assert.Equal(t, uint64(3), ev.Seq)
	assert.Equal(t, "c", ev.Event.ConversationID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "resync"}))
	resync := readFrame(t, conn)
	assert.Equal(t, FrameSnapshot, resync.Type)
	assert.Equal(t, uint64(3), resync.Seq)
	assert.Len(t, resync.State.Conversations, 3)
}
