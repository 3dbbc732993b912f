package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"langgraph-chat/app/conversation/models"
	apperrors "langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/shared/observability"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc, opts ...Option) (*HTTPGateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithLogger(logger.Nop())}, opts...)
	g, err := NewHTTPGateway(srv.URL, opts...)
	require.NoError(t, err)
	return g, srv
}

func TestNewHTTPGatewayRejectsBadURL(t *testing.T) {
	_, err := NewHTTPGateway("not a url")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestHealthCheck(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/health", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"status":"degraded","message":"ok","timestamp":"2025-01-01T10:00:00.123456","langgraph_status":"offline"}`))
	})

	health, err := g.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, health.Connected())
	assert.Equal(t, "offline", health.LangGraphStatus)
	assert.Equal(t, 2025, health.Timestamp.Time().Year())

	assert.False(t, HealthResponse{Status: "unhealthy"}.Connected())
}

func TestSendMessageSuccess(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/conversations/conv-1/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		var req SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello", req.Content)

		_, _ = w.Write([]byte(`{
			"conversation_id": "conv-1",
			"user_message": {"id": 7, "role": "user", "content": "Hello", "timestamp": "2025-01-01T10:00:00Z", "status": "sent"},
			"ai_message": {"id": "a-8", "role": "assistant", "content": "Hi!", "timestamp": "2025-01-01T10:00:01Z",
				"status": "received", "message_type": "emotional", "agent_used": "therapist", "confidence": 0.82}
		}`))
	}, WithToken(func(context.Context) (string, error) { return "secret-token", nil }))

	res, err := g.SendMessage(context.Background(), "conv-1", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", res.ConversationID)
	assert.Equal(t, "7", res.UserMessage.RemoteID)
	assert.Equal(t, models.StatusSent, res.UserMessage.Status)

	a := res.AssistantMessage
	assert.Equal(t, models.RoleAssistant, a.Role)
	assert.Equal(t, models.StatusReceived, a.Status)
	assert.Equal(t, models.MessageTypeEmotional, a.MessageType)
	assert.Equal(t, models.AgentTherapist, a.AgentUsed)
	require.NotNil(t, a.Confidence)
	assert.InDelta(t, 0.82, *a.Confidence, 1e-9)
	assert.NoError(t, a.Validate())
}

func TestSendMessageFillsMissingClassification(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"conversation_id": "c",
			"user_message": {"id": "u", "role": "user", "content": "x", "status": "sent"},
			"ai_message": {"id": "a", "role": "assistant", "content": "y", "status": "received", "agent_used": "logical"}
		}`))
	})

	res, err := g.SendMessage(context.Background(), "c", "x")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeLogical, res.AssistantMessage.MessageType)
	assert.False(t, res.AssistantMessage.Timestamp.IsZero())
}

func TestSendMessageRejectsInconsistentClassification(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"conversation_id": "c",
			"user_message": {"id": "u", "role": "user", "content": "x", "status": "sent"},
			"ai_message": {"id": "a", "role": "assistant", "content": "y", "status": "received",
				"message_type": "emotional", "agent_used": "logical"}
		}`))
	})

	_, err := g.SendMessage(context.Background(), "c", "x")
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
}

func TestSendMessageRejectsBlankReply(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"conversation_id": "c",
			"user_message": {"id": "u", "role": "user", "content": "x", "status": "sent"},
			"ai_message": {"id": "a", "role": "assistant", "content": "   \n", "status": "received", "message_type": "logical"}
		}`))
	})

	_, err := g.SendMessage(context.Background(), "c", "x")
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))

	_, err = SendMessageResponse{AIMessage: MessageRecord{ID: "a", Content: "   \n", MessageType: "logical"},
		UserMessage: MessageRecord{ID: "u", Content: "x"}}.Result("c")
	assert.Error(t, err)
}

func TestSendMessageStampsReplyOnReceipt(t *testing.T) {
	skewed := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"conversation_id": "c",
			"user_message":    map[string]any{"id": "u", "role": "user", "content": "x", "status": "sent"},
			"ai_message": map[string]any{"id": "a", "role": "assistant", "content": "y", "status": "received",
				"message_type": "logical", "timestamp": skewed.Format(time.RFC3339)},
		})
	})

	before := time.Now()
	res, err := g.SendMessage(context.Background(), "c", "x")
	require.NoError(t, err)
	a := res.AssistantMessage
	assert.False(t, a.Timestamp.Before(before))
	assert.False(t, a.Timestamp.After(time.Now()))
	assert.True(t, a.ServerTime.Equal(skewed))
}

func TestNon2xxBecomesTransportError(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := g.SendMessage(context.Background(), "c", "Hello")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
	assert.Contains(t, err.Error(), "HTTP error! status: 500, message: boom")

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	details, ok := appErr.Details.(apperrors.TransportDetails)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, details.StatusCode)
}

func TestTimeoutBecomesTransportError(t *testing.T) {
	release := make(chan struct{})
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(50*time.Millisecond))
	defer close(release)

	_, err := g.HealthCheck(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
}

func TestMalformedBodyBecomesTransportError(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})

	_, err := g.ListConversations(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
}

func TestOneWireCallPerSend(t *testing.T) {
	var calls int32
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := g.SendMessage(context.Background(), "c", "Hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListAndCreateConversations(t *testing.T) {
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`[{"id":1,"title":"First","created_at":"2025-01-01T10:00:00","updated_at":null,"message_count":2,"last_message":"bye"}]`))
		case http.MethodPost:
			var req CreateConversationRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, models.DefaultTitle, req.Title)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"c-2","title":"New Conversation","created_at":"2025-01-02T10:00:00Z","updated_at":"2025-01-02T10:00:00Z","message_count":0}`))
		}
	})

	list, err := g.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, list[0].CreatedAt, list[0].UpdatedAt)
	assert.Equal(t, "bye", list[0].LastMessage)

	created, err := g.CreateConversation(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "c-2", created.ID)
}

func TestGatewayMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	g, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, WithMetrics(metrics))

	_, err := g.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.GatewayDuration, "chat_gateway_request_duration_seconds"))
}
