package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"langgraph-chat/app/ai"
	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/internal/api"
	"langgraph-chat/app/pkg/config"
	"langgraph-chat/app/pkg/di"
	apperrors "langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/secrets"
)

const testSecret = "router-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContainer(t *testing.T, mutate func(*config.Config)) *di.Container {
	t.Helper()

	cfg := config.Load()
	cfg.Server.Env = "test"
	cfg.Server.Storage = "memory"
	cfg.Redis.Enabled = false
	cfg.Responder.Mode = "mock"
	cfg.Responder.Classifier = "keyword"
	cfg.Responder.MinLatency = 0
	cfg.Responder.MaxLatency = 0
	cfg.Security.RateLimit = 1000
	cfg.Security.RateLimitBurst = 1000
	cfg.Security.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.JWT.Required = false
	if mutate != nil {
		mutate(cfg)
	}

	container, err := di.New(context.Background(), cfg, logger.Nop(), di.Options{
		Secrets: secrets.Static{secrets.KeyJWTSecret: testSecret},
		Seed:    1,
	})
	require.NoError(t, err)
	t.Cleanup(container.Close)
	return container
}

func newTestRouter(t *testing.T, mutate func(*config.Config), validate bool) *Router {
	t.Helper()

	container := newTestContainer(t, mutate)
	container.Health.RunChecks(context.Background())

	r := New(container)
	if validate {
		require.NoError(t, r.AddOpenAPIValidation(""))
	}
	r.SetupRoutes()
	return r
}

func serve(r *Router, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestGatewayAgainstSimulator(t *testing.T) {
	r := newTestRouter(t, nil, true)
	srv := httptest.NewServer(r.Engine)
	defer srv.Close()

	gw, err := ai.NewHTTPGateway(srv.URL, ai.WithTimeout(5*time.Second))
	require.NoError(t, err)
	ctx := context.Background()

	health, err := gw.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "mock", health.LangGraphStatus)
	assert.True(t, health.Connected())

	conv, err := gw.CreateConversation(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTitle, conv.Title)
	assert.NotEmpty(t, conv.ID)

	res, err := gw.SendMessage(ctx, conv.ID, "I feel stressed and anxious")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, res.ConversationID)
	assert.Equal(t, "I feel stressed and anxious", res.UserMessage.Content)
	assert.Equal(t, models.StatusSent, res.UserMessage.Status)
	assert.Equal(t, models.AgentTherapist, res.AssistantMessage.AgentUsed)
	assert.Equal(t, models.MessageTypeEmotional, res.AssistantMessage.MessageType)
	assert.NotEmpty(t, res.AssistantMessage.Content)
	require.NoError(t, res.AssistantMessage.Validate())

	res, err = gw.SendMessage(ctx, conv.ID, "Explain how to solve this math problem")
	require.NoError(t, err)
	assert.Equal(t, models.AgentLogical, res.AssistantMessage.AgentUsed)

	list, err := gw.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "I feel stressed and anxious", list[0].Title)
	assert.Equal(t, 4, list[0].MessageCount)
	assert.Equal(t, res.AssistantMessage.Content, list[0].LastMessage)
}

func TestGatewaySendToUnknownConversation(t *testing.T) {
	r := newTestRouter(t, nil, false)
	srv := httptest.NewServer(r.Engine)
	defer srv.Close()

	gw, err := ai.NewHTTPGateway(srv.URL)
	require.NoError(t, err)

	_, err = gw.SendMessage(context.Background(), "missing", "hello")
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeTransport, appErr.Code)
	assert.Contains(t, appErr.Message, "status: 404")
}

func TestConversationDetail(t *testing.T) {
	r := newTestRouter(t, nil, false)

	w := serve(r, http.MethodPost, "/api/conversations", `{"title":"Planning"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var conv api.ConversationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))
	assert.Equal(t, "Planning", conv.Title)

	w = serve(r, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", `{"content":"how should I plan my study schedule"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/conversations/"+conv.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail api.ConversationDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "Planning", detail.Title)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "user", detail.Messages[0].Role)
	assert.Equal(t, "assistant", detail.Messages[1].Role)
	assert.Equal(t, "logical", detail.Messages[1].AgentUsed)

	w = serve(r, http.MethodGet, "/api/conversations/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateConversationWithoutBody(t *testing.T) {
	r := newTestRouter(t, nil, false)

	w := serve(r, http.MethodPost, "/api/conversations", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"New Conversation"`)
}

func TestEmptyContentRejected(t *testing.T) {
	r := newTestRouter(t, nil, false)

	w := serve(r, http.MethodPost, "/api/conversations", `{}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var conv api.ConversationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conv))

	w = serve(r, http.MethodPost, "/api/conversations/"+conv.ID+"/messages", `{"content":"   "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, w))
}

func TestOpenAPIValidationRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(t, nil, true)

	w := serve(r, http.MethodPost, "/api/conversations/abc/messages", `{"text":"hi"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.CodeValidation, errorCode(t, w))

	w = serve(r, http.MethodGet, "/api/docs/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi:")
}

func TestJWTRequired(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) { cfg.JWT.Required = true }, false)

	w := serve(r, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/api/conversations", "", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// health stays public
	w = serve(r, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	token, err := r.Container.JWTService.GenerateToken("user-1", "u1@example.com", "Ada")
	require.NoError(t, err)
	auth := map[string]string{"Authorization": "Bearer " + token}

	w = serve(r, http.MethodPost, "/api/conversations", `{"title":"mine"}`, auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/api/auth/me", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"user-1"`)

	other, err := r.Container.JWTService.GenerateToken("user-2", "u2@example.com", "Bob")
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/api/conversations", "", map[string]string{"Authorization": "Bearer " + other})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestAuthMeNeedsToken(t *testing.T) {
	r := newTestRouter(t, nil, false)

	w := serve(r, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// anonymous access to conversations is allowed when auth is optional
	w = serve(r, http.MethodGet, "/api/conversations", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r := newTestRouter(t, nil, false)

	w := serve(r, http.MethodOptions, "/api/conversations", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/api/health", "", map[string]string{"Origin": "http://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthUnhealthyBeforeChecks(t *testing.T) {
	// no probe has run yet, so the critical database component is still down
	r := New(newTestContainer(t, nil))
	r.SetupRoutes()

	w := serve(r, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"unhealthy"`)

	w = serve(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	r := newTestRouter(t, nil, false)

	w := serve(r, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/debug/runtime", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "goroutines")

	serve(r, http.MethodGet, "/api/conversations", "", nil)
	w = serve(r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/conversations")

	w = serve(r, http.MethodGet, "/api/health", "", map[string]string{"X-Request-ID": "req-42"})
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}
