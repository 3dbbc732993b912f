package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"langgraph-chat/app/conversation/models"
	apperrors "langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/middleware"
	"langgraph-chat/app/shared/observability"
)

// Gateway is the only network boundary of the chat client
type Gateway interface {
	HealthCheck(ctx context.Context) (HealthResponse, error)
	ListConversations(ctx context.Context) ([]models.ConversationSummary, error)
	CreateConversation(ctx context.Context, title string) (models.ConversationSummary, error)
	SendMessage(ctx context.Context, conversationID, content string) (SendResult, error)
}

// TokenFunc supplies the bearer token for a request. An empty token sends no Authorization header.
type TokenFunc func(ctx context.Context) (string, error)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 4 << 10
)

// Endpoint labels used for spans and metrics
const (
	EndpointHealth             = "health"
	EndpointListConversations  = "list_conversations"
	EndpointCreateConversation = "create_conversation"
	EndpointSendMessage        = "send_message"
)

// Option configures an HTTPGateway
type Option func(*HTTPGateway)

// WithHTTPClient replaces the underlying client; its own Timeout is left as is
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGateway) { g.client = c }
}

// WithTimeout bounds every call
func WithTimeout(d time.Duration) Option {
	return func(g *HTTPGateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithToken sets the bearer token source
func WithToken(fn TokenFunc) Option {
	return func(g *HTTPGateway) { g.token = fn }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(g *HTTPGateway) { g.log = l }
}

// WithMetrics records call latency
func WithMetrics(m *observability.Metrics) Option {
	return func(g *HTTPGateway) { g.metrics = m }
}

// HTTPGateway talks JSON over HTTP to the chat backend
type HTTPGateway struct {
	client  *http.Client
	baseURL string
	timeout time.Duration
	token   TokenFunc
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewHTTPGateway creates a gateway for the backend at baseURL
func NewHTTPGateway(baseURL string, opts ...Option) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid backend url %q", baseURL))
	}
	g := &HTTPGateway{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		log:     logger.GetGlobal(),
		tracer:  observability.Tracer("langgraph-chat/app/ai"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.WithComponent("gateway")
	return g, nil
}

// HealthCheck calls GET /api/health
func (g *HTTPGateway) HealthCheck(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	if err := g.do(ctx, EndpointHealth, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return HealthResponse{}, err
	}
	return resp, nil
}

// ListConversations calls GET /api/conversations
func (g *HTTPGateway) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var records []ConversationRecord
	if err := g.do(ctx, EndpointListConversations, http.MethodGet, "/api/conversations", nil, &records); err != nil {
		return nil, err
	}
	out := make([]models.ConversationSummary, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, apperrors.NewTransportError("malformed conversation list", fmt.Errorf("conversation without id"))
		}
		out = append(out, r.Summary())
	}
	return out, nil
}

// CreateConversation calls POST /api/conversations
func (g *HTTPGateway) CreateConversation(ctx context.Context, title string) (models.ConversationSummary, error) {
	if strings.TrimSpace(title) == "" {
		title = models.DefaultTitle
	}
	var record ConversationRecord
	if err := g.do(ctx, EndpointCreateConversation, http.MethodPost, "/api/conversations", CreateConversationRequest{Title: title}, &record); err != nil {
		return models.ConversationSummary{}, err
	}
	if record.ID == "" {
		return models.ConversationSummary{}, apperrors.NewTransportError("malformed conversation record", fmt.Errorf("conversation without id"))
	}
	return record.Summary(), nil
}

// SendMessage calls POST /api/conversations/{id}/messages.
// The conversation must already exist on the backend.
func (g *HTTPGateway) SendMessage(ctx context.Context, conversationID, content string) (SendResult, error) {
	if conversationID == "" {
		return SendResult{}, apperrors.NewValidationError("conversation id is required")
	}
	if strings.TrimSpace(content) == "" {
		return SendResult{}, apperrors.NewValidationError("message content is empty")
	}
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	var resp SendMessageResponse
	if err := g.do(ctx, EndpointSendMessage, http.MethodPost, path, SendMessageRequest{Content: content}, &resp); err != nil {
		return SendResult{}, err
	}
	result, err := resp.Result(conversationID)
	if err != nil {
		return SendResult{}, apperrors.NewTransportError("malformed send acknowledgment", err)
	}
	return result, nil
}

// do performs one bounded call. Every failure comes back as a TransportError.
func (g *HTTPGateway) do(ctx context.Context, endpoint, method, path string, body, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ctx, span := g.tracer.Start(ctx, "gateway."+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
	started := time.Now()
	defer func() {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeFailure
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		g.metrics.ObserveGateway(endpoint, outcome, started)
		span.End()
	}()

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	log := g.log.WithRequestID(requestID)

	var reader io.Reader
	if body != nil {
		data, mErr := json.Marshal(body)
		if mErr != nil {
			return apperrors.NewTransportError("failed to encode request", mErr)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return apperrors.NewTransportError("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if g.token != nil {
		token, tErr := g.token(ctx)
		if tErr != nil {
			return apperrors.NewTransportError("failed to obtain session token", tErr)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log.Debug("Backend request", "method", method, "path", path)
	resp, err := g.client.Do(req)
	if err != nil {
		log.Warn("Backend request failed", "method", method, "path", path, "error", err)
		return apperrors.NewTransportError(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		log.Warn("Backend returned error status", "method", method, "path", path, "status", resp.StatusCode)
		return apperrors.NewHTTPStatusError(method, path, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewTransportError(fmt.Sprintf("failed to decode %s response", endpoint), err)
	}
	log.Debug("Backend response", "method", method, "path", path, "status", resp.StatusCode, "latency", time.Since(started))
	return nil
}
