package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	convmodels "langgraph-chat/app/conversation/models"
	"langgraph-chat/app/internal/models"
	"langgraph-chat/app/internal/repository"
	"langgraph-chat/app/internal/responder"
	"langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/shared/observability"
)

// defaultHistoryLimit bounds the context handed to the responder
const defaultHistoryLimit = 20

// SendResult is the outcome of one exchange
type SendResult struct {
	Conversation     *models.Conversation
	UserMessage      models.Message
	AssistantMessage models.Message
}

// ChatService implements the backend side of the chat: conversations,
// classification and reply generation
type ChatService struct {
	repo         repository.ConversationRepository
	classifier   responder.Classifier
	responder    responder.Responder
	log          *logger.Logger
	metrics      *observability.Metrics
	tracer       trace.Tracer
	replyLatency metric.Float64Histogram
	now          func() time.Time
	historyLimit int
}

// NewChatService creates a chat service
func NewChatService(
	repo repository.ConversationRepository,
	classifier responder.Classifier,
	resp responder.Responder,
	log *logger.Logger,
	metrics *observability.Metrics,
) *ChatService {
	log = log.WithComponent("chat_service")
	var replyLatency metric.Float64Histogram = noop.Float64Histogram{}
	h, err := observability.Meter("langgraph-chat/app/internal/service").Float64Histogram(
		"chat.reply.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time spent generating one assistant reply"),
	)
	if err != nil {
		log.LogError(err, "Failed to create reply latency histogram")
	} else {
		replyLatency = h
	}

	return &ChatService{
		repo:         repo,
		classifier:   classifier,
		responder:    resp,
		log:          log,
		metrics:      metrics,
		tracer:       observability.Tracer("langgraph-chat/app/internal/service"),
		replyLatency: replyLatency,
		now:          time.Now,
		historyLimit: defaultHistoryLimit,
	}
}

// CreateConversation starts an empty conversation for ownerID
func (s *ChatService) CreateConversation(ctx context.Context, ownerID, title string) (*models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = convmodels.DefaultTitle
	}
	now := s.now().UTC()
	conv := &models.Conversation{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, err
	}
	s.log.Info("Conversation created", "conversation_id", conv.ID, "user_id", ownerID)
	return conv, nil
}

// ListConversations returns ownerID's conversations, most recent first
func (s *ChatService) ListConversations(ctx context.Context, ownerID string) ([]models.ConversationStats, error) {
	return s.repo.ListConversations(ctx, ownerID)
}

// GetConversation returns a conversation and its messages in order
func (s *ChatService) GetConversation(ctx context.Context, ownerID, id string) (*models.Conversation, []models.Message, error) {
	conv, err := s.visibleConversation(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *ChatService) visibleConversation(ctx context.Context, ownerID, id string) (*models.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.VisibleTo(ownerID) {
		return nil, errors.NewNotFoundError("Conversation " + id + " not found")
	}
	return conv, nil
}

// SendMessage stores the user message together with the generated reply.
// Nothing is stored when classification or generation fails.
func (s *ChatService) SendMessage(ctx context.Context, ownerID, conversationID, content string) (_ *SendResult, err error) {
	ctx, span := s.tracer.Start(ctx, "chat.send_message")
	span.SetAttributes(attribute.String("conversation.id", conversationID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.NewValidationError("Message content cannot be empty")
	}

	conv, err := s.visibleConversation(ctx, ownerID, conversationID)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        content,
		Status:         models.StatusSent,
		Timestamp:      s.now().UTC(),
	}

	decision, err := s.classifier.Classify(ctx, content)
	if err != nil {
		return nil, errors.NewInternalServerError("CLASSIFICATION_FAILED", "Failed to classify message").WithCause(err)
	}
	span.SetAttributes(attribute.String("chat.agent", string(decision.Agent)))

	started := time.Now()
	reply, err := s.responder.Respond(ctx, responder.Request{
		ConversationID: conversationID,
		Agent:          decision.Agent,
		History:        s.turns(history, userMsg),
	})
	s.replyLatency.Record(ctx, time.Since(started).Seconds(),
		metric.WithAttributes(attribute.String("agent", string(decision.Agent))))
	if err != nil {
		return nil, errors.NewInternalServerError("GENERATION_FAILED", "Failed to process message").WithCause(err)
	}

	confidence := decision.Confidence
	aiMsg := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           models.RoleAssistant,
		Content:        reply,
		Status:         models.StatusReceived,
		MessageType:    string(decision.MessageType),
		AgentUsed:      string(decision.Agent),
		Confidence:     &confidence,
		Timestamp:      s.now().UTC(),
	}
	if err := s.repo.AppendMessages(ctx, conversationID, &userMsg, &aiMsg); err != nil {
		return nil, err
	}
	s.metrics.ObserveReply(aiMsg.AgentUsed)

	if len(history) == 0 && (conv.Title == "" || conv.Title == convmodels.DefaultTitle) {
		title := convmodels.DeriveTitle(content)
		if err := s.repo.UpdateTitle(ctx, conversationID, title); err != nil {
			s.log.LogError(err, "Failed to set conversation title", "conversation_id", conversationID)
		} else {
			conv.Title = title
		}
	}

	s.log.Info("Message answered",
		"conversation_id", conversationID,
		"agent", aiMsg.AgentUsed,
		"message_type", aiMsg.MessageType,
	)
	return &SendResult{Conversation: conv, UserMessage: userMsg, AssistantMessage: aiMsg}, nil
}

// turns converts the stored history plus the new message, keeping the most recent ones
func (s *ChatService) turns(history []models.Message, next models.Message) []responder.Turn {
	all := append(history, next)
	if s.historyLimit > 0 && len(all) > s.historyLimit {
		all = all[len(all)-s.historyLimit:]
	}
	out := make([]responder.Turn, len(all))
	for i, m := range all {
		out[i] = responder.Turn{Role: m.Role, Content: m.Content}
	}
	return out
}
