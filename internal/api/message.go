package api

import (
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"langgraph-chat/app/internal/models"
	"langgraph-chat/app/internal/service"
	"langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/middleware"
)

// MessageRecord is a message as served on the wire
type MessageRecord struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	MessageType string    `json:"message_type,omitempty"`
	AgentUsed   string    `json:"agent_used,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
}

// ConversationResponse is one element of the conversation list
type ConversationResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
}

// ConversationDetail is a conversation with its full message list
type ConversationDetail struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []MessageRecord `json:"messages"`
}

// SendMessageResponse acknowledges one exchange
type SendMessageResponse struct {
	UserMessage    MessageRecord `json:"user_message"`
	AIMessage      MessageRecord `json:"ai_message"`
	ConversationID string        `json:"conversation_id"`
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func toRecord(m models.Message) MessageRecord {
	return MessageRecord{
		ID:          m.ID,
		Role:        m.Role,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
		Status:      m.Status,
		MessageType: m.MessageType,
		AgentUsed:   m.AgentUsed,
		Confidence:  m.Confidence,
	}
}

// ConversationController serves the conversation endpoints
type ConversationController struct {
	chat *service.ChatService
}

// NewConversationController creates a new conversation controller
func NewConversationController(chat *service.ChatService) *ConversationController {
	return &ConversationController{chat: chat}
}

// RegisterRoutes registers the conversation routes under group
func (h *ConversationController) RegisterRoutes(group gin.IRoutes) {
	group.GET("/conversations", h.ListConversations)
	group.POST("/conversations", h.CreateConversation)
	group.GET("/conversations/:id", h.GetConversation)
	group.POST("/conversations/:id/messages", h.SendMessage)
}

func ownerID(c *gin.Context) string {
	return middleware.GetUserID(c.Request.Context())
}

// ListConversations handles GET /api/conversations
func (h *ConversationController) ListConversations(c *gin.Context) {
	convs, err := h.chat.ListConversations(c.Request.Context(), ownerID(c))
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]ConversationResponse, len(convs))
	for i, conv := range convs {
		out[i] = ConversationResponse{
			ID:           conv.ID,
			Title:        conv.Title,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: conv.MessageCount,
			LastMessage:  conv.LastMessage,
		}
	}
	c.JSON(http.StatusOK, out)
}

// CreateConversation handles POST /api/conversations. The body is optional.
func (h *ConversationController) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		c.Error(errors.NewValidationError("Invalid request format"))
		return
	}

	conv, err := h.chat.CreateConversation(c.Request.Context(), ownerID(c), req.Title)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	})
}

// GetConversation handles GET /api/conversations/:id
func (h *ConversationController) GetConversation(c *gin.Context) {
	conv, msgs, err := h.chat.GetConversation(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	records := make([]MessageRecord, len(msgs))
	for i, m := range msgs {
		records[i] = toRecord(m)
	}
	c.JSON(http.StatusOK, ConversationDetail{
		ID:        conv.ID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
		Messages:  records,
	})
}

// SendMessage handles POST /api/conversations/:id/messages
func (h *ConversationController) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("Message content is required"))
		return
	}

	res, err := h.chat.SendMessage(c.Request.Context(), ownerID(c), c.Param("id"), req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, SendMessageResponse{
		UserMessage:    toRecord(res.UserMessage),
		AIMessage:      toRecord(res.AssistantMessage),
		ConversationID: res.Conversation.ID,
	})
}
