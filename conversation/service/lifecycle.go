package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"langgraph-chat/app/ai"
	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/conversation/repository"
	apperrors "langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/shared/observability"
)

// ErrSessionClosed is returned by every operation after Close
var ErrSessionClosed = apperrors.NewError(http.StatusGone, "SESSION_CLOSED", "session is closed")

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics records submission outcomes
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock overrides the time source used for new messages
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithTypingHint replaces LastAgentHint
func WithTypingHint(h TypingHint) Option {
	return func(c *Controller) { c.hint = h }
}

// Controller drives every message from submission to a terminal status.
// It owns the typing, connection and error signals of one session.
type Controller struct {
	store   repository.ConversationStore
	gateway ai.Gateway
	log     *logger.Logger
	metrics *observability.Metrics
	now     func() time.Time
	hint    TypingHint

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	inFlight  map[string]bool
	typing    map[string]models.AgentType
	connected bool
	lastErr   string
	fatal     bool
	closed    bool

	notifyMu  sync.Mutex
	subMu     sync.Mutex
	subs      map[int]func(models.Event)
	nextSubID int
}

// NewController creates a controller whose network work is bound to ctx
func NewController(ctx context.Context, store repository.ConversationStore, gateway ai.Gateway, opts ...Option) *Controller {
	c := &Controller{
		store:    store,
		gateway:  gateway,
		log:      logger.GetGlobal(),
		now:      time.Now,
		hint:     LastAgentHint,
		inFlight: make(map[string]bool),
		typing:   make(map[string]models.AgentType),
		subs:     make(map[int]func(models.Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("lifecycle")
	c.ctx, c.cancel = context.WithCancel(ctx)
	return c
}

// Submit validates text, appends it optimistically as a sending user message and
// hands the network call to a background goroutine. It never waits for the backend.
func (c *Controller) Submit(conversationID, text string) (*Ticket, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		c.metrics.RecordSubmission(observability.OutcomeRejected)
		return nil, apperrors.NewValidationError("message content is empty")
	}

	conv, err := c.store.Conversation(conversationID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if c.inFlight[conversationID] {
		c.mu.Unlock()
		c.metrics.RecordSubmission(observability.OutcomeRejected)
		return nil, apperrors.NewConflictError(fmt.Sprintf("a message is already being sent in conversation %s", conversationID))
	}
	c.inFlight[conversationID] = true
	c.wg.Add(1)
	c.mu.Unlock()

	msg, err := c.store.AppendMessage(conversationID, models.Message{
		ID:        uuid.New().String(),
		Role:      models.RoleUser,
		Content:   content,
		Timestamp: c.now(),
		Status:    models.StatusSending,
	})
	if err != nil {
		c.mu.Lock()
		delete(c.inFlight, conversationID)
		c.mu.Unlock()
		c.wg.Done()
		return nil, err
	}

	ticket := newTicket(conversationID, msg.ID)
	agent := c.hint(conv)

	c.mu.Lock()
	c.typing[conversationID] = agent
	c.mu.Unlock()
	c.metrics.IncInFlight()
	c.publish(models.Event{Type: models.EventTypingChanged, ConversationID: conversationID, IsTyping: true, TypingAgent: agent})

	c.log.WithConversationID(conversationID).Debug("Message submitted", "messageId", msg.ID)
	go c.deliver(ticket, msg)
	return ticket, nil
}

func (c *Controller) deliver(ticket *Ticket, msg models.Message) {
	defer c.wg.Done()

	log := c.log.WithConversationID(msg.ConversationID)
	res, err := c.gateway.SendMessage(c.ctx, msg.ConversationID, msg.Content)
	if err != nil {
		c.fail(ticket, msg, err)
		return
	}

	// replies carry receipt time, not the backend clock
	reply := res.AssistantMessage
	reply.ConversationID = msg.ConversationID
	reply.Timestamp = c.now()
	if err := reply.Validate(); err != nil {
		c.fail(ticket, msg, apperrors.NewTransportError("malformed reply", err))
		return
	}

	user, err := c.store.ReconcileMessage(msg.ConversationID, msg.ID, models.StatusSent, res.UserMessage.RemoteID)
	if err != nil {
		c.abort(ticket, msg, err)
		return
	}
	assistant, err := c.store.AppendMessage(msg.ConversationID, reply)
	if err != nil {
		c.abort(ticket, user, err)
		return
	}
	if conv, err := c.store.Conversation(msg.ConversationID); err == nil && conv.HasPlaceholderTitle() {
		if err := c.store.SetTitle(msg.ConversationID, models.DeriveTitle(msg.Content)); err != nil {
			log.LogError(err, "Failed to derive conversation title")
		}
	}

	c.settle(msg.ConversationID, "")
	c.metrics.RecordSubmission(observability.OutcomeSuccess)
	log.Debug("Message delivered", "messageId", msg.ID, "agent", assistant.AgentUsed)
	ticket.settle(Outcome{UserMessage: user, AssistantMessage: &assistant})
}

// fail marks the optimistic message failed; no assistant message is fabricated
func (c *Controller) fail(ticket *Ticket, msg models.Message, cause error) {
	log := c.log.WithConversationID(msg.ConversationID)
	outcome := observability.OutcomeFailure
	if stderrors.Is(cause, context.Canceled) {
		outcome = observability.OutcomeCancelled
	}

	failed, err := c.store.UpdateMessageStatus(msg.ConversationID, msg.ID, models.StatusError)
	if err != nil {
		c.abort(ticket, msg, err)
		return
	}
	c.settle(msg.ConversationID, apperrors.GetErrorMessage(cause))
	c.metrics.RecordSubmission(outcome)
	log.Warn("Message failed", "messageId", msg.ID, "error", cause)
	ticket.settle(Outcome{UserMessage: failed, Err: cause})
}

// abort handles a store rejection on the asynchronous path. NotFound means the
// session state is corrupt and is recorded as fatal. When the reply is rejected
// after reconciliation the user message stays sent without a reply.
func (c *Controller) abort(ticket *Ticket, msg models.Message, cause error) {
	if apperrors.Is(cause, apperrors.ErrNotFound) {
		c.mu.Lock()
		c.fatal = true
		c.mu.Unlock()
	}
	c.settle(msg.ConversationID, apperrors.GetErrorMessage(cause))
	c.metrics.RecordSubmission(observability.OutcomeFailure)
	c.log.WithConversationID(msg.ConversationID).LogError(cause, "Lifecycle invariant violated", "messageId", msg.ID)
	ticket.settle(Outcome{UserMessage: msg, Err: cause})
}

// settle clears typing and the in-flight flag, then records errMsg ("" clears the session error)
func (c *Controller) settle(conversationID, errMsg string) {
	c.metrics.DecInFlight()
	c.mu.Lock()
	delete(c.inFlight, conversationID)
	delete(c.typing, conversationID)
	changed := c.lastErr != errMsg
	c.lastErr = errMsg
	c.mu.Unlock()

	events := []models.Event{{Type: models.EventTypingChanged, ConversationID: conversationID}}
	if changed {
		events = append(events, models.Event{Type: models.EventErrorChanged, ConversationID: conversationID, Error: errMsg})
	}
	c.publish(events...)
}

// Send submits to the current conversation, creating one through the backend first when none is selected
func (c *Controller) Send(ctx context.Context, text string) (*Ticket, error) {
	if strings.TrimSpace(text) == "" {
		c.metrics.RecordSubmission(observability.OutcomeRejected)
		return nil, apperrors.NewValidationError("message content is empty")
	}
	convID := c.store.CurrentConversationID()
	if convID == "" {
		conv, err := c.CreateConversation(ctx, "")
		if err != nil {
			return nil, err
		}
		convID = conv.ID
	}
	return c.Submit(convID, text)
}

// Retry resubmits the content of a failed message as a new message. The failed one is kept.
func (c *Controller) Retry(conversationID, messageID string) (*Ticket, error) {
	msg, err := c.store.Message(conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Role != models.RoleUser || msg.Status != models.StatusError {
		return nil, apperrors.NewConflictError(fmt.Sprintf("message %s has not failed", messageID))
	}
	return c.Submit(conversationID, msg.Content)
}

// CreateConversation creates a conversation on the backend and selects it locally
func (c *Controller) CreateConversation(ctx context.Context, title string) (models.Conversation, error) {
	if err := c.checkOpen(); err != nil {
		return models.Conversation{}, err
	}
	summary, err := c.gateway.CreateConversation(ctx, title)
	if err != nil {
		c.setError(apperrors.GetErrorMessage(err))
		return models.Conversation{}, err
	}
	conv, err := c.store.CreateConversation(summary.Title,
		repository.WithID(summary.ID),
		repository.WithTimestamps(summary.CreatedAt, summary.UpdatedAt),
	)
	if err != nil {
		c.setError(apperrors.GetErrorMessage(err))
		return models.Conversation{}, err
	}
	c.setError("")
	c.publishTyping(conv.ID)
	return conv, nil
}

// SelectConversation switches the displayed conversation. In-flight work is not cancelled.
func (c *Controller) SelectConversation(id string) error {
	if err := c.store.SelectConversation(id); err != nil {
		return err
	}
	c.publishTyping(id)
	return nil
}

// LoadConversations adopts backend conversations the store does not know yet, without selecting them
func (c *Controller) LoadConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	summaries, err := c.gateway.ListConversations(ctx)
	if err != nil {
		c.setError(apperrors.GetErrorMessage(err))
		return nil, err
	}
	adopted := 0
	for _, s := range summaries {
		if _, err := c.store.Conversation(s.ID); err == nil {
			continue
		}
		_, err := c.store.CreateConversation(s.Title,
			repository.WithID(s.ID),
			repository.WithTimestamps(s.CreatedAt, s.UpdatedAt),
			repository.WithoutSelect(),
		)
		if err != nil && !apperrors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
		adopted++
	}
	c.setError("")
	c.log.Debug("Conversations loaded", "total", len(summaries), "adopted", adopted)
	return summaries, nil
}

// CheckConnection probes the backend and updates the connection flag
func (c *Controller) CheckConnection(ctx context.Context) bool {
	health, err := c.gateway.HealthCheck(ctx)
	connected := err == nil && health.Connected()
	if err != nil {
		c.log.Debug("Backend health check failed", "error", err)
	}

	c.mu.Lock()
	changed := c.connected != connected
	c.connected = connected
	c.mu.Unlock()

	c.metrics.SetConnected(connected)
	if changed {
		c.publish(models.Event{Type: models.EventConnectionChanged, IsConnected: connected})
	}
	return connected
}

// State returns a snapshot of the session
func (c *Controller) State() models.ChatState {
	current := c.store.CurrentConversationID()
	convs := c.store.Conversations()

	c.mu.Lock()
	defer c.mu.Unlock()
	agent, typing := c.typing[current]
	return models.ChatState{
		Conversations:         convs,
		CurrentConversationID: current,
		IsTyping:              typing,
		TypingAgent:           agent,
		IsConnected:           c.connected,
		Error:                 c.lastErr,
		Fatal:                 c.fatal,
	}
}

// Store exposes the backing conversation store for read access
func (c *Controller) Store() repository.ConversationStore {
	return c.store
}

// Subscribe registers fn for store changes and controller signals
func (c *Controller) Subscribe(fn func(models.Event)) func() {
	unsubscribeStore := c.store.Subscribe(fn)

	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		unsubscribeStore()
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Close cancels in-flight network work and waits for it to settle
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	return nil
}

func (c *Controller) setError(msg string) {
	c.mu.Lock()
	changed := c.lastErr != msg
	c.lastErr = msg
	c.mu.Unlock()
	if changed {
		c.publish(models.Event{Type: models.EventErrorChanged, Error: msg})
	}
}

func (c *Controller) publishTyping(conversationID string) {
	c.mu.Lock()
	agent, typing := c.typing[conversationID]
	c.mu.Unlock()
	c.publish(models.Event{Type: models.EventTypingChanged, ConversationID: conversationID, IsTyping: typing, TypingAgent: agent})
}

func (c *Controller) publish(events ...models.Event) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.subMu.Lock()
	subs := make([]func(models.Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
