package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"langgraph-chat/app/conversation/models"
	apperrors "langgraph-chat/app/pkg/errors"
)

// ConversationStore is the exclusive mutator of conversations and their messages.
// Every method is atomic; reads return copies.
type ConversationStore interface {
	CreateConversation(title string, opts ...CreateOption) (models.Conversation, error)
	AppendMessage(conversationID string, msg models.Message) (models.Message, error)
	UpdateMessageStatus(conversationID, messageID string, status models.Status) (models.Message, error)
	ReconcileMessage(conversationID, messageID string, status models.Status, remoteID string) (models.Message, error)
	SelectConversation(id string) error
	SetTitle(id, title string) error
	Conversation(id string) (models.Conversation, error)
	Conversations() []models.Conversation
	CurrentConversationID() string
	Message(conversationID, messageID string) (models.Message, error)
	Subscribe(fn func(models.Event)) (unsubscribe func())
}

type createOptions struct {
	id        string
	createdAt time.Time
	updatedAt time.Time
	noSelect  bool
}

// CreateOption customizes CreateConversation
type CreateOption func(*createOptions)

// WithID adopts an id assigned elsewhere, typically by the backend
func WithID(id string) CreateOption {
	return func(o *createOptions) { o.id = id }
}

// WithTimestamps adopts backend timestamps
func WithTimestamps(createdAt, updatedAt time.Time) CreateOption {
	return func(o *createOptions) {
		o.createdAt = createdAt
		o.updatedAt = updatedAt
	}
}

// WithoutSelect leaves the current conversation unchanged
func WithoutSelect() CreateOption {
	return func(o *createOptions) { o.noSelect = true }
}

// StoreOption configures a MemoryStore
type StoreOption func(*MemoryStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) { s.now = now }
}

type conversationEntry struct {
	conv  models.Conversation
	index map[string]int
}

// MemoryStore keeps conversations in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*conversationEntry
	order   []string
	current string
	now     func() time.Time

	// notifyMu is taken before mu is released so observers see events in commit order
	notifyMu  sync.Mutex
	subMu     sync.Mutex
	subs      map[int]func(models.Event)
	nextSubID int
}

// NewMemoryStore creates an empty store
func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*conversationEntry),
		subs:    make(map[int]func(models.Event)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateConversation adds an empty conversation and selects it unless WithoutSelect is given
func (s *MemoryStore) CreateConversation(title string, opts ...CreateOption) (models.Conversation, error) {
	o := createOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.New().String()
	}
	if title == "" {
		title = models.DefaultTitle
	}
	now := s.now()
	if o.createdAt.IsZero() {
		o.createdAt = now
	}
	if o.updatedAt.IsZero() {
		o.updatedAt = o.createdAt
	}

	s.mu.Lock()
	if _, exists := s.entries[o.id]; exists {
		s.mu.Unlock()
		return models.Conversation{}, apperrors.NewConflictError(fmt.Sprintf("conversation %s already exists", o.id))
	}
	entry := &conversationEntry{
		conv: models.Conversation{
			ID:        o.id,
			Title:     title,
			Messages:  []models.Message{},
			CreatedAt: o.createdAt,
			UpdatedAt: o.updatedAt,
		},
		index: make(map[string]int),
	}
	s.entries[o.id] = entry
	s.order = append(s.order, o.id)

	events := []models.Event{conversationEvent(models.EventConversationCreated, entry.conv)}
	if !o.noSelect {
		s.current = o.id
		events = append(events, models.Event{Type: models.EventConversationSelected, ConversationID: o.id})
	}
	out := entry.conv.Clone()
	s.commit(events...)
	return out, nil
}

// AppendMessage commits msg at the end of the conversation and bumps updatedAt.
// A timestamp earlier than the previous message's is clamped up to it.
func (s *MemoryStore) AppendMessage(conversationID string, msg models.Message) (models.Message, error) {
	msg.ConversationID = conversationID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if err := msg.Validate(); err != nil {
		return models.Message{}, apperrors.NewValidationError(err.Error())
	}

	s.mu.Lock()
	entry, ok := s.entries[conversationID]
	if !ok {
		s.mu.Unlock()
		return models.Message{}, conversationNotFound(conversationID)
	}
	if _, dup := entry.index[msg.ID]; dup {
		s.mu.Unlock()
		return models.Message{}, apperrors.NewConflictError(fmt.Sprintf("message %s already in conversation %s", msg.ID, conversationID))
	}
	if last, ok := entry.conv.LastMessage(); ok && msg.Timestamp.Before(last.Timestamp) {
		msg.Timestamp = last.Timestamp
	}
	msg = msg.Clone()
	entry.index[msg.ID] = len(entry.conv.Messages)
	entry.conv.Messages = append(entry.conv.Messages, msg)
	entry.conv.UpdatedAt = s.now()

	out := msg.Clone()
	s.commit(messageEvent(models.EventMessageAppended, msg))
	return out, nil
}

// UpdateMessageStatus moves a message to status. Repeating the current status is a no-op.
func (s *MemoryStore) UpdateMessageStatus(conversationID, messageID string, status models.Status) (models.Message, error) {
	return s.mutateMessage(conversationID, messageID, status, "")
}

// ReconcileMessage settles an optimistic message and records the backend id it was acknowledged under
func (s *MemoryStore) ReconcileMessage(conversationID, messageID string, status models.Status, remoteID string) (models.Message, error) {
	return s.mutateMessage(conversationID, messageID, status, remoteID)
}

func (s *MemoryStore) mutateMessage(conversationID, messageID string, status models.Status, remoteID string) (models.Message, error) {
	if !status.Valid() {
		return models.Message{}, apperrors.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}

	s.mu.Lock()
	entry, ok := s.entries[conversationID]
	if !ok {
		s.mu.Unlock()
		return models.Message{}, conversationNotFound(conversationID)
	}
	pos, ok := entry.index[messageID]
	if !ok {
		s.mu.Unlock()
		return models.Message{}, apperrors.NewNotFoundError(fmt.Sprintf("message %s not found in conversation %s", messageID, conversationID))
	}
	msg := &entry.conv.Messages[pos]
	if !msg.Status.CanTransition(status) {
		s.mu.Unlock()
		return models.Message{}, apperrors.NewConflictError(fmt.Sprintf("message %s cannot move from %s to %s", messageID, msg.Status, status))
	}

	changed := false
	if msg.Status != status {
		msg.Status = status
		changed = true
	}
	if remoteID != "" && msg.RemoteID != remoteID {
		msg.RemoteID = remoteID
		changed = true
	}
	out := msg.Clone()
	if !changed {
		s.mu.Unlock()
		return out, nil
	}
	entry.conv.UpdatedAt = s.now()
	s.commit(messageEvent(models.EventMessageUpdated, out))
	return out, nil
}

// SelectConversation makes id the current conversation
func (s *MemoryStore) SelectConversation(id string) error {
	s.mu.Lock()
	if _, ok := s.entries[id]; !ok {
		s.mu.Unlock()
		return conversationNotFound(id)
	}
	if s.current == id {
		s.mu.Unlock()
		return nil
	}
	s.current = id
	s.commit(models.Event{Type: models.EventConversationSelected, ConversationID: id})
	return nil
}

// SetTitle renames a conversation
func (s *MemoryStore) SetTitle(id, title string) error {
	if title == "" {
		return apperrors.NewValidationError("title is empty")
	}
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return conversationNotFound(id)
	}
	if entry.conv.Title == title {
		s.mu.Unlock()
		return nil
	}
	entry.conv.Title = title
	s.commit(conversationEvent(models.EventConversationRenamed, entry.conv))
	return nil
}

// Conversation returns a copy of one conversation
func (s *MemoryStore) Conversation(id string) (models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return models.Conversation{}, conversationNotFound(id)
	}
	return entry.conv.Clone(), nil
}

// Conversations returns copies of every conversation in creation order
func (s *MemoryStore) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].conv.Clone())
	}
	return out
}

// CurrentConversationID returns the selected conversation, or "" when none is selected
func (s *MemoryStore) CurrentConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Message returns a copy of one message
func (s *MemoryStore) Message(conversationID, messageID string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[conversationID]
	if !ok {
		return models.Message{}, conversationNotFound(conversationID)
	}
	pos, ok := entry.index[messageID]
	if !ok {
		return models.Message{}, apperrors.NewNotFoundError(fmt.Sprintf("message %s not found in conversation %s", messageID, conversationID))
	}
	return entry.conv.Messages[pos].Clone(), nil
}

// Subscribe registers fn for every committed change.
// fn runs synchronously in commit order and must not mutate the store.
func (s *MemoryStore) Subscribe(fn func(models.Event)) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// commit must be called with mu held; it releases mu and delivers events
func (s *MemoryStore) commit(events ...models.Event) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.subMu.Lock()
	subs := make([]func(models.Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func conversationEvent(t models.EventType, c models.Conversation) models.Event {
	clone := c.Clone()
	return models.Event{Type: t, ConversationID: c.ID, Conversation: &clone}
}

func messageEvent(t models.EventType, m models.Message) models.Event {
	clone := m.Clone()
	return models.Event{Type: t, ConversationID: m.ConversationID, Message: &clone}
}

func conversationNotFound(id string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("conversation %s not found", id))
}
