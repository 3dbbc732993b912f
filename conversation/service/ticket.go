package service

import (
	"context"
	"sync"

	"langgraph-chat/app/conversation/models"
)

// Outcome is how a submission settled
type Outcome struct {
	UserMessage      models.Message
	AssistantMessage *models.Message
	Err              error
}

// Ticket tracks one accepted submission
type Ticket struct {
	ConversationID string
	MessageID      string

	done    chan struct{}
	once    sync.Once
	outcome Outcome
}

func newTicket(conversationID, messageID string) *Ticket {
	return &Ticket{
		ConversationID: conversationID,
		MessageID:      messageID,
		done:           make(chan struct{}),
	}
}

func (t *Ticket) settle(o Outcome) {
	t.once.Do(func() {
		t.outcome = o
		close(t.done)
	})
}

// Done is closed once the submission reached a terminal status
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the submission settles or ctx ends.
// The returned error is ctx's; a failed send is reported in Outcome.Err.
func (t *Ticket) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
