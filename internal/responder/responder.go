package responder

import (
	"context"
	"time"

	"langgraph-chat/app/conversation/models"
)

// Turn is one earlier message given to the responder as context
type Turn struct {
	Role    string
	Content string
}

// Request asks an agent for the next assistant turn.
// History ends with the user message being answered.
type Request struct {
	ConversationID string
	Agent          models.AgentType
	History        []Turn
}

// Responder generates assistant replies
type Responder interface {
	Respond(ctx context.Context, req Request) (string, error)
}

// systemPrompts steer each agent's tone
var systemPrompts = map[models.AgentType]string{
	models.AgentTherapist: "You are a compassionate emotional support companion. " +
		"Acknowledge the user's feelings, validate them, and ask gentle questions that help them reflect. " +
		"Offer practical coping ideas when it fits. Do not give medical advice; " +
		"suggest professional help for serious concerns.",
	models.AgentLogical: "You are a precise analytical assistant. " +
		"Answer with clear reasoning, facts and step-by-step explanations. " +
		"Stay neutral and concise, and say so when you are unsure.",
}

// SystemPrompt returns the instruction for agent, defaulting to the logical one
func SystemPrompt(agent models.AgentType) string {
	if p, ok := systemPrompts[agent]; ok {
		return p
	}
	return systemPrompts[models.AgentLogical]
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
