package service

import "langgraph-chat/app/conversation/models"

// TypingHint guesses which agent will answer next. The guess is only shown while a reply is pending.
type TypingHint func(conv models.Conversation) models.AgentType

// LastAgentHint reuses the agent of the last assistant reply and falls back to the therapist
func LastAgentHint(conv models.Conversation) models.AgentType {
	if agent, ok := conv.LastAgent(); ok {
		return agent
	}
	return models.AgentTherapist
}
