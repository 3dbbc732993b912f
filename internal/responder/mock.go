package responder

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"langgraph-chat/app/conversation/models"
)

var cannedReplies = map[models.AgentType][]string{
	models.AgentTherapist: {
		"I hear you, and what you're feeling makes a lot of sense. Would you like to tell me more about what's been weighing on you?",
		"That sounds really hard. It's okay to feel this way. What do you think would help you feel a little more supported right now?",
		"Thank you for sharing that with me. Let's take it one step at a time. What part of this feels the heaviest?",
	},
	models.AgentLogical: {
		"Let's break this down. First, identify the core question, then list the constraints, and finally compare the possible approaches.",
		"Here's a structured way to look at it: gather the facts, separate assumptions from evidence, and test each option against your goal.",
		"Good question. The short answer depends on a few variables, so let's go through them one by one and see which ones matter most.",
	},
}

// MockResponder returns canned replies after a random delay
type MockResponder struct {
	minLatency time.Duration
	maxLatency time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockResponder answers within [minLatency, maxLatency]
func NewMockResponder(minLatency, maxLatency time.Duration, seed int64) *MockResponder {
	if maxLatency < minLatency {
		maxLatency = minLatency
	}
	return &MockResponder{
		minLatency: minLatency,
		maxLatency: maxLatency,
		rnd:        rand.New(rand.NewSource(seed)),
	}
}

func (m *MockResponder) pick(agent models.AgentType) (string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	replies, ok := cannedReplies[agent]
	if !ok {
		replies = cannedReplies[models.AgentLogical]
	}
	delay := m.minLatency
	if spread := m.maxLatency - m.minLatency; spread > 0 {
		delay += time.Duration(m.rnd.Int63n(int64(spread)))
	}
	return replies[m.rnd.Intn(len(replies))], delay
}

func (m *MockResponder) Respond(ctx context.Context, req Request) (string, error) {
	reply, delay := m.pick(req.Agent)
	if err := sleep(ctx, delay); err != nil {
		return "", err
	}
	return reply, nil
}
