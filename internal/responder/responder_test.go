package responder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/pkg/cache"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/resilience"
	"langgraph-chat/app/shared/observability"
)

func TestKeywordClassifier(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    models.MessageType
	}{
		{"greeting goes to therapist", "Hello", models.MessageTypeEmotional},
		{"feelings", "I'm feeling really stressed and anxious lately", models.MessageTypeEmotional},
		{"question", "How does machine learning work? Explain the algorithm", models.MessageTypeLogical},
		{"no signal defaults to therapist", "zzz", models.MessageTypeEmotional},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := KeywordClassifier{}.Classify(context.Background(), tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.MessageType)
			assert.NoError(t, models.CheckClassification(c.MessageType, c.Agent))
			assert.True(t, c.Confidence > 0 && c.Confidence <= 1)
		})
	}
}

func TestRandomClassifierIsConsistent(t *testing.T) {
	c := NewRandomClassifier(7)
	seen := map[models.AgentType]bool{}
	for i := 0; i < 50; i++ {
		got, err := c.Classify(context.Background(), "anything")
		require.NoError(t, err)
		require.NoError(t, models.CheckClassification(got.MessageType, got.Agent))
		seen[got.Agent] = true
	}
	assert.Len(t, seen, 2)
}

type countingClassifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingClassifier) Classify(context.Context, string) (Classification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return Classification{}, c.err
	}
	return classificationFor(models.MessageTypeLogical, 0.9), nil
}

func TestCachedClassifier(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	inner := &countingClassifier{}
	c := NewCachedClassifier(inner, NewMemoryDecisionCache(cache.New(cache.Options{})), logger.Nop(), metrics)

	ctx := context.Background()
	first, err := c.Classify(ctx, "How do I plan this?")
	require.NoError(t, err)
	second, err := c.Classify(ctx, "  how do i plan THIS?  ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClassifierCacheHit.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClassifierCacheHit.WithLabelValues("miss")))
}

func TestFallbackClassifier(t *testing.T) {
	f := FallbackClassifier{
		Primary:   &countingClassifier{err: errors.New("down")},
		Secondary: KeywordClassifier{},
	}
	got, err := f.Classify(context.Background(), "I feel sad")
	require.NoError(t, err)
	assert.Equal(t, models.AgentTherapist, got.Agent)
}

func TestMockResponder(t *testing.T) {
	m := NewMockResponder(0, 0, 1)
	reply, err := m.Respond(context.Background(), Request{Agent: models.AgentTherapist})
	require.NoError(t, err)
	assert.Contains(t, cannedReplies[models.AgentTherapist], reply)

	slow := NewMockResponder(time.Hour, time.Hour, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = slow.Respond(ctx, Request{Agent: models.AgentLogical})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []openai.ChatCompletionRequest
	content  string
	err      error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.content}}},
	}, nil
}

func newBreaker() *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "openai",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		Timeout:          time.Second,
		RetryTimeout:     time.Hour,
	}, logger.Nop())
}

func TestOpenAIResponder(t *testing.T) {
	client := &fakeCompleter{content: "  Take a deep breath.  "}
	r := NewOpenAIResponder(client, "", newBreaker(), NewMockResponder(0, 0, 1), logger.Nop())

	reply, err := r.Respond(context.Background(), Request{
		Agent: models.AgentTherapist,
		History: []Turn{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "I'm stressed"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Take a deep breath.", reply)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, openai.GPT4oMini, req.Model)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, SystemPrompt(models.AgentTherapist), req.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[2].Role)
}

func TestOpenAIResponderFallsBackWhenCircuitOpens(t *testing.T) {
	client := &fakeCompleter{err: errors.New("rate limited")}
	r := NewOpenAIResponder(client, "gpt-test", newBreaker(), NewMockResponder(0, 0, 1), logger.Nop())
	req := Request{Agent: models.AgentLogical, History: []Turn{{Role: "user", Content: "why?"}}}

	_, err := r.Respond(context.Background(), req)
	require.Error(t, err)

	reply, err := r.Respond(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, cannedReplies[models.AgentLogical], reply)
	assert.Len(t, client.requests, 1)
}

func TestOpenAIClassifier(t *testing.T) {
	client := &fakeCompleter{content: `{"message_type":"emotional","confidence":0.8}`}
	c := NewOpenAIClassifier(client, "", newBreaker())

	got, err := c.Classify(context.Background(), "I miss my friend")
	require.NoError(t, err)
	assert.Equal(t, models.AgentTherapist, got.Agent)
	assert.Equal(t, 0.8, got.Confidence)

	client.content = `{"message_type":"creative"}`
	_, err = NewOpenAIClassifier(client, "", newBreaker()).Classify(context.Background(), "write a poem")
	assert.Error(t, err)
}
