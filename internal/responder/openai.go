package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/resilience"
)

// ChatCompleter is the part of the OpenAI client the responder needs
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIResponder generates replies with a chat completion model.
// Calls go through a circuit breaker; while it is open the fallback answers.
type OpenAIResponder struct {
	client   ChatCompleter
	model    string
	breaker  *resilience.CircuitBreaker
	fallback Responder
	log      *logger.Logger
}

// NewOpenAIClient builds a go-openai client, optionally against a compatible base URL
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func NewOpenAIResponder(client ChatCompleter, model string, breaker *resilience.CircuitBreaker, fallback Responder, log *logger.Logger) *OpenAIResponder {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIResponder{
		client:   client,
		model:    model,
		breaker:  breaker,
		fallback: fallback,
		log:      log.WithComponent("openai_responder"),
	}
}

func (o *OpenAIResponder) Respond(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: SystemPrompt(req.Agent),
	})
	for _, t := range req.History {
		role := openai.ChatMessageRoleUser
		if t.Role == string(models.RoleAssistant) {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	var reply string
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    o.model,
			Messages: msgs,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return errors.New("openai returned an empty completion")
		}
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) && o.fallback != nil {
		o.log.Warn("OpenAI circuit open, using fallback replies", "conversation_id", req.ConversationID)
		return o.fallback.Respond(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	return reply, nil
}

const classifyPrompt = `Classify the user's message by its primary need.
"emotional": feelings, stress, relationships, personal support.
"logical": facts, analysis, explanations, planning, problem solving.
Reply with JSON only: {"message_type":"emotional"|"logical","confidence":0.0-1.0}`

// OpenAIClassifier asks the model for a routing decision
type OpenAIClassifier struct {
	client  ChatCompleter
	model   string
	breaker *resilience.CircuitBreaker
}

func NewOpenAIClassifier(client ChatCompleter, model string, breaker *resilience.CircuitBreaker) *OpenAIClassifier {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClassifier{client: client, model: model, breaker: breaker}
}

func (o *OpenAIClassifier) Classify(ctx context.Context, content string) (Classification, error) {
	var result Classification
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
				{Role: openai.ChatMessageRoleUser, Content: content},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("openai returned no choices")
		}
		parsed, err := parseDecision(resp.Choices[0].Message.Content)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	return result, err
}

func parseDecision(raw string) (Classification, error) {
	var decision struct {
		MessageType string  `json:"message_type"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return Classification{}, fmt.Errorf("invalid classifier output: %w", err)
	}
	t := models.MessageType(decision.MessageType)
	if _, ok := models.AgentFor(t); !ok {
		return Classification{}, fmt.Errorf("classifier returned unknown type %q", decision.MessageType)
	}
	confidence := decision.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0.5
	}
	return classificationFor(t, confidence), nil
}
