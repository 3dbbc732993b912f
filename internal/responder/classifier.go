package responder

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"unicode"

	"langgraph-chat/app/conversation/models"
)

// Classification routes a user message to an agent
type Classification struct {
	MessageType models.MessageType `json:"message_type"`
	Agent       models.AgentType   `json:"agent_used"`
	Confidence  float64            `json:"confidence"`
}

// classificationFor builds a consistent classification for t
func classificationFor(t models.MessageType, confidence float64) Classification {
	agent, _ := models.AgentFor(t)
	return Classification{MessageType: t, Agent: agent, Confidence: confidence}
}

// Classifier decides which agent answers a message
type Classifier interface {
	Classify(ctx context.Context, content string) (Classification, error)
}

var emotionalKeywords = map[string]struct{}{
	"feel": {}, "feeling": {}, "feelings": {}, "felt": {},
	"sad": {}, "happy": {}, "angry": {}, "upset": {}, "lonely": {},
	"stress": {}, "stressed": {}, "stressful": {}, "anxious": {}, "anxiety": {},
	"worried": {}, "worry": {}, "depressed": {}, "depression": {}, "overwhelmed": {},
	"scared": {}, "afraid": {}, "hurt": {}, "love": {}, "cry": {}, "crying": {},
	"tired": {}, "exhausted": {}, "grief": {}, "relationship": {}, "therapy": {},
	"emotional": {}, "emotions": {}, "mood": {}, "struggling": {}, "hello": {}, "hi": {},
}

var logicalKeywords = map[string]struct{}{
	"how": {}, "why": {}, "what": {}, "explain": {}, "calculate": {}, "compute": {},
	"data": {}, "analyze": {}, "analysis": {}, "algorithm": {}, "code": {}, "math": {},
	"problem": {}, "solve": {}, "logic": {}, "fact": {}, "facts": {}, "work": {},
	"plan": {}, "schedule": {}, "learn": {}, "study": {}, "difference": {}, "compare": {},
	"steps": {}, "machine": {}, "learning": {}, "program": {}, "define": {}, "proof": {},
}

// KeywordClassifier scores words against emotional and logical vocabularies.
// Ties go to the therapist.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(_ context.Context, content string) (Classification, error) {
	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})

	var emotional, logical int
	for _, w := range words {
		w = strings.TrimSuffix(w, "'s")
		if _, ok := emotionalKeywords[w]; ok {
			emotional++
		}
		if _, ok := logicalKeywords[w]; ok {
			logical++
		}
	}

	total := emotional + logical
	if total == 0 {
		return classificationFor(models.MessageTypeEmotional, 0.5), nil
	}
	if logical > emotional {
		return classificationFor(models.MessageTypeLogical, float64(logical)/float64(total)), nil
	}
	return classificationFor(models.MessageTypeEmotional, float64(emotional)/float64(total)), nil
}

// RandomClassifier picks either agent with equal probability
type RandomClassifier struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomClassifier seeds a classifier; the same seed yields the same sequence
func NewRandomClassifier(seed int64) *RandomClassifier {
	return &RandomClassifier{rnd: rand.New(rand.NewSource(seed))}
}

func (c *RandomClassifier) Classify(context.Context, string) (Classification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := models.MessageTypeLogical
	if c.rnd.Float64() > 0.5 {
		t = models.MessageTypeEmotional
	}
	return classificationFor(t, 0.5+c.rnd.Float64()/2), nil
}

// FallbackClassifier uses Secondary whenever Primary fails
type FallbackClassifier struct {
	Primary   Classifier
	Secondary Classifier
}

func (f FallbackClassifier) Classify(ctx context.Context, content string) (Classification, error) {
	c, err := f.Primary.Classify(ctx, content)
	if err == nil {
		return c, nil
	}
	if ctx.Err() != nil {
		return Classification{}, err
	}
	return f.Secondary.Classify(ctx, content)
}
