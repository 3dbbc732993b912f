package responder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"langgraph-chat/app/pkg/cache"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/shared/observability"
	"langgraph-chat/app/shared/redis"
)

// DecisionCache remembers classifications by message key
type DecisionCache interface {
	Get(ctx context.Context, key string) (Classification, bool, error)
	Set(ctx context.Context, key string, c Classification) error
}

// MemoryDecisionCache keeps decisions in process memory
type MemoryDecisionCache struct {
	cache *cache.Cache
}

func NewMemoryDecisionCache(c *cache.Cache) *MemoryDecisionCache {
	return &MemoryDecisionCache{cache: c}
}

func (m *MemoryDecisionCache) Get(_ context.Context, key string) (Classification, bool, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return Classification{}, false, nil
	}
	c, ok := v.(Classification)
	return c, ok, nil
}

func (m *MemoryDecisionCache) Set(_ context.Context, key string, c Classification) error {
	m.cache.Set(key, c)
	return nil
}

// RedisDecisionCache shares decisions between simulator instances
type RedisDecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDecisionCache(client *redis.Client, ttl time.Duration) *RedisDecisionCache {
	return &RedisDecisionCache{client: client, ttl: ttl}
}

func (r *RedisDecisionCache) Get(ctx context.Context, key string) (Classification, bool, error) {
	raw, found, err := r.client.Get(ctx, key)
	if err != nil || !found {
		return Classification{}, false, err
	}
	var c Classification
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Classification{}, false, err
	}
	return c, true, nil
}

func (r *RedisDecisionCache) Set(ctx context.Context, key string, c Classification) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.ttl)
}

// CachedClassifier consults the cache before the wrapped classifier.
// Cache failures are logged and never fail a classification.
type CachedClassifier struct {
	next    Classifier
	cache   DecisionCache
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewCachedClassifier(next Classifier, c DecisionCache, log *logger.Logger, metrics *observability.Metrics) *CachedClassifier {
	return &CachedClassifier{
		next:    next,
		cache:   c,
		log:     log.WithComponent("classifier"),
		metrics: metrics,
	}
}

func decisionKey(content string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(content))))
	return "classify:" + hex.EncodeToString(sum[:])
}

func (c *CachedClassifier) Classify(ctx context.Context, content string) (Classification, error) {
	key := decisionKey(content)

	cached, found, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("Classification cache read failed", "error", err.Error())
	}
	if found {
		c.metrics.ObserveClassifierCache("hit")
		return cached, nil
	}
	c.metrics.ObserveClassifierCache("miss")

	result, err := c.next.Classify(ctx, content)
	if err != nil {
		return Classification{}, err
	}
	if err := c.cache.Set(ctx, key, result); err != nil {
		c.log.Warn("Classification cache write failed", "error", err.Error())
	}
	return result, nil
}
