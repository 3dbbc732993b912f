package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"langgraph-chat/app/internal/repository"
	"langgraph-chat/app/internal/responder"
	"langgraph-chat/app/internal/service"
	"langgraph-chat/app/pkg/cache"
	"langgraph-chat/app/pkg/config"
	"langgraph-chat/app/pkg/health"
	"langgraph-chat/app/pkg/jwt"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/middleware"
	"langgraph-chat/app/pkg/resilience"
	"langgraph-chat/app/pkg/secrets"
	"langgraph-chat/app/shared/observability"
	"langgraph-chat/app/shared/redis"
)

// Container holds all the dependencies of the backend simulator
type Container struct {
	Config      *config.Config
	Logger      *logger.Logger
	Registry    *prometheus.Registry
	Metrics     *observability.Metrics
	Secrets     secrets.Manager
	DB          *gorm.DB
	Repository  repository.ConversationRepository
	Cache       *cache.Cache
	Redis       *redis.Client
	Breaker     *resilience.CircuitBreaker
	Classifier  responder.Classifier
	Responder   responder.Responder
	ChatService *service.ChatService
	JWTService  *jwt.Service
	Health      *health.Checker
	RateLimiter *middleware.RateLimiter

	openai responder.ChatCompleter
}

// Options overrides parts of the container; zero values use the config
type Options struct {
	Secrets    secrets.Manager
	Repository repository.ConversationRepository
	Registry   *prometheus.Registry
	// Seed makes the mock responder and random classifier reproducible
	Seed int64
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   log,
		Registry: opts.Registry,
	}
	if c.Registry == nil {
		c.Registry = prometheus.NewRegistry()
	}
	c.Metrics = observability.NewMetrics(c.Registry)

	c.Secrets = opts.Secrets
	if c.Secrets == nil {
		manager, err := secrets.NewVaultManager(secrets.VaultConfigFrom(cfg), log)
		if err != nil {
			return nil, fmt.Errorf("failed to create secrets manager: %w", err)
		}
		c.Secrets = manager
	}

	if err := c.initRepository(opts.Repository); err != nil {
		return nil, err
	}
	if err := c.initClassifier(ctx, opts.Seed); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initResponder(ctx, opts.Seed); err != nil {
		c.Close()
		return nil, err
	}

	c.ChatService = service.NewChatService(c.Repository, c.Classifier, c.Responder, log, c.Metrics)

	jwtSecret := c.Secrets.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.JWT.Secret)
	if jwtSecret != "" {
		jwtService, err := jwt.NewService(jwtSecret, cfg.JWT.Expiry)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.JWTService = jwtService
	} else if cfg.JWT.Required {
		c.Close()
		return nil, fmt.Errorf("JWT_REQUIRED is set but no jwt secret is configured")
	}

	c.RateLimiter = middleware.NewRateLimiter(log, middleware.RateLimiterOptions{
		Limit: rate.Limit(cfg.Security.RateLimit),
		Burst: cfg.Security.RateLimitBurst,
	})

	c.initHealth()
	return c, nil
}

func (c *Container) initRepository(repo repository.ConversationRepository) error {
	switch {
	case repo != nil:
		c.Repository = repo
	case c.Config.Server.Storage == "postgres":
		db, err := config.NewDB(c.Config)
		if err != nil {
			return err
		}
		if err := config.TestConnection(db); err != nil {
			return err
		}
		gormRepo := repository.NewGormRepository(db)
		if err := gormRepo.Migrate(); err != nil {
			return err
		}
		c.DB = db
		c.Repository = gormRepo
	default:
		c.Repository = repository.NewMemoryRepository()
	}
	return nil
}

func (c *Container) decisionCache(ctx context.Context) (responder.DecisionCache, error) {
	if c.Config.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Options{
			Addr:   c.Config.Redis.Addr,
			DB:     c.Config.Redis.DB,
			Prefix: "langgraph-chat:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.Redis = client
		return responder.NewRedisDecisionCache(client, c.Config.Responder.CacheTTL), nil
	}

	c.Cache = cache.New(cache.Options{
		DefaultExpiration: c.Config.Responder.CacheTTL,
		CleanupInterval:   time.Minute,
		MaxItems:          c.Config.Responder.CacheMaxSize,
	})
	return responder.NewMemoryDecisionCache(c.Cache), nil
}

func (c *Container) initClassifier(ctx context.Context, seed int64) error {
	var base responder.Classifier = responder.KeywordClassifier{}
	if c.Config.Responder.Classifier == "random" {
		base = responder.NewRandomClassifier(seed)
	}

	decisions, err := c.decisionCache(ctx)
	if err != nil {
		return err
	}

	if c.Config.Responder.Mode == "openai" {
		client, err := c.openAIClient(ctx)
		if err != nil {
			return err
		}
		c.ensureBreaker()
		base = responder.FallbackClassifier{
			Primary:   responder.NewOpenAIClassifier(client, c.Config.Responder.OpenAIModel, c.Breaker),
			Secondary: base,
		}
	}

	c.Classifier = responder.NewCachedClassifier(base, decisions, c.Logger, c.Metrics)
	return nil
}

func (c *Container) initResponder(ctx context.Context, seed int64) error {
	mock := responder.NewMockResponder(c.Config.Responder.MinLatency, c.Config.Responder.MaxLatency, seed)
	switch c.Config.Responder.Mode {
	case "mock", "":
		c.Responder = mock
	case "openai":
		client, err := c.openAIClient(ctx)
		if err != nil {
			return err
		}
		c.ensureBreaker()
		c.Responder = responder.NewOpenAIResponder(client, c.Config.Responder.OpenAIModel, c.Breaker, mock, c.Logger)
	default:
		return fmt.Errorf("unknown responder mode %q", c.Config.Responder.Mode)
	}
	return nil
}

func (c *Container) openAIClient(ctx context.Context) (responder.ChatCompleter, error) {
	if c.openai != nil {
		return c.openai, nil
	}
	key, err := c.Secrets.GetSecret(ctx, secrets.KeyOpenAIAPIKey)
	if err != nil {
		return nil, fmt.Errorf("openai responder needs %s: %w", secrets.KeyOpenAIAPIKey, err)
	}
	c.openai = responder.NewOpenAIClient(key, c.Config.Responder.OpenAIBaseURL)
	return c.openai, nil
}

func (c *Container) ensureBreaker() {
	if c.Breaker == nil {
		c.Breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("openai"), c.Logger)
	}
}

func (c *Container) initHealth() {
	c.Health = health.NewChecker(c.Logger, 15*time.Second)
	c.Health.RegisterDatabaseCheck(c.Repository.Ping)

	if c.Redis != nil {
		c.Health.RegisterCheck("redis", func(ctx context.Context) (health.Status, string, error) {
			if err := c.Redis.Ping(ctx); err != nil {
				return health.StatusDegraded, "Classification cache unavailable", err
			}
			return health.StatusUp, "Classification cache reachable", nil
		})
	}

	c.Health.RegisterCheck("responder", func(context.Context) (health.Status, string, error) {
		if c.Breaker != nil && c.Breaker.GetState() == resilience.StateOpen {
			return health.StatusDegraded, "OpenAI circuit open, serving fallback replies", nil
		}
		return health.StatusUp, "Responder " + c.ResponderStatus(), nil
	})
}

// ResponderStatus describes the reply pipeline for the health endpoint
func (c *Container) ResponderStatus() string {
	if c.Breaker != nil {
		return "openai:" + string(c.Breaker.GetState())
	}
	return c.Config.Responder.Mode
}

// Run drives the background loops until ctx is done
func (c *Container) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Health.Run(ctx) })
	g.Go(func() error { return c.RateLimiter.Run(ctx) })
	if c.Cache != nil {
		g.Go(func() error { return c.Cache.Run(ctx) })
	}
	return g.Wait()
}

// Close releases external connections
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.LogError(err, "Failed to close redis client")
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
