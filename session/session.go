package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"langgraph-chat/app/ai"
	"langgraph-chat/app/auth"
	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/conversation/repository"
	"langgraph-chat/app/conversation/service"
	apperrors "langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/health"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/shared/observability"
)

// GatewayFactory builds the backend gateway for one signed-in identity
type GatewayFactory func(identity auth.Identity) (ai.Gateway, error)

// HTTPGatewayFactory authenticates every call with the identity's bearer token
func HTTPGatewayFactory(baseURL string, opts ...ai.Option) GatewayFactory {
	return func(identity auth.Identity) (ai.Gateway, error) {
		opts := append([]ai.Option{ai.WithToken(identity.Token)}, opts...)
		return ai.NewHTTPGateway(baseURL, opts...)
	}
}

// Config tunes sessions created by a Manager
type Config struct {
	HealthInterval time.Duration
	// SyncOnStart loads the backend's conversation list when the session starts
	SyncOnStart bool
}

// Manager creates chat sessions for authenticated identities
type Manager struct {
	gateways GatewayFactory
	config   Config
	log      *logger.Logger
	metrics  *observability.Metrics
}

// NewManager creates a session manager
func NewManager(gateways GatewayFactory, config Config, log *logger.Logger, metrics *observability.Metrics) *Manager {
	if config.HealthInterval <= 0 {
		config.HealthInterval = 30 * time.Second
	}
	return &Manager{
		gateways: gateways,
		config:   config,
		log:      log.WithComponent("session"),
		metrics:  metrics,
	}
}

// Session owns the chat state of one signed-in identity, from sign-in to sign-out
type Session struct {
	identity   auth.Identity
	controller *service.Controller
	checker    *health.Checker
	log        *logger.Logger

	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

// Start builds a fresh session. It refuses identities that are not loaded and signed in.
func (m *Manager) Start(ctx context.Context, identity auth.Identity) (*Session, error) {
	if identity == nil || !identity.IsLoaded() {
		return nil, apperrors.NewUnauthenticatedError("identity is still loading")
	}
	if !identity.IsSignedIn() {
		return nil, apperrors.NewUnauthenticatedError("sign in to start chatting")
	}

	gateway, err := m.gateways(identity)
	if err != nil {
		return nil, err
	}

	log := m.log
	if user, ok := identity.User(); ok && user.ID != "" {
		log = log.WithUserID(user.ID)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	controller := service.NewController(sessCtx, repository.NewMemoryStore(), gateway,
		service.WithLogger(log),
		service.WithMetrics(m.metrics),
	)

	checker := health.NewChecker(log, m.config.HealthInterval)
	checker.RegisterCriticalCheck("backend", func(ctx context.Context) (health.Status, string, error) {
		if controller.CheckConnection(ctx) {
			return health.StatusUp, "Backend reachable", nil
		}
		return health.StatusDown, "Backend unreachable", nil
	})

	if m.config.SyncOnStart {
		if _, err := controller.LoadConversations(sessCtx); err != nil {
			log.Warn("Initial conversation sync failed", "error", err)
		}
	}

	group, groupCtx := errgroup.WithContext(sessCtx)
	group.Go(func() error { return checker.Run(groupCtx) })

	log.Info("Chat session started")
	return &Session{
		identity:   identity,
		controller: controller,
		checker:    checker,
		log:        log,
		cancel:     cancel,
		group:      group,
	}, nil
}

// Controller returns the lifecycle controller of the session
func (s *Session) Controller() *service.Controller {
	return s.controller
}

// Identity returns the identity the session was started for
func (s *Session) Identity() auth.Identity {
	return s.identity
}

// Health reports the connection monitor's components
func (s *Session) Health() map[string]*health.Component {
	return s.checker.GetStatus()
}

// State is a shortcut for Controller().State()
func (s *Session) State() models.ChatState {
	return s.controller.State()
}

// Close stops the connection monitor and waits for in-flight sends to settle
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.group.Wait()
		s.controller.Close()
		s.log.Info("Chat session closed")
	})
}

// SignOut tears the session down and signs the identity out
func (s *Session) SignOut(ctx context.Context) error {
	s.Close()
	return s.identity.SignOut(ctx)
}
