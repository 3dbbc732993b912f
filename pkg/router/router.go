package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"langgraph-chat/app/internal/api"
	"langgraph-chat/app/pkg/config"
	"langgraph-chat/app/pkg/di"
	"langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/logger"
	"langgraph-chat/app/pkg/middleware"
	"langgraph-chat/app/shared/observability"
)

// Router is the HTTP front of the backend simulator
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a router with the common middleware chain installed
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// request id first so every later middleware can log it
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(tracingMiddleware())
	engine.Use(metricsMiddleware(container.Metrics))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	engine.Use(bodyLimitMiddleware(cfg.Security.MaxBodySize))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.setupHealthRoutes()
	r.Engine.GET("/metrics", gin.WrapH(observability.MetricsHandler(r.Container.Registry)))

	apiGroup := r.Engine.Group("/api")

	healthHandler := api.NewHealthHandler(r.Container.Health, r.Container.ResponderStatus)
	healthHandler.RegisterHealthRoutes(apiGroup)

	// health stays outside rate limiting and auth so monitors never get 429/401
	protected := apiGroup.Group("")
	if r.Container.JWTService != nil {
		protected.Use(middleware.JWTAuthMiddleware(r.Container.JWTService, r.Config.JWT.Required, r.Logger))
	}
	// after auth so limits apply per user when a token is present
	protected.Use(r.Container.RateLimiter.Middleware())

	if r.Container.JWTService != nil {
		api.NewAuthHandler().RegisterRoutes(protected, requireClaims())
	}

	api.NewConversationController(r.Container.ChatService).RegisterRoutes(protected)
}

// requireClaims rejects anonymous callers on routes behind optional auth
func requireClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get("claims"); !ok {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// tracingMiddleware opens one server span per request
func tracingMiddleware() gin.HandlerFunc {
	tracer := observability.Tracer("langgraph-chat/app/pkg/router")
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.Request.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("url.path", c.Request.URL.Path),
				attribute.String("request.id", middleware.GetRequestID(c.Request.Context())),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		if traceID := middleware.GetTraceID(ctx); traceID != "" {
			c.Header("X-Trace-ID", traceID)
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// metricsMiddleware counts requests by matched route
func metricsMiddleware(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status())
	}
}

// bodyLimitMiddleware caps request bodies at limit bytes
func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// corsMiddleware allows the configured origins; "*" allows any
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
