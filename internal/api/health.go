package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"langgraph-chat/app/pkg/health"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status          string    `json:"status"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	LangGraphStatus string    `json:"langgraph_status"`
}

// Handler serves the backend health endpoint from the checker's last results
type Handler struct {
	checker *health.Checker
	// responderStatus describes the reply pipeline, e.g. "mock" or "openai:closed"
	responderStatus func() string
}

// NewHealthHandler creates a health handler
func NewHealthHandler(checker *health.Checker, responderStatus func() string) *Handler {
	return &Handler{checker: checker, responderStatus: responderStatus}
}

// HealthHandler reports healthy, degraded (200) or unhealthy (503)
func (h *Handler) HealthHandler(c *gin.Context) {
	resp := HealthResponse{
		Timestamp:       time.Now().UTC(),
		LangGraphStatus: "unknown",
	}
	if h.responderStatus != nil {
		resp.LangGraphStatus = h.responderStatus()
	}

	code := http.StatusOK
	switch h.checker.Overall() {
	case health.StatusUp:
		resp.Status = "healthy"
		resp.Message = "All systems operational"
	case health.StatusDegraded:
		resp.Status = "degraded"
		resp.Message = "Running with reduced functionality"
	default:
		resp.Status = "unhealthy"
		resp.Message = "A critical component is down"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// RegisterHealthRoutes registers health check related routes
func (h *Handler) RegisterHealthRoutes(router gin.IRoutes) {
	router.GET("/health", h.HealthHandler)
}
