package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/jwt"
)

// UserResponse is the caller's profile as known from their token
type UserResponse struct {
	ID             string   `json:"id"`
	FirstName      string   `json:"first_name,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	EmailAddresses []string `json:"email_addresses"`
}

// AuthHandler serves identity endpoints
type AuthHandler struct{}

// NewAuthHandler creates an auth handler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// RegisterRoutes registers the auth routes; auth must run the JWT middleware
func (h *AuthHandler) RegisterRoutes(group gin.IRoutes, auth gin.HandlerFunc) {
	group.GET("/auth/me", auth, h.Me)
}

// Me returns the authenticated caller's profile
func (h *AuthHandler) Me(c *gin.Context) {
	value, ok := c.Get("claims")
	claims, isClaims := value.(*jwt.Claims)
	if !ok || !isClaims {
		c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
		return
	}

	emails := []string{}
	if claims.Email != "" {
		emails = append(emails, claims.Email)
	}
	c.JSON(http.StatusOK, UserResponse{
		ID:             claims.UserID(),
		FirstName:      claims.FirstName,
		ImageURL:       claims.ImageURL,
		EmailAddresses: emails,
	})
}
