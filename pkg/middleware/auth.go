package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"langgraph-chat/app/pkg/errors"
	"langgraph-chat/app/pkg/jwt"
	"langgraph-chat/app/pkg/logger"
)

// JWTAuthMiddleware validates the bearer token and adds claims to the context.
// When required is false, requests without an Authorization header pass through anonymously.
func JWTAuthMiddleware(jwtService *jwt.Service, required bool, logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
				c.Abort()
				return
			}
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			logger.Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("userID", claims.UserID())
		c.Set("userId", claims.UserID())
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), claims.UserID()))

		c.Next()
	}
}
