package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/spherelink/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextPrincipal is the key for the caller's *access.Snapshot.
	ContextPrincipal = "principal"
)

// TokenValidator resolves a bearer token to a user ID.
type TokenValidator interface {
	UserID(token string) (uuid.UUID, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// JWT returns a middleware that validates the bearer token and sets the user ID in context.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := BearerToken(header)
		if !ok {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		userID, err := tokens.UserID(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}
