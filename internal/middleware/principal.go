package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/internal/apperr"
	"github.com/spherelink/backend/pkg/response"
)

// SnapshotLoader loads the caller's role assignments.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, userID uuid.UUID) (*access.Snapshot, error)
}

// Principal loads the authorization snapshot once per request. Must run after JWT.
func Principal(loader SnapshotLoader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := c.Get(ContextUserID)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		snap, err := loader.LoadSnapshot(c.Request.Context(), userID.(uuid.UUID))
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				response.Unauthorized(c, "account not found or inactive")
				c.Abort()
				return
			}
			logger.Error("load principal", zap.Error(err), zap.String("user_id", userID.(uuid.UUID).String()))
			response.Internal(c, "failed to load permissions")
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, snap)
		c.Next()
	}
}

// PrincipalFrom returns the snapshot stored by Principal, or nil.
func PrincipalFrom(c *gin.Context) *access.Snapshot {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil
	}
	snap, _ := v.(*access.Snapshot)
	return snap
}
