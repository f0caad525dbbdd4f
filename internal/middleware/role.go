package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/spherelink/backend/internal/access"
	"github.com/spherelink/backend/pkg/response"
)

// RequireSuperAdmin allows only effective super admins. Must run after Principal.
func RequireSuperAdmin() gin.HandlerFunc {
	return require(access.IsSuperAdmin, "super admin access required")
}

// RequireStaff allows staff, org admins and super admins. Must run after Principal.
func RequireStaff() gin.HandlerFunc {
	return require(access.IsStaffOrAbove, "staff access required")
}

func require(allow func(*access.Snapshot) bool, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := PrincipalFrom(c)
		if snap == nil {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !allow(snap) {
			response.Forbidden(c, msg)
			c.Abort()
			return
		}
		c.Next()
	}
}
