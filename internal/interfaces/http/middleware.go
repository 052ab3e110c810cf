package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity is the caller identity resolved by the upstream gateway.
// Authentication itself happens outside this service; these headers are
// trusted the same way the engine trusts resolverId, which it re-validates
// against gate state before mutating anything.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
}

const identityKey = "identity"

// identityMiddleware resolves the caller identity from gateway headers
func (s *Server) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identity{
			UserID:         c.GetHeader("X-User-ID"),
			OrganizationID: c.GetHeader("X-Org-ID"),
			Role:           c.GetHeader("X-User-Role"),
		}

		if id.UserID == "" || id.OrganizationID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing identity headers",
			})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// requireRole allows only callers holding one of the given roles
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := callerIdentity(c)
		for _, role := range roles {
			if id.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, Response{
			Success: false,
			Error:   "insufficient role",
		})
	}
}

// callerIdentity returns the identity set by identityMiddleware
func callerIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(Identity); ok {
			return id
		}
	}
	return Identity{}
}
