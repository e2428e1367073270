package perm

import (
	"net/http"

	"agent-settlement-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireBit blocks the request unless the caller's permission mask carries
// the given bit. Identity must already be in context (auth.RequireToken).
func RequireBit(bit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Has(auth.Permissions(c.Request.Context()), bit) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "permission_denied", "message": "forbidden"})
			return
		}
		c.Next()
	}
}
