package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailtriage/pkg/rbac"
	"mailtriage/pkg/util"
)

const (
	ctxSubject = "subject"
	ctxRole    = "role"
)

// AuthMiddleware requires a valid HS256 bearer token signed with jwtSecret.
// Tokens without a known role get the viewer role.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "missing token"})
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(token, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid token"})
			c.Abort()
			return
		}

		role := claims.Role
		if !rbac.ValidRole(role) {
			role = rbac.RoleViewer
		}

		c.Set(ctxSubject, claims.Subject)
		c.Set(ctxRole, role)

		c.Next()
	}
}

// RequirePermission rejects requests whose token role lacks perm.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ctxRole)
		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "not authenticated"})
			c.Abort()
			return
		}

		if err := rbac.CheckPermission(role, permission); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "error": err.Error()})
			c.Abort()
			return
		}

		c.Next()
	}
}
