package middleware

import (
	"net/http"
	"strings"

	"tutorly/models"
	"tutorly/utils"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserIDKey is the gin context key holding the authenticated
	// user's id.
	ContextUserIDKey = "userID"
	// ContextRoleKey is the gin context key holding the authenticated
	// user's role.
	ContextRoleKey = "userRole"
)

// JWTAuthMiddleware validates the bearer token and stores the caller's
// identity on the context.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing or malformed authorization header",
			})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		userID, role, err := utils.ExtractIdentityFromToken(tokenString)
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated caller has the given
// role. Must run after JWTAuthMiddleware.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := c.Get(ContextRoleKey)
		if !ok || got != string(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "insufficient permissions",
			})
			return
		}
		c.Next()
	}
}

// Identity returns the authenticated user id and role from the context.
func Identity(c *gin.Context) (string, models.Role) {
	userID := c.GetString(ContextUserIDKey)
	role := models.Role(c.GetString(ContextRoleKey))
	return userID, role
}
