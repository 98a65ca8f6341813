package middleware

import (
	"github.com/gin-gonic/gin"
)

// AnonymousUser is the user id attached when auth is disabled.
const AnonymousUser = "anonymous"

// NoAuth is a pass-through middleware for AUTH_MODE=none.
// Every request runs as AnonymousUser.
func NoAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", AnonymousUser)
		c.Next()
	}
}

// GetUserID returns the user id set by the auth middleware, or
// AnonymousUser when none ran.
func GetUserID(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return id
	}
	return AnonymousUser
}
