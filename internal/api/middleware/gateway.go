package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GatewayAuth trusts user info from gateway headers (X-User-ID, X-User-Email, X-User-Role).
// It is used when the API runs behind a gateway that has already validated
// the caller.
//
// When AUTH_MODE=gateway, the API trusts these headers unconditionally.
// This should ONLY be used with proper network isolation.
func GatewayAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Authentication required",
				"message": "Missing X-User-ID header from gateway",
			})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("user_email", c.GetHeader("X-User-Email"))
		c.Set("user_role", c.GetHeader("X-User-Role"))
		c.Next()
	}
}

// GetUserEmail retrieves the user email set by the auth middleware
func GetUserEmail(c *gin.Context) (string, bool) {
	email := c.GetString("user_email")
	return email, email != ""
}
