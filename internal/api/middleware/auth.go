package middleware

import (
	"log"
	"net/http"

	"github.com/Conceptual-Machines/melodycomp-api/internal/config"
	"github.com/gin-gonic/gin"
)

// Auth picks the auth middleware for cfg.AuthMode. Unknown modes and jwt
// without a secret fail at startup.
func Auth(cfg *config.Config) gin.HandlerFunc {
	switch cfg.AuthMode {
	case config.AuthModeNone, "":
		log.Println("🔓 Auth mode: none")
		return NoAuth()
	case config.AuthModeGateway:
		log.Println("🔐 Auth mode: gateway headers")
		return GatewayAuth()
	case config.AuthModeJWT:
		if cfg.JWTSecret == "" {
			log.Fatal("AUTH_MODE=jwt requires JWT_SECRET")
		}
		log.Println("🔐 Auth mode: jwt")
		return JWTAuth(cfg.JWTSecret)
	default:
		log.Fatalf("Unknown AUTH_MODE %q", cfg.AuthMode)
		return nil
	}
}

// CORS allows browser clients on other origins to call the API.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		} else {
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
