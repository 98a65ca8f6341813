package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Conceptual-Machines/melodycomp-api/internal/logger"
	"github.com/Conceptual-Machines/melodycomp-api/internal/metrics"
	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sentryFlushTimeout = 2 * time.Second

// RequestTracking adds a request ID, logs each request and records it on
// recorder. An incoming X-Request-ID is kept when it parses as a UUID.
func RequestTracking(recorder metrics.Recorder) gin.HandlerFunc {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		logger.LogAPIRequest(c, duration, statusCode, nil)

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		recorder.RecordAPIRequest(c.Request.Context(), route, statusCode, duration)
	}
}

// SentryMiddleware returns the Sentry middleware with custom configuration
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         sentryFlushTimeout,
	})
}

// RecoverWithSentry recovers from panics and sends them to Sentry
func RecoverWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				if hub := sentrygin.GetHubFromContext(c); hub != nil {
					hub.WithScope(func(scope *sentry.Scope) {
						scope.SetRequest(c.Request)
						scope.SetContext("request", map[string]interface{}{
							"request_id": c.GetString("request_id"),
							"method":     c.Request.Method,
							"path":       c.Request.URL.Path,
							"client_ip":  c.ClientIP(),
						})
						if userID, exists := c.Get("user_id"); exists {
							scope.SetUser(sentry.User{ID: fmt.Sprint(userID)})
						}
						hub.RecoverWithContext(c.Request.Context(), err)
					})
				}

				logger.Error("Panic recovered", fmt.Errorf("%v", err), logger.Fields{
					"request_id": c.GetString("request_id"),
					"path":       c.Request.URL.Path,
				})

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": c.GetString("request_id"),
				})
			}
		}()
		c.Next()
	}
}
