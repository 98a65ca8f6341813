package api

import (
	"github.com/Conceptual-Machines/melodycomp-api/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/melodycomp-api/internal/api/middleware"
	"github.com/Conceptual-Machines/melodycomp-api/internal/conversation"
	"github.com/Conceptual-Machines/melodycomp-api/internal/melody"
	"github.com/Conceptual-Machines/melodycomp-api/internal/metrics"
	"github.com/Conceptual-Machines/melodycomp-api/internal/render"
	"github.com/Conceptual-Machines/melodycomp-api/internal/theory"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"gorm.io/gorm"
)

// Services are the components the routes are served from.
type Services struct {
	DB       *gorm.DB // nil when sessions live in memory
	Table    *theory.ModeTable
	Resolver *theory.Resolver
	Palette  *theory.PaletteGenerator
	Renderer *render.Renderer
	Manager  *conversation.Manager
	Melody   *melody.Service // nil disables melody generation
	Metrics  metrics.Recorder
	Cookies  sessions.Store
	Auth     gin.HandlerFunc
	Info     map[string]interface{}
}

func SetupRouter(svc Services, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(svc.Metrics))

	router.Use(apimiddleware.CORS())

	healthHandler := handlers.NewHealthHandler(svc.DB)
	router.GET("/health", healthHandler.HealthCheck)

	metricsHandler := handlers.NewMetricsHandler(version, svc.Info, svc.Manager)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	auth := svc.Auth
	if auth == nil {
		auth = apimiddleware.NoAuth()
	}

	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		theoryHandler := handlers.NewTheoryHandler(svc.Table, svc.Resolver, svc.Palette)
		v1.GET("/theory/modes", theoryHandler.Modes)
		v1.POST("/theory/palette", theoryHandler.Palette)

		renderHandler := handlers.NewRenderHandler(svc.Renderer)
		v1.POST("/render", renderHandler.Render)
		v1.POST("/melody/decode", renderHandler.DecodeMelody)

		sessionHandler := handlers.NewSessionHandler(svc.Manager, svc.Melody)
		v1.POST("/sessions", sessionHandler.Create)
		v1.GET("/sessions/:id", sessionHandler.Get)
		v1.POST("/sessions/:id/turns", sessionHandler.Turn)
		v1.POST("/sessions/:id/melody", sessionHandler.Melody)
		v1.GET("/sessions/:id/midi", sessionHandler.MIDI)

		if svc.Cookies != nil {
			v1.POST("/chat", apimiddleware.BrowserSession(svc.Cookies), sessionHandler.Chat)
		}
	}

	return router
}
