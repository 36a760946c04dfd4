package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mailservice/internal/service"
	pkgconfig "mailservice/pkg/config"
	"mailservice/pkg/otel"
	"mailservice/pkg/trace"
)

const apiPrefix = "/api/v1"

type Router struct {
	Engine *gin.Engine
}

// NewRouter wires every route. A nil authService disables /token and leaves
// send and history unauthenticated.
func NewRouter(
	mailHandler *MailHandler,
	historyHandler *HistoryHandler,
	healthHandler *HealthHandler,
	authService *service.AuthService,
	logger *zap.Logger,
	logCfg pkgconfig.LoggingConfig,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger, logCfg), otel.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/", healthHandler.Root)

	v1 := r.Group(apiPrefix)

	// Public
	v1.GET("/", healthHandler.Root)
	v1.GET("/health", healthHandler.Health)

	// Protected
	protected := v1.Group("")
	if authService != nil {
		v1.POST("/token", NewAuthHandler(authService).Token)
		protected.Use(AuthMiddleware(authService))
	}
	{
		protected.POST("/send", mailHandler.Send)
		protected.GET("/history", historyHandler.List)
		protected.GET("/history/:id", historyHandler.Get)
	}

	return &Router{Engine: r}
}

// Handler wraps the engine with CORS for the given origins.
func (r *Router) Handler(origins []string) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions, http.MethodHead}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", trace.RequestIDHeader, trace.CorrelationIDHeader}),
		handlers.ExposedHeaders([]string{trace.RequestIDHeader, trace.CorrelationIDHeader}),
		handlers.AllowCredentials(),
	)(r.Engine)
}
