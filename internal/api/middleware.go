package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailservice/internal/service"
	pkgconfig "mailservice/pkg/config"
	"mailservice/pkg/logger"
	"mailservice/pkg/metrics"
	"mailservice/pkg/trace"
	"mailservice/pkg/util"
)

const subjectKey = "subject"

// RequestLogger assigns request and correlation IDs, logs each request and
// records its latency.
func RequestLogger(base *zap.Logger, cfg pkgconfig.LoggingConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, correlationID := trace.FromHeaders(
			c.GetHeader(trace.RequestIDHeader),
			c.GetHeader(trace.CorrelationIDHeader),
		)
		ctx := trace.WithIDs(c.Request.Context(), requestID, correlationID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(trace.RequestIDHeader, requestID)
		c.Header(trace.CorrelationIDHeader, correlationID)

		log := logger.WithTrace(ctx, base)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
		}
		if cfg.RequestResponse {
			fields = append(fields,
				zap.String("query", c.Request.URL.RawQuery),
				zap.String("user_agent", c.Request.UserAgent()),
				zap.String("content_type", c.ContentType()),
			)
		}
		log.Info("Incoming request", fields...)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(status), duration)

		done := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if len(c.Errors) > 0 {
			done = append(done, zap.String("errors", c.Errors.String()))
		}
		log.Info("Request completed", done...)

		if cfg.SlowRequestThreshold > 0 && duration > cfg.SlowRequestThreshold {
			log.Warn("Slow request",
				zap.String("path", c.Request.URL.Path),
				zap.Duration("duration", duration),
				zap.Duration("threshold", cfg.SlowRequestThreshold),
			)
		}
	}
}

// AuthMiddleware requires a valid bearer token.
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := util.ExtractToken(c.Request)
		if err != nil {
			unauthorized(c, "Not authenticated")
			return
		}

		subject, err := auth.Verify(token)
		if err != nil {
			unauthorized(c, "Could not validate credentials")
			return
		}

		c.Set(subjectKey, subject)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}
