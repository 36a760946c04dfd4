package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailservice/internal/service"
)

type HealthHandler struct {
	mailService *service.MailService
	appName     string
	version     string
	fromEmail   string
}

func NewHealthHandler(mailService *service.MailService, appName, version, fromEmail string) *HealthHandler {
	return &HealthHandler{
		mailService: mailService,
		appName:     appName,
		version:     version,
		fromEmail:   fromEmail,
	}
}

// Health always answers 200; problems show up in the status field.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, h.mailService.Health(c.Request.Context()))
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":    h.appName + " API",
		"version":    h.version,
		"from_email": h.fromEmail,
		"endpoints": gin.H{
			"send_email":    apiPrefix + "/send",
			"email_history": apiPrefix + "/history",
			"health_check":  apiPrefix + "/health",
		},
	})
}
