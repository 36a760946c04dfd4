package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailservice/internal/model"
	"mailservice/internal/service"
	"mailservice/internal/validation"
	"mailservice/pkg/logger"
)

type MailHandler struct {
	mailService *service.MailService
	logger      *zap.Logger
}

func NewMailHandler(mailService *service.MailService, logger *zap.Logger) *MailHandler {
	return &MailHandler{
		mailService: mailService,
		logger:      logger,
	}
}

// Send handles POST /send. A relay failure answers 500 with the
// EmailResponse (status=failed) as the body.
func (h *MailHandler) Send(c *gin.Context) {
	var req model.EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, validation.DecodeError(err))
		return
	}

	resp, err := h.mailService.Send(c.Request.Context(), &req)
	if err != nil {
		if verr, ok := validation.AsError(err); ok {
			validationFailed(c, verr)
			return
		}
		logger.WithTrace(c.Request.Context(), h.logger).Error("Send failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send email"})
		return
	}

	if resp.Status == model.StatusFailed {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func validationFailed(c *gin.Context, verr *validation.Error) {
	c.JSON(statusForKind(verr.Kind()), gin.H{
		"error":   verr.Error(),
		"kind":    verr.Kind().String(),
		"details": verr.Issues,
	})
}

func statusForKind(k validation.Kind) int {
	switch k {
	case validation.AttachmentNotFound:
		return http.StatusNotFound
	case validation.AttachmentTooLarge:
		return http.StatusRequestEntityTooLarge
	case validation.UnsupportedAttachmentType:
		return http.StatusUnsupportedMediaType
	case validation.MissingField,
		validation.EmptyField,
		validation.FieldTooLong,
		validation.NoRecipients,
		validation.InvalidAddress,
		validation.AttachmentUnreadable,
		validation.InvalidField:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusUnprocessableEntity
	}
}
