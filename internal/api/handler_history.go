package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mailservice/internal/repository"
	"mailservice/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

type HistoryHandler struct {
	mailService *service.MailService
}

func NewHistoryHandler(mailService *service.MailService) *HistoryHandler {
	return &HistoryHandler{mailService: mailService}
}

// List handles GET /history?limit=N
func (h *HistoryHandler) List(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "limit must be an integer between 1 and 1000"})
			return
		}
		limit = n
	}

	entries, err := h.mailService.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Get handles GET /history/:id
func (h *HistoryHandler) Get(c *gin.Context) {
	entry, err := h.mailService.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Email not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history entry"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
