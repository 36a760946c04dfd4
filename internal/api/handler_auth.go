package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailservice/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Token handles POST /token with form fields username and password.
func (h *AuthHandler) Token(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "username and password are required"})
		return
	}

	tok, err := h.authService.Login(c.Request.Context(), username, password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		unauthorized(c, "Incorrect username or password")
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, tok)
}
