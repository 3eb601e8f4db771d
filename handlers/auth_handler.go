package handlers

import (
	"net/http"

	"bluffquiz/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type HostLoginRequest struct {
	HostCode string `json:"host_code" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req HostLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.authService.Login(req.HostCode)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid host code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Verify is mounted behind the host gate, so reaching it means the
// credential checked out.
func (h *AuthHandler) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "host_id": c.GetString("host_id")})
}
