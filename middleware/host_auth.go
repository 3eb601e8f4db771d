package middleware

import (
	"net/http"
	"strings"

	"bluffquiz/services"

	"github.com/gin-gonic/gin"
)

// HostAuth guards host-only endpoints. It accepts either the raw shared
// code in X-Host-Code (what the web client sends) or a bearer token from
// /host/login. The rejection is the same either way so a failed credential
// learns nothing about which rooms exist.
func HostAuth(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if code := c.GetHeader("X-Host-Code"); code != "" {
			if authService.VerifyHostCode(code) {
				c.Set("host_id", services.HostID)
				c.Next()
				return
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid host credentials"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			hostID, err := authService.ValidateToken(strings.TrimPrefix(authHeader, "Bearer "))
			if err == nil {
				c.Set("host_id", hostID)
				c.Next()
				return
			}
		}

		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid host credentials"})
		c.Abort()
	}
}
