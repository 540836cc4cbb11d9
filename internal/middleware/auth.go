package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finlearn/finlearn-backend/internal/platform/logger"
)

// AuthMiddleware enforces the shared-secret X-API-Key header. An empty
// configured key disables the check entirely.
type AuthMiddleware struct {
	apiKey string
	log    *logger.Logger
}

func NewAuthMiddleware(apiKey string, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{apiKey: apiKey, log: log.With("middleware", "auth")}
}

func (am *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.apiKey == "" {
			c.Next()
			return
		}
		given := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(given), []byte(am.apiKey)) != 1 {
			am.log.Warn("rejected request with bad api key", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing api key"})
			return
		}
		c.Next()
	}
}
