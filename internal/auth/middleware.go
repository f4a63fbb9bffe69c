package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"storage-sync/internal/api"
	"storage-sync/internal/config"

	"github.com/gin-gonic/gin"
)

// Error codes returned by APIKeyMiddleware
const (
	ErrCodeMissingAPIKey = "MISSING_API_KEY"
	ErrCodeInvalidAPIKey = "INVALID_API_KEY"
)

// APIKeyMiddleware validates the API key from request headers. An empty
// configured key rejects every request.
func APIKeyMiddleware(cfg config.ExternalConfig) gin.HandlerFunc {
	expected := []byte(cfg.APIKey)

	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "ApiKey ") {
				apiKey = strings.TrimPrefix(authHeader, "ApiKey ")
			}
		}

		if apiKey == "" {
			api.AbortWithError(c, http.StatusUnauthorized, ErrCodeMissingAPIKey,
				"API key is required. Provide X-API-Key header or Authorization: ApiKey <key>")
			return
		}

		if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(apiKey), expected) != 1 {
			api.AbortWithError(c, http.StatusUnauthorized, ErrCodeInvalidAPIKey, "Invalid API key provided")
			return
		}

		c.Next()
	}
}
