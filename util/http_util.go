package util

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	sentinel_errors "github.com/hearthguard/sentinel/errors"
	logger "github.com/hearthguard/sentinel/logging"
)

func RespondWithError(c *gin.Context, code int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method))
	c.JSON(code, gin.H{"error": message})
}

// GetPrincipalIDFromContext resolves the calling principal, set either by
// auth middleware or the X-Principal-ID header.
func GetPrincipalIDFromContext(c *gin.Context) (string, error) {
	if principalID, exists := c.Get("principalID"); exists {
		return principalID.(string), nil
	}
	if header := c.GetHeader("X-Principal-ID"); header != "" {
		return header, nil
	}
	return "", sentinel_errors.ErrUnauthorized
}
