package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-plan-api/internal/middleware"
	"github.com/noah-isme/smart-plan-api/internal/models"
)

// claimsFromContext returns the caller the JWT middleware authenticated, or
// nil on public routes such as shared plan links.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
