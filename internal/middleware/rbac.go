package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/response"
)

// RequireRoles lets the request through when the caller holds one of roles.
func RequireRoles(roles ...models.OperatorRole) gin.HandlerFunc {
	allowed := make(map[models.OperatorRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentOperator(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentOperator returns the claims JWT stored on the request, or nil.
func CurrentOperator(c *gin.Context) *models.OperatorClaims {
	value, _ := c.Get(ContextUserKey)
	claims, _ := value.(*models.OperatorClaims)
	return claims
}
