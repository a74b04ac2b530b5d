package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
	"github.com/noah-isme/workshop-orchestrator/pkg/logger"
	"github.com/noah-isme/workshop-orchestrator/pkg/response"
)

// ContextUserKey is the gin context key storing the operator claims.
const ContextUserKey = "currentOperator"

// TokenValidator turns a raw bearer token into operator claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.OperatorClaims, error)
}

// JWT rejects requests without a valid operator bearer token and tags the
// request log with the caller.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(logger.OperatorKey, claims.Actor())
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return token, nil
}
