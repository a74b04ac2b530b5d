package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/workshop-orchestrator/internal/models"
	appErrors "github.com/noah-isme/workshop-orchestrator/pkg/errors"
)

func signTestToken(t *testing.T, method jwt.SigningMethod, secret string, claims models.OperatorClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "s3cret", Issuer: "workshop-orchestrator"})
	valid := models.OperatorClaims{
		Email: "coord@example.org",
		Role:  models.RoleCoordinator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "workshop-orchestrator",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	claims, err := svc.ValidateToken(signTestToken(t, jwt.SigningMethodHS256, "s3cret", valid))
	require.NoError(t, err)
	assert.Equal(t, "coord@example.org", claims.Actor())
	assert.Equal(t, models.RoleCoordinator, claims.Role)

	cases := map[string]string{
		"wrong secret": signTestToken(t, jwt.SigningMethodHS256, "other", valid),
		"wrong method": signTestToken(t, jwt.SigningMethodHS384, "s3cret", valid),
		"garbage":      "not-a-token",
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	cases["expired"] = signTestToken(t, jwt.SigningMethodHS256, "s3cret", expired)

	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	cases["wrong issuer"] = signTestToken(t, jwt.SigningMethodHS256, "s3cret", wrongIssuer)

	noRole := valid
	noRole.Role = ""
	cases["no role"] = signTestToken(t, jwt.SigningMethodHS256, "s3cret", noRole)

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized), "got %v", err)
		})
	}
}
