package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hrd-training-api/internal/models"
)

func signTestToken(t *testing.T, secret string, claims models.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())

	signed := signTestToken(t, "test-secret", models.Claims{
		UserID: 42,
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())

	signed := signTestToken(t, "other-secret", models.Claims{UserID: 42, Role: models.RoleLearner})

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())

	signed := signTestToken(t, "test-secret", models.Claims{
		UserID: 42,
		Role:   models.RoleLearner,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestValidateTokenMissingSubject(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())

	signed := signTestToken(t, "test-secret", models.Claims{Role: models.RoleLearner})

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
}
