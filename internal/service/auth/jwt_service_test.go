package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/service/auth"
)

const testSecret = "test-secret-that-is-at-least-32-chars-long"

func newTestService(t *testing.T) auth.JWTService {
	t.Helper()

	svc, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	return svc
}

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := auth.NewJWTService(config.AuthConfig{JWTSecret: "too-short"})
	assert.Error(t, err)
}

func TestValidateToken_ValidToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	userID := uuid.New()

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"uid": userID.String(),
		"sub": userID.String(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.False(t, claims.ExpiresAt.IsZero())
}

func TestValidateToken_WrongSecret(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	token := signToken(t, jwt.SigningMethodHS256, "a-different-secret-also-32-chars-long!!", jwt.MapClaims{
		"uid": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateToken_ExpiredToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	// Expired well past the clock skew allowance.
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"uid": uuid.New().String(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestValidateToken_NotYetValid(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"uid": uuid.New().String(),
		"nbf": time.Now().Add(time.Hour).Unix(),
		"exp": time.Now().Add(2 * time.Hour).Unix(),
	})

	_, err := svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrTokenNotYetValid)
}

func TestValidateToken_WithinClockSkew(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	userID := uuid.New()

	// Expired one minute ago, inside the two-minute skew allowance.
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"uid": userID.String(),
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestValidateToken_RejectsUnexpectedSigningMethod(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	token := signToken(t, jwt.SigningMethodHS512, testSecret, jwt.MapClaims{
		"uid": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateToken_MissingUserID(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub": "someone",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := svc.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateToken_MalformedToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)

	_, err := svc.ValidateToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
