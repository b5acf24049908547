package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-signing-32-chars"

func createTestTokenService(t *testing.T) TokenService {
	t.Helper()
	service, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", testSecret)
	require.NoError(t, err)
	return service
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		issuer      string
		audience    string
		secretKey   string
		expectError bool
	}{
		{name: "valid configuration", issuer: "test-issuer", audience: "test-audience", secretKey: testSecret},
		{name: "missing secret key", issuer: "test-issuer", audience: "test-audience", secretKey: "", expectError: true},
		{name: "empty issuer and audience", secretKey: testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(time.Minute, tt.issuer, tt.audience, tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, service)
			}
		})
	}
}

func TestValidateToken(t *testing.T) {
	service := createTestTokenService(t)
	ownerID := uuid.New()

	token, err := service.GenerateOwnerToken(ownerID)
	require.NoError(t, err)
	assert.Contains(t, token, "eyJ")

	otherIssuer, err := NewTokenService(15*time.Minute, "other-issuer", "test-audience", testSecret)
	require.NoError(t, err)
	foreignToken, err := otherIssuer.GenerateOwnerToken(ownerID)
	require.NoError(t, err)

	otherSecret, err := NewTokenService(15*time.Minute, "test-issuer", "test-audience", "another-secret-key-for-jwt-signing")
	require.NoError(t, err)
	forgedToken, err := otherSecret.GenerateOwnerToken(ownerID)
	require.NoError(t, err)

	tests := []struct {
		name        string
		token       string
		expectError error
	}{
		{name: "valid token", token: token},
		{name: "malformed token", token: "not-a-token", expectError: ErrTokenInvalid},
		{name: "empty token", token: "", expectError: ErrTokenInvalid},
		{name: "wrong issuer", token: foreignToken, expectError: ErrTokenInvalid},
		{name: "wrong secret", token: forgedToken, expectError: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateToken(tt.token)
			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ownerID, claims.OwnerID)
			assert.NotEmpty(t, claims.TokenID)
			assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	service := createTestTokenService(t)

	claims := jwt.MapClaims{
		"sub": uuid.NewString(),
		"iat": time.Now().Add(-2 * time.Hour).Unix(),
		"exp": time.Now().Add(-time.Hour).Unix(),
		"iss": "test-issuer",
		"aud": "test-audience",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_NonUUIDSubject(t *testing.T) {
	service := createTestTokenService(t)

	claims := jwt.MapClaims{
		"sub": "42",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "test-issuer",
		"aud": "test-audience",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
