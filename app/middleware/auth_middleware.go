// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/campaign-dispatcher/app/dto"
	"github.com/amirphl/campaign-dispatcher/app/services"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	// OwnerIDLocal is the fiber local holding the resolved owner uuid
	OwnerIDLocal = "owner_id"

	// UserIDHeader names the owner when bearer tokens are disabled
	UserIDHeader = "X-User-ID"
)

// AuthMiddleware resolves the calling owner for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware.
// A nil token service disables bearer tokens and trusts the X-User-ID header instead.
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate validates the bearer token and stores its subject as the owner
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	if m.tokenService == nil {
		return m.trustHeader()
	}

	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.ValidateToken(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals(OwnerIDLocal, claims.OwnerID)
		c.Locals("token_id", claims.TokenID)
		c.Locals("token_claims", claims)
		storeRequestID(c)

		return c.Next()
	}
}

// trustHeader reads the owner from X-User-ID. A missing header is not an error here;
// handlers decide whether an owner is required.
func (m *AuthMiddleware) trustHeader() fiber.Handler {
	return func(c fiber.Ctx) error {
		if raw := strings.TrimSpace(c.Get(UserIDHeader)); raw != "" {
			ownerID, err := uuid.Parse(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(dto.APIResponse{
					Success: false,
					Message: "X-User-ID must be a valid uuid",
					Error:   dto.ErrorDetail{Code: "INVALID_USER_ID"},
				})
			}
			c.Locals(OwnerIDLocal, ownerID)
		}
		storeRequestID(c)
		return c.Next()
	}
}

// GetOwnerIDFromContext extracts the owner id resolved by Authenticate
func GetOwnerIDFromContext(c fiber.Ctx) (uuid.UUID, bool) {
	ownerID, ok := c.Locals(OwnerIDLocal).(uuid.UUID)
	return ownerID, ok && ownerID != uuid.Nil
}

// GetTokenClaimsFromContext extracts token claims from the request context
func GetTokenClaimsFromContext(c fiber.Ctx) (*services.TokenClaims, bool) {
	claims, ok := c.Locals("token_claims").(*services.TokenClaims)
	return claims, ok
}

func storeRequestID(c fiber.Ctx) {
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		c.Locals("request_id", requestID)
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error:   dto.ErrorDetail{Code: code},
	})
}
