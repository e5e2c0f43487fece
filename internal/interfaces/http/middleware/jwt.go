package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/infrastructure/auth"
	"github.com/storyvoice/backend/internal/infrastructure/logger"
	"github.com/storyvoice/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// Revocations is optional; when set revoked tokens and accounts are rejected
	Revocations auth.RevocationList
	// Logger for middleware logging
	Logger *zap.Logger
}

// JWTAuth authenticates the bearer token and stores the account for handlers.
// Revocation lookups fail open: an unreachable revocation store is logged and the
// request proceeds.
func JWTAuth(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			abortUnauthorized(c, log, auth.ErrMissingToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			abortUnauthorized(c, log, auth.ErrMissingToken, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, BearerPrefix)
		if tokenString == "" {
			abortUnauthorized(c, log, auth.ErrMissingToken, "Missing token")
			return
		}

		claims, err := cfg.JWTService.ValidateAccessToken(tokenString)
		if err != nil {
			abortUnauthorized(c, log, err, "Token validation failed")
			return
		}

		if err := auth.CheckRevoked(c.Request.Context(), cfg.Revocations, claims); err != nil {
			if errors.Is(err, auth.ErrTokenRevoked) {
				abortUnauthorized(c, log, err, "Token has been revoked")
				return
			}
			log.Error("Failed to check token revocation",
				zap.String("account_id", claims.AccountID),
				zap.Error(err))
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(logger.GinAccountIDKey, claims.AccountID)
		c.Request = c.Request.WithContext(logger.WithAccountID(c.Request.Context(), claims.AccountID))

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, log *zap.Logger, err error, message string) {
	log.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code := dto.ErrCodeUnauthorized
	text := "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, text = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, text = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidTokenType),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingAccountID),
		errors.Is(err, auth.ErrTokenNotYetValid):
		code, text = dto.ErrCodeTokenInvalid, "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, text, GetRequestID(c)))
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetAccountID returns the authenticated account, or uuid.Nil outside JWTAuth
func GetAccountID(c *gin.Context) uuid.UUID {
	claims := GetJWTClaims(c)
	if claims == nil {
		return uuid.Nil
	}
	id, err := claims.AccountUUID()
	if err != nil {
		return uuid.Nil
	}
	return id
}
