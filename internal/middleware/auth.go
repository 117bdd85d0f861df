package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/auth"
	"github.com/suteetoe/shopdash/pkg/jwtutil"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(tokenString string) (*jwtutil.UserClaims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// IdentityFromClaims builds the session identity from validated claims
func IdentityFromClaims(claims *jwtutil.UserClaims) auth.Identity {
	return auth.Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		TenantID: claims.TenantID,
		IsAdmin:  claims.IsAdmin,
	}
}

// JWTAuth validates the bearer token and stores the caller's identity
func JWTAuth(validator TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Missing authorization header")
				prometheus.RecordAuthError("missing_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization header"})
			}

			tokenString, ok := BearerToken(authHeader)
			if !ok {
				log.Warn("Invalid authorization header format")
				prometheus.RecordAuthError("malformed_header")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid or expired token", zap.Error(err))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			identity := IdentityFromClaims(claims)
			auth.SetEcho(c, identity)

			ctxLogger := log.With(
				zap.Uint("user_id", identity.UserID),
				zap.Uint("tenant_id", identity.TenantID))
			c.Set("logger", ctxLogger)
			c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), ctxLogger)))

			return next(c)
		}
	}
}

// RequireAdmin rejects authenticated callers that are not admins
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, ok := auth.FromEcho(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}
		if !identity.IsAdmin {
			logger.FromEcho(c).Warn("Admin route denied",
				zap.Uint("user_id", identity.UserID),
				zap.String("path", c.Path()))
			prometheus.RecordAuthError("admin_required")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
		}
		return next(c)
	}
}

// GetTenantIDFromContext retrieves the caller's tenant id
func GetTenantIDFromContext(c echo.Context) (uint, bool) {
	identity, ok := auth.FromEcho(c)
	if !ok || identity.TenantID == 0 {
		return 0, false
	}
	return identity.TenantID, true
}

// ParseTenantID parses a positive tenant id from a path or header value
func ParseTenantID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
