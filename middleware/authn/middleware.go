package authn

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pulsefeed/authkit/services/logging"
	"github.com/pulsefeed/authkit/services/tokens"
	"go.uber.org/zap"
)

const (
	AccountIDKey = "_authn_account_id"
	ClaimsKey    = "_authn_claims"
	RolesKey     = "_authn_roles"
)

const (
	CodeMissingToken = "MISSING_TOKEN"
	CodeInvalidToken = "INVALID_TOKEN"
)

// DefaultPublicPaths are matched case-insensitively as substrings of the
// request path; matching requests skip authentication entirely.
var DefaultPublicPaths = []string{
	"login",
	"register",
	"verify-otp",
	"forgot-password",
	"verify-forgot-password-otp",
	"reset-password",
	"refresh",
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Authenticate verifies the Bearer access token on every non-public request
// and attaches the resulting identity to the request context. Pass explicit
// publicPaths to override DefaultPublicPaths.
func Authenticate(codec *tokens.Service, logger *logging.Service, publicPaths ...string) echo.MiddlewareFunc {
	allowed := publicPaths
	if len(allowed) == 0 {
		allowed = DefaultPublicPaths
	}
	lowered := make([]string, len(allowed))
	for i, p := range allowed {
		lowered[i] = strings.ToLower(p)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if logger != nil {
						logger.Error("panic during request authentication",
							zap.Any("panic", r),
							zap.String("path", c.Request().URL.Path))
					}
					err = c.JSON(http.StatusInternalServerError, errorBody{
						Code:    "INTERNAL_ERROR",
						Message: "internal server error",
					})
				}
			}()

			if isPublicPath(c.Request().URL.Path, lowered) {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Code:    CodeMissingToken,
					Message: "authorization header required",
				})
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Code:    CodeInvalidToken,
					Message: "invalid authorization header format",
				})
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Code:    CodeMissingToken,
					Message: "access token required",
				})
			}

			claims, verifyErr := codec.Verify(tokenString)
			if verifyErr != nil {
				return c.JSON(http.StatusUnauthorized, errorBody{
					Code:    CodeInvalidToken,
					Message: verifyMessage(verifyErr),
				})
			}

			c.Set(AccountIDKey, claims.AccountID)
			c.Set(ClaimsKey, claims)
			c.Set(RolesKey, claims.Roles)

			return next(c)
		}
	}
}

func isPublicPath(path string, allowed []string) bool {
	lowered := strings.ToLower(path)
	for _, p := range allowed {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

func verifyMessage(err error) string {
	switch {
	case errors.Is(err, tokens.ErrExpiredToken):
		return "access token has expired"
	case errors.Is(err, tokens.ErrMalformedToken):
		return "malformed access token"
	case errors.Is(err, tokens.ErrInvalidSignature):
		return "invalid access token signature"
	default:
		return "invalid access token"
	}
}

// GetAccountID returns the authenticated account id, or 0 on a public or
// unauthenticated request.
func GetAccountID(c echo.Context) uint {
	if accountID, ok := c.Get(AccountIDKey).(uint); ok {
		return accountID
	}
	return 0
}

func GetClaims(c echo.Context) *tokens.Claims {
	if claims, ok := c.Get(ClaimsKey).(*tokens.Claims); ok {
		return claims
	}
	return nil
}

func GetRoles(c echo.Context) []string {
	if roles, ok := c.Get(RolesKey).([]string); ok {
		return roles
	}
	return nil
}
