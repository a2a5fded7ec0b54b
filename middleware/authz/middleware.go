package authz

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pulsefeed/authkit/middleware/authn"
	"github.com/pulsefeed/authkit/services/logging"
	"github.com/pulsefeed/authkit/services/permissions"
	"go.uber.org/zap"
)

const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Gate evaluates declared role/permission requirements against the
// authenticated identity. Routes register requirements as data through the
// Require* factories; the evaluation logic lives here in one place.
type Gate struct {
	permissions *permissions.Service
	logger      *logging.Service
}

func NewGate(permissionService *permissions.Service, logger *logging.Service) *Gate {
	return &Gate{
		permissions: permissionService,
		logger:      logger,
	}
}

// RequireAnyPermission passes when the account holds at least one of the
// listed permissions.
func (g *Gate) RequireAnyPermission(required ...string) echo.MiddlewareFunc {
	return g.permissionGate(required, func(set permissions.Set) bool {
		return set.HasAny(required...)
	})
}

// RequireAllPermissions passes only when the account holds every listed
// permission.
func (g *Gate) RequireAllPermissions(required ...string) echo.MiddlewareFunc {
	return g.permissionGate(required, func(set permissions.Set) bool {
		return set.HasAll(required...)
	})
}

// RequireAnyRole passes when the verified claims carry at least one of the
// listed roles. Roles come from the access token, not the resolver, so a
// role change takes effect on the next token issue.
func (g *Gate) RequireAnyRole(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID := authn.GetAccountID(c)
			if accountID == 0 {
				return unauthenticated(c)
			}

			held := authn.GetRoles(c)
			for _, want := range required {
				for _, have := range held {
					if want == have {
						return next(c)
					}
				}
			}

			g.logDenial(accountID, "role", required)
			return forbidden(c)
		}
	}
}

func (g *Gate) permissionGate(required []string, allow func(permissions.Set) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			accountID := authn.GetAccountID(c)
			if accountID == 0 {
				return unauthenticated(c)
			}

			set, err := g.permissions.Resolve(accountID)
			if err != nil {
				if g.logger != nil {
					g.logger.Error("failed to resolve permissions for authorization",
						zap.Uint("account_id", accountID),
						zap.Error(err))
				}
				return c.JSON(http.StatusInternalServerError, errorBody{
					Code:    "INTERNAL_ERROR",
					Message: "authorization check failed",
				})
			}

			if !allow(set) {
				g.logDenial(accountID, "permission", required)
				return forbidden(c)
			}

			return next(c)
		}
	}
}

func (g *Gate) logDenial(accountID uint, kind string, required []string) {
	if g.logger != nil {
		g.logger.Warn("authorization denied",
			zap.Uint("account_id", accountID),
			zap.String("requirement_kind", kind),
			zap.Strings("required", required))
	}
}

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{
		Code:    CodeUnauthenticated,
		Message: "authentication required",
	})
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, errorBody{
		Code:    CodeForbidden,
		Message: "insufficient permissions",
	})
}
