package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicd/clinicd/internal/platform/apperror"
)

// Clinic staff roles. An admin passes every role check.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return apperror.Forbidden("", "required role: %s", strings.Join(roles, " or "))
		}
	}
}

// HasRole reports whether the role list contains the given role or admin.
func HasRole(userRoles []string, role string) bool {
	for _, has := range userRoles {
		if has == role || has == RoleAdmin {
			return true
		}
	}
	return false
}
