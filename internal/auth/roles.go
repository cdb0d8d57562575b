package auth

import (
	"net/http"
	"slices"

	"github.com/gofiber/fiber/v2"
)

// HasRole reports whether the viewer carries role.
func (v Viewer) HasRole(role string) bool {
	return slices.Contains(v.Roles, role)
}

// RequireRole ensures the viewer carries one of the allowed roles.
// It is a pass-through while verification is disabled.
func (m *ViewerMiddleware) RequireRole(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.Enabled() {
			return c.Next()
		}
		viewer := ViewerFromContext(c.UserContext())
		if !viewer.Authenticated {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		for _, role := range allowed {
			if viewer.HasRole(role) {
				return c.Next()
			}
		}
		return fiber.NewError(http.StatusForbidden, "insufficient role")
	}
}
