package routes

import (
	"errors"
	"strings"

	"github.com/busify/busify/pkg/identity"
	"github.com/gofiber/fiber/v2"
)

const identityLocal = "identity"

// Authenticated requires a valid bearer token, and when roles are given one of them.
// Admins pass every role check.
func Authenticated(provider identity.Provider, roles ...identity.Role) fiber.Handler {
	if len(roles) > 0 {
		roles = append(roles, identity.RoleAdmin)
	}

	return func(c *fiber.Ctx) error {
		token, found := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !found || token == "" {
			return sendErrorMessage(c, fiber.StatusUnauthorized, "Authorization header is required")
		}

		user, err := provider.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthenticated) {
				return sendErrorMessage(c, fiber.StatusUnauthorized, "Invalid auth token")
			}
			return sendError(c, err)
		}

		if len(roles) > 0 && !user.HasRole(roles...) {
			return sendErrorMessage(c, fiber.StatusForbidden, "Role "+string(user.Role)+" is not permitted")
		}

		c.Locals(identityLocal, user)

		return c.Next()
	}
}

// RequireRole narrows an already authenticated group
func RequireRole(roles ...identity.Role) fiber.Handler {
	roles = append(roles, identity.RoleAdmin)

	return func(c *fiber.Ctx) error {
		if user, ok := currentIdentity(c); !ok || !user.HasRole(roles...) {
			return sendErrorMessage(c, fiber.StatusForbidden, "Role is not permitted")
		}

		return c.Next()
	}
}

func currentIdentity(c *fiber.Ctx) (identity.Identity, bool) {
	user, ok := c.Locals(identityLocal).(identity.Identity)
	return user, ok
}
