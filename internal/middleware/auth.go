package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
)

// ActorHeader names the moderator performing an admin action.
const ActorHeader = "X-Admin-Actor"

const actorLocal = "adminActor"

// NewAdminAuth guards admin routes with a static bearer token. An empty
// token disables the admin API entirely.
func NewAdminAuth(token string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if token == "" {
			return ErrorResponse(c, fiber.StatusServiceUnavailable, "ADMIN_DISABLED", "Admin API is not configured")
		}

		auth := c.Get(fiber.HeaderAuthorization)
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return ErrorResponse(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid admin token")
		}

		actor := ValidateActor(c.Get(ActorHeader))
		if actor == "" {
			actor = "admin"
		}
		c.Locals(actorLocal, actor)
		return c.Next()
	}
}

// Actor returns the admin actor recorded by NewAdminAuth.
func Actor(c fiber.Ctx) string {
	if actor, ok := c.Locals(actorLocal).(string); ok {
		return actor
	}
	return "admin"
}
