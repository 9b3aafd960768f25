package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/teamchat-service/internal/auth"
)

const (
	LocalUserID    = "user_id"
	LocalUserEmail = "user_email"
)

// RequireAuth verifies the bearer access token and stores the caller's
// identity in the request locals.
func RequireAuth(tokens *auth.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		claims, err := tokens.Verify(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalUserEmail, claims.Email)
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
