package middleware

import (
	"strings"

	"cardapio/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthRequired rejects requests without a valid "Authorization: Bearer <jwt>" header and
// stores the token's user in the request locals.
func AuthRequired(authService *services.AuthService, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := authService.ValidateToken(parts[1])
		if err != nil {
			logger.Debug("JWT validation failed", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		c.Locals("user_id", claims["user_id"])
		c.Locals("username", claims["username"])
		return c.Next()
	}
}

// FirstUserKey is the request local AdminOrFirstUser sets on an anonymous request it let
// through because no admin exists yet.
const FirstUserKey = "first_user"

// AdminOrFirstUser lets anonymous requests through only while there are no users, so the
// first admin can be created. Every other request must pass AuthRequired.
func AdminOrFirstUser(authService *services.AuthService, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	required := AuthRequired(authService, logger)
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			exists, err := authService.HasUsers(c.UserContext())
			if err != nil {
				logger.Error("failed to check for existing users", zap.Error(err))
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Could not check registration",
					"error":   err.Error(),
				})
			}
			if !exists {
				c.Locals(FirstUserKey, true)
				return c.Next()
			}
		}
		return required(c)
	}
}
