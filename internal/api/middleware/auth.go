package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mathmentor/mathmentor-backend/internal/auth"
	"github.com/mathmentor/mathmentor-backend/internal/models"
)

// AuthRequired validates the bearer token (or the access_token cookie for
// web clients) and stores the authenticated user in the request locals.
func AuthRequired(authService *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.ExtractTokenFromBearer(c.Get("Authorization"))
		if token == "" {
			token = c.Cookies("access_token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		user, claims, err := authService.ValidateAccessToken(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		storeUserContext(c, user)
		c.Locals("auth_session_id", claims.SessionID)

		return c.Next()
	}
}

// storeUserContext stores user information in the fiber context. The
// user_id local doubles as the per-user rate limiter key.
func storeUserContext(c *fiber.Ctx, user *models.User) {
	c.Locals("user", user)
	c.Locals("user_id", user.ID.String())

	c.Locals("user_context", &models.UserContext{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	})
}

// GetUser retrieves the authenticated user from the fiber context
func GetUser(c *fiber.Ctx) *models.User {
	if u := c.Locals("user"); u != nil {
		if user, ok := u.(*models.User); ok {
			return user
		}
	}
	return nil
}

// GetUserContext retrieves the user context from the fiber context
func GetUserContext(c *fiber.Ctx) *models.UserContext {
	if ctx := c.Locals("user_context"); ctx != nil {
		if userContext, ok := ctx.(*models.UserContext); ok {
			return userContext
		}
	}
	return nil
}
