package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/mathmentor/mathmentor-backend/internal/repository"
	"github.com/mathmentor/mathmentor-backend/internal/tutor"
)

// tutorError maps service errors to HTTP responses. Unknown errors become
// opaque 500s so internal details never reach the client.
func tutorError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, tutor.ErrEmptyMessage):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message cannot be empty",
		})
	case errors.Is(err, tutor.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Session not found",
		})
	case errors.Is(err, tutor.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You do not have access to this session",
		})
	case errors.Is(err, tutor.ErrModelUpstream):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "The tutor is temporarily unavailable. Please try again.",
		})
	case errors.Is(err, repository.ErrStaleSession):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Another message is being processed for this session. Please retry.",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
