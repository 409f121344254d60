package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mathmentor/mathmentor-backend/internal/api/middleware"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
	"github.com/mathmentor/mathmentor-backend/internal/tutor"
)

// ProgressionHandler serves the user's per-topic mastery records
type ProgressionHandler struct {
	progressions *tutor.ProgressionService
}

// NewProgressionHandler creates a new progression handler
func NewProgressionHandler(progressions *tutor.ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{progressions: progressions}
}

// GetProgressions handles GET /progressions
func (h *ProgressionHandler) GetProgressions(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	records, err := h.progressions.GetAllProgressions(c.Context(), user.ID)
	if err != nil {
		return tutorError(c, err)
	}

	return c.JSON(fiber.Map{
		"progressions": records,
	})
}

// GetProgression handles GET /progressions/:topic_id
func (h *ProgressionHandler) GetProgression(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	topicID := c.Params("topic_id")
	if !topics.IsValid(topicID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown topic: " + topicID,
		})
	}

	record, err := h.progressions.GetTopicProgression(c.Context(), user.ID, topicID)
	if err != nil {
		return tutorError(c, err)
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No progression recorded for this topic",
		})
	}

	return c.JSON(record)
}
