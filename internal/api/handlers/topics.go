package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mathmentor/mathmentor-backend/internal/api/middleware"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
)

// TopicResponse represents one catalog topic
type TopicResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetTopics handles GET /topics/:lang?, returning the catalog localized to
// the path language, the ?lang= query, or the caller's preference
func GetTopics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Params("lang")
		if lang == "" {
			lang = c.Query("lang")
		}
		if lang == "" {
			if user := middleware.GetUser(c); user != nil {
				lang = user.GetPreferences().Language
			}
		}

		ids := topics.Available()
		resp := make([]TopicResponse, 0, len(ids))
		for _, id := range ids {
			if id == topics.TopicOther {
				// Model-facing sentinel, not a learnable topic
				continue
			}
			resp = append(resp, TopicResponse{ID: id, Name: topics.Name(id, lang)})
		}

		return c.JSON(fiber.Map{
			"topics": resp,
		})
	}
}
