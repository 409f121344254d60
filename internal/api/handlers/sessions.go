package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mathmentor/mathmentor-backend/internal/api/middleware"
	"github.com/mathmentor/mathmentor-backend/internal/audit"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
	"github.com/mathmentor/mathmentor-backend/internal/tutor"
)

// CreateSessionRequest represents a session creation request
type CreateSessionRequest struct {
	TopicID string `json:"topic_id"`
}

// UpdateSessionRequest represents a session rename request
type UpdateSessionRequest struct {
	Title string `json:"title"`
}

// SessionResponse represents a chat session in API responses
type SessionResponse struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	TopicID      string `json:"topic_id,omitempty"`
	LastMessage  string `json:"last_message,omitempty"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toSessionResponse(s *repository.ChatSession) SessionResponse {
	resp := SessionResponse{
		SessionID:    s.SessionID,
		Title:        s.Title,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    s.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if s.TopicID.Valid {
		resp.TopicID = s.TopicID.String
	}
	if s.LastMessage.Valid {
		resp.LastMessage = s.LastMessage.String
	}
	return resp
}

// SessionHandler serves chat session lifecycle endpoints
type SessionHandler struct {
	sessions     *tutor.SessionService
	auditService *audit.Service
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *tutor.SessionService, auditService *audit.Service) *SessionHandler {
	return &SessionHandler{sessions: sessions, auditService: auditService}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	if req.TopicID != "" && !topics.IsValid(req.TopicID) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown topic: " + req.TopicID,
		})
	}

	session, err := h.sessions.CreateSession(c.Context(), user, req.TopicID)
	if err != nil {
		return tutorError(c, err)
	}

	event := audit.NewEvent(audit.EventSessionCreate, &user.ID, c.IP(), c.Get("User-Agent"))
	event.Resource = "session"
	event.Result = "success"
	event.Metadata["session_id"] = session.SessionID
	h.auditService.Log(c.Context(), event)

	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(session))
}

// GetSessions handles GET /sessions
func (h *SessionHandler) GetSessions(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	sessions, err := h.sessions.ListSessions(c.Context(), user.ID)
	if err != nil {
		return tutorError(c, err)
	}

	resp := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		resp[i] = toSessionResponse(s)
	}

	return c.JSON(fiber.Map{
		"sessions": resp,
	})
}

// GetSession handles GET /sessions/:id
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	session, err := h.sessions.GetSession(c.Context(), user.ID, c.Params("id"))
	if err != nil {
		return tutorError(c, err)
	}

	return c.JSON(toSessionResponse(session))
}

// GetSessionMessages handles GET /sessions/:id/messages
func (h *SessionHandler) GetSessionMessages(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	history, err := h.sessions.GetHistory(c.Context(), user.ID, c.Params("id"))
	if err != nil {
		return tutorError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages": history,
	})
}

// UpdateSession handles PUT /sessions/:id
func (h *SessionHandler) UpdateSession(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req UpdateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title is required",
		})
	}

	if err := h.sessions.UpdateTitle(c.Context(), user.ID, c.Params("id"), req.Title); err != nil {
		return tutorError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Session updated",
	})
}

// DeleteSession handles DELETE /sessions/:id
func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	sessionID := c.Params("id")
	if err := h.sessions.DeleteSession(c.Context(), user.ID, sessionID); err != nil {
		return tutorError(c, err)
	}

	event := audit.NewEvent(audit.EventSessionDelete, &user.ID, c.IP(), c.Get("User-Agent"))
	event.Resource = "session"
	event.Result = "success"
	event.Metadata["session_id"] = sessionID
	h.auditService.Log(c.Context(), event)

	return c.JSON(fiber.Map{
		"message": "Session deleted",
	})
}
