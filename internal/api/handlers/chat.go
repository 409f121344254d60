package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/api/middleware"
	"github.com/mathmentor/mathmentor-backend/internal/audit"
	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/tutor"
)

// ChatRequest represents one user turn
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatHandler serves conversation turns over HTTP and WebSocket
type ChatHandler struct {
	orchestrator *tutor.Orchestrator
	auditService *audit.Service
	log          *logrus.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(orchestrator *tutor.Orchestrator, auditService *audit.Service, log *logrus.Logger) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, auditService: auditService, log: log}
}

// Chat handles POST /chat, running one conversation turn
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	user := middleware.GetUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.SessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "session_id is required",
		})
	}

	result, err := h.orchestrator.RunTurn(c.Context(), tutor.TurnRequest{
		User:      user,
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		return tutorError(c, err)
	}

	h.auditTurn(c.Context(), user, c.IP(), c.Get("User-Agent"), result)

	return c.JSON(result)
}

// wsTurnResponse is one WebSocket reply frame
type wsTurnResponse struct {
	Type  string            `json:"type"` // "reply" or "error"
	Turn  *tutor.TurnResult `json:"turn,omitempty"`
	Error string            `json:"error,omitempty"`
}

// StreamChat serves turns over a WebSocket connection. Each inbound JSON
// frame is a ChatRequest; each outbound frame is a wsTurnResponse. The
// authenticated user is placed in locals by the upgrade middleware.
func (h *ChatHandler) StreamChat(conn *websocket.Conn) {
	user, ok := conn.Locals("user").(*models.User)
	if !ok || user == nil {
		conn.WriteJSON(wsTurnResponse{Type: "error", Error: "Authentication required"})
		conn.Close()
		return
	}

	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			// Closed or malformed stream; drop the connection
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		result, err := h.orchestrator.RunTurn(ctx, tutor.TurnRequest{
			User:      user,
			SessionID: req.SessionID,
			Message:   req.Message,
		})
		cancel()

		if err != nil {
			if writeErr := conn.WriteJSON(wsTurnResponse{Type: "error", Error: wsErrorMessage(err)}); writeErr != nil {
				return
			}
			continue
		}

		h.auditTurn(context.Background(), user, conn.RemoteAddr().String(), "", result)

		if err := conn.WriteJSON(wsTurnResponse{Type: "reply", Turn: result}); err != nil {
			return
		}
	}
}

func (h *ChatHandler) auditTurn(ctx context.Context, user *models.User, ip, userAgent string, result *tutor.TurnResult) {
	event := audit.NewEvent(audit.EventChatTurn, &user.ID, ip, userAgent)
	event.Resource = "chat"
	event.Result = "success"
	event.Metadata["session_id"] = result.SessionID
	if result.ToolApplied != "" {
		event.Metadata["tool"] = result.ToolApplied
	}
	h.auditService.Log(ctx, event)
}

func wsErrorMessage(err error) string {
	switch {
	case errors.Is(err, tutor.ErrEmptyMessage):
		return "Message cannot be empty"
	case errors.Is(err, tutor.ErrSessionNotFound):
		return "Session not found"
	case errors.Is(err, tutor.ErrForbidden):
		return "You do not have access to this session"
	case errors.Is(err, tutor.ErrModelUpstream):
		return "The tutor is temporarily unavailable. Please try again."
	default:
		return "Internal server error"
	}
}
