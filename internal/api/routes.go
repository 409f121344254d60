package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/api/handlers"
	"github.com/mathmentor/mathmentor-backend/internal/api/middleware"
	"github.com/mathmentor/mathmentor-backend/internal/audit"
	"github.com/mathmentor/mathmentor-backend/internal/auth"
	"github.com/mathmentor/mathmentor-backend/internal/tutor"
)

// Services bundles everything the routes need
type Services struct {
	Auth         *auth.Service
	Audit        *audit.Service
	Sessions     *tutor.SessionService
	Progressions *tutor.ProgressionService
	Orchestrator *tutor.Orchestrator
	Log          *logrus.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, svc *Services) {
	api := app.Group("/api/v1")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "mathmentor-backend",
		})
	})

	// Authentication endpoints
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", middleware.SignupRateLimit(), handlers.Signup(svc.Auth, svc.Audit))
	authGroup.Post("/login", middleware.AuthRateLimit(), handlers.Login(svc.Auth, svc.Audit))
	authGroup.Post("/refresh", handlers.RefreshToken(svc.Auth))
	authGroup.Post("/logout", middleware.AuthRequired(svc.Auth), handlers.Logout(svc.Auth, svc.Audit))

	// Everything below requires authentication
	protected := api.Group("", middleware.AuthRequired(svc.Auth))

	protected.Get("/auth/me", handlers.GetCurrentUser())
	protected.Put("/auth/password", handlers.ChangePassword(svc.Auth, svc.Audit))
	protected.Put("/auth/preferences", handlers.UpdatePreferences(svc.Auth))

	chatHandler := handlers.NewChatHandler(svc.Orchestrator, svc.Audit, svc.Log)
	protected.Post("/chat", middleware.ChatRateLimit(), chatHandler.Chat)

	sessionHandler := handlers.NewSessionHandler(svc.Sessions, svc.Audit)
	protected.Post("/sessions", sessionHandler.CreateSession)
	protected.Get("/sessions", sessionHandler.GetSessions)
	protected.Get("/sessions/:id", sessionHandler.GetSession)
	protected.Put("/sessions/:id", sessionHandler.UpdateSession)
	protected.Delete("/sessions/:id", sessionHandler.DeleteSession)
	protected.Get("/sessions/:id/messages", sessionHandler.GetSessionMessages)

	protected.Get("/topics/:lang?", handlers.GetTopics())

	progressionHandler := handlers.NewProgressionHandler(svc.Progressions)
	protected.Get("/progressions", progressionHandler.GetProgressions)
	protected.Get("/progressions/:topic_id", progressionHandler.GetProgression)

	// WebSocket chat. The upgrade middleware validates the token from the
	// query param or Authorization header and stores the user in locals.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			token = auth.ExtractTokenFromBearer(c.Get("Authorization"))
		}

		if token != "" {
			user, _, err := svc.Auth.ValidateAccessToken(c.Context(), token)
			if err == nil {
				c.Locals("user", user)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required for WebSocket",
		})
	})
	app.Get("/ws/chat", websocket.New(chatHandler.StreamChat))
}
