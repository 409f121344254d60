package main

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/api"
	"github.com/mathmentor/mathmentor-backend/internal/audit"
	"github.com/mathmentor/mathmentor-backend/internal/auth"
	"github.com/mathmentor/mathmentor-backend/internal/config"
	"github.com/mathmentor/mathmentor-backend/internal/database"
	"github.com/mathmentor/mathmentor-backend/internal/providers/openai"
	"github.com/mathmentor/mathmentor-backend/internal/repository/postgres"
	"github.com/mathmentor/mathmentor-backend/internal/tutor"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "change-me-in-production"
		log.Warn("using default JWT secret, set MATHMENTOR_JWT_SECRET in production")
	}
	if cfg.OpenAI.APIKey == "" {
		log.Warn("no OpenAI API key configured, set OPENAI_API_KEY")
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	// Repositories
	userRepo := postgres.NewUserRepository(db.DB)
	userSessionRepo := postgres.NewUserSessionRepository(db.DB)
	sessionRepo := postgres.NewSessionRepository(db.DB)
	messageRepo := postgres.NewMessageRepository(db.DB)
	progressionRepo := postgres.NewProgressionRepository(db.DB)
	auditLogRepo := postgres.NewAuditLogRepository(db.DB)

	// Services
	auditService := audit.NewService(auditLogRepo, log)
	authService := auth.NewService(userRepo, userSessionRepo, cfg.JWT.Secret, cfg.JWT.Issuer, log)
	provider, err := openai.NewProvider(cfg.OpenAI)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize model provider")
	}
	progressionService := tutor.NewProgressionService(progressionRepo, log)
	sessionService := tutor.NewSessionService(sessionRepo, messageRepo, log)
	dispatcher := tutor.NewDispatcher(sessionRepo, progressionService, log)
	orchestrator := tutor.NewOrchestrator(
		sessionRepo,
		messageRepo,
		progressionService,
		dispatcher,
		provider,
		cfg.OpenAI,
		log,
	)

	app := fiber.New(fiber.Config{
		AppName:      "MathMentor Backend",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     getOrigins(cfg),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))

	api.SetupRoutes(app, &api.Services{
		Auth:         authService,
		Audit:        auditService,
		Sessions:     sessionService,
		Progressions: progressionService,
		Orchestrator: orchestrator,
		Log:          log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.WithField("addr", addr).Info("MathMentor backend starting")
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("failed to start server")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}

func getOrigins(cfg *config.Config) string {
	if cfg.Server.CORSOrigins != "" {
		return cfg.Server.CORSOrigins
	}
	return "http://localhost:5173,http://localhost:3000"
}
