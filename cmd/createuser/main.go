package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/mathmentor/mathmentor-backend/internal/auth"
	"github.com/mathmentor/mathmentor-backend/internal/config"
	"github.com/mathmentor/mathmentor-backend/internal/database"
	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository/postgres"
	"github.com/sirupsen/logrus"
)

// Bootstrap tool for creating local accounts without going through the API.
func main() {
	var (
		email    = flag.String("email", "", "User email")
		username = flag.String("username", "", "Username")
		password = flag.String("password", "", "User password")
		language = flag.String("language", "en", "Preferred language (en, zh, ms)")
		admin    = flag.Bool("admin", false, "Grant the admin role")
	)
	flag.Parse()

	if *email == "" || *username == "" || *password == "" {
		log.Fatal("email, username and password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	logger := logrus.New()
	userRepo := postgres.NewUserRepository(db.DB)
	sessionRepo := postgres.NewUserSessionRepository(db.DB)
	authService := auth.NewService(userRepo, sessionRepo, cfg.JWT.Secret, cfg.JWT.Issuer, logger)

	preferences := models.JSONB{"language": *language}
	user, err := authService.SignUp(context.Background(), *email, *username, *password, preferences)
	if err != nil {
		log.Fatal("Failed to create user:", err)
	}

	if *admin {
		if _, err := db.ExecContext(context.Background(),
			"UPDATE users SET role = $2 WHERE id = $1", user.ID, models.RoleAdmin); err != nil {
			log.Fatal("Failed to grant admin role:", err)
		}
		user.Role = models.RoleAdmin
	}

	fmt.Printf("Created user:\n")
	fmt.Printf("   Email:    %s\n", user.Email)
	fmt.Printf("   Username: %s\n", user.Username)
	fmt.Printf("   Role:     %s\n", user.Role)
	fmt.Printf("   ID:       %s\n", user.ID)
}
