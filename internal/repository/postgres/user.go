package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, username, password_hash, preferences, is_active, role, created_at, updated_at)
		VALUES (:id, :email, :username, :password_hash, :preferences, :is_active, :role, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, user)
	return err
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, password_hash, preferences, is_active, role, created_at, updated_at, last_login_at
		FROM users
		WHERE id = $1
	`

	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, password_hash, preferences, is_active, role, created_at, updated_at, last_login_at
		FROM users
		WHERE email = $1
	`

	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, err
	}

	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, email, username, password_hash, preferences, is_active, role, created_at, updated_at, last_login_at
		FROM users
		WHERE username = $1
	`

	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateLastLogin records a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	query := "UPDATE users SET last_login_at = $2 WHERE id = $1"
	_, err := r.db.ExecContext(ctx, query, userID, time.Now())
	return err
}

// UpdatePassword updates a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	query := "UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1"
	_, err := r.db.ExecContext(ctx, query, userID, passwordHash, time.Now())
	return err
}

// UpdatePreferences replaces the user's preferences document
func (r *UserRepository) UpdatePreferences(ctx context.Context, userID uuid.UUID, preferences models.JSONB) error {
	query := "UPDATE users SET preferences = $2, updated_at = $3 WHERE id = $1"
	_, err := r.db.ExecContext(ctx, query, userID, preferences, time.Now())
	return err
}
