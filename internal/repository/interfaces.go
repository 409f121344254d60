package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mathmentor/mathmentor-backend/internal/models"
)

// ErrStaleSession is returned when a conditional session update observed a
// message_count other than the one read at turn start.
var ErrStaleSession = errors.New("session message count changed concurrently")

// ChatSession represents one ongoing conversation
type ChatSession struct {
	SessionID    string         `db:"session_id" json:"session_id"`
	UserID       uuid.UUID      `db:"user_id" json:"user_id"`
	Title        string         `db:"title" json:"title"`
	TopicID      sql.NullString `db:"topic_id" json:"-"`
	LastMessage  sql.NullString `db:"last_message" json:"-"`
	MessageCount int            `db:"message_count" json:"message_count"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ChatMessage is one turn unit in a session's transcript.
// MessageID is always "{session_id}_{sequence}".
type ChatMessage struct {
	MessageID string    `db:"message_id" json:"message_id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	Sequence  int       `db:"sequence" json:"sequence"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SessionRepository defines chat session storage operations
type SessionRepository interface {
	Create(ctx context.Context, session *ChatSession) error
	// Get returns (nil, nil) when the session does not exist
	Get(ctx context.Context, sessionID string) (*ChatSession, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*ChatSession, error)
	SetTopic(ctx context.Context, sessionID, topicID string) error
	UpdateTitle(ctx context.Context, sessionID, title string) error
	// FinalizeTurn advances message_count from expectedCount to newCount and
	// refreshes updated_at and last_message. It returns ErrStaleSession when
	// message_count no longer equals expectedCount.
	FinalizeTurn(ctx context.Context, sessionID string, expectedCount, newCount int, lastMessage string) error
	Delete(ctx context.Context, sessionID string) error
}

// MessageRepository defines transcript storage operations
type MessageRepository interface {
	Create(ctx context.Context, message ChatMessage) error
	ListBySession(ctx context.Context, sessionID string) ([]ChatMessage, error)
	Delete(ctx context.Context, messageID string) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

// ProgressionRepository defines per-topic mastery storage operations
type ProgressionRepository interface {
	// Get returns (nil, nil) when no record exists for the topic
	Get(ctx context.Context, userID uuid.UUID, topicID string) (*models.TopicProgression, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TopicProgression, error)
	// Upsert replaces the record for (user, topic) in place, keyed per topic
	Upsert(ctx context.Context, record models.TopicProgression) error
}

// UserRepository defines user storage operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdatePreferences(ctx context.Context, userID uuid.UUID, preferences models.JSONB) error
}

// UserSessionRepository defines auth session storage operations
type UserSessionRepository interface {
	Create(ctx context.Context, session *models.UserSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserSession, error)
	Update(ctx context.Context, session *models.UserSession) error
	DeleteExpired(ctx context.Context) error
}

// AuditLogRepository defines audit log storage operations
type AuditLogRepository interface {
	Log(ctx context.Context, log *models.AuditLog) error
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error)
}
