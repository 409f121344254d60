package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

// SessionRepository implements repository.SessionRepository using PostgreSQL
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

// Create creates a new chat session
func (r *SessionRepository) Create(ctx context.Context, session *repository.ChatSession) error {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO chat_sessions (session_id, user_id, title, topic_id, last_message, message_count, created_at, updated_at)
		VALUES (:session_id, :user_id, :title, :topic_id, :last_message, :message_count, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, session)
	return err
}

// Get retrieves a session by ID
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*repository.ChatSession, error) {
	var session repository.ChatSession
	query := `
		SELECT session_id, user_id, title, topic_id, last_message, message_count, created_at, updated_at
		FROM chat_sessions
		WHERE session_id = $1
	`

	err := r.db.GetContext(ctx, &session, query, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

// ListByUser retrieves a user's sessions, most recently active first
func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*repository.ChatSession, error) {
	var sessions []*repository.ChatSession
	query := `
		SELECT session_id, user_id, title, topic_id, last_message, message_count, created_at, updated_at
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	err := r.db.SelectContext(ctx, &sessions, query, userID)
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// SetTopic fixes the session's topic
func (r *SessionRepository) SetTopic(ctx context.Context, sessionID, topicID string) error {
	query := "UPDATE chat_sessions SET topic_id = $2, updated_at = $3 WHERE session_id = $1"
	_, err := r.db.ExecContext(ctx, query, sessionID, topicID, time.Now())
	return err
}

// UpdateTitle updates the session's display title
func (r *SessionRepository) UpdateTitle(ctx context.Context, sessionID, title string) error {
	query := "UPDATE chat_sessions SET title = $2, updated_at = $3 WHERE session_id = $1"
	_, err := r.db.ExecContext(ctx, query, sessionID, title, time.Now())
	return err
}

// FinalizeTurn advances the message counter with a compare-and-swap so two
// concurrent turns on the same session cannot both commit colliding sequences.
func (r *SessionRepository) FinalizeTurn(ctx context.Context, sessionID string, expectedCount, newCount int, lastMessage string) error {
	query := `
		UPDATE chat_sessions
		SET message_count = $3, last_message = $4, updated_at = $5
		WHERE session_id = $1 AND message_count = $2
	`

	result, err := r.db.ExecContext(ctx, query, sessionID, expectedCount, newCount, lastMessage, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrStaleSession
	}

	return nil
}

// Delete deletes a session; messages cascade via the foreign key
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	query := "DELETE FROM chat_sessions WHERE session_id = $1"
	_, err := r.db.ExecContext(ctx, query, sessionID)
	return err
}
