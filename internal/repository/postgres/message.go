package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new PostgreSQL message repository
func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a transcript message. The unique (session_id, sequence)
// constraint rejects duplicate sequence assignment at the storage layer.
func (r *MessageRepository) Create(ctx context.Context, message repository.ChatMessage) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO chat_messages (message_id, session_id, role, content, sequence, created_at)
		VALUES (:message_id, :session_id, :role, :content, :sequence, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, message)
	return err
}

// ListBySession retrieves a session's transcript ordered by sequence
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]repository.ChatMessage, error) {
	var messages []repository.ChatMessage
	query := `
		SELECT message_id, session_id, role, content, sequence, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY sequence ASC
	`

	err := r.db.SelectContext(ctx, &messages, query, sessionID)
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// Delete removes a single message, used as the compensating rollback action
func (r *MessageRepository) Delete(ctx context.Context, messageID string) error {
	query := "DELETE FROM chat_messages WHERE message_id = $1"
	_, err := r.db.ExecContext(ctx, query, messageID)
	return err
}

// DeleteBySession removes a session's full transcript
func (r *MessageRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	query := "DELETE FROM chat_messages WHERE session_id = $1"
	_, err := r.db.ExecContext(ctx, query, sessionID)
	return err
}
