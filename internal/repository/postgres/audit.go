package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

// AuditLogRepository implements repository.AuditLogRepository using PostgreSQL
type AuditLogRepository struct {
	db *sqlx.DB
}

// NewAuditLogRepository creates a new PostgreSQL audit log repository
func NewAuditLogRepository(db *sqlx.DB) repository.AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Log inserts an audit log entry
func (r *AuditLogRepository) Log(ctx context.Context, log *models.AuditLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	if log.Metadata == nil {
		log.Metadata = make(models.JSONB)
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, ip_address, user_agent, metadata, status, created_at)
		VALUES (:id, :user_id, :action, :resource_type, :resource_id, :ip_address, :user_agent, :metadata, :status, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, log)
	return err
}

// GetByUserID retrieves recent audit entries for a user
func (r *AuditLogRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	var logs []*models.AuditLog
	query := `
		SELECT id, user_id, action, resource_type, resource_id, ip_address, user_agent, metadata, status, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &logs, query, userID, limit)
	if err != nil {
		return nil, err
	}

	return logs, nil
}
