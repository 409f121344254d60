package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

// ProgressionRepository implements repository.ProgressionRepository using PostgreSQL
type ProgressionRepository struct {
	db *sqlx.DB
}

// NewProgressionRepository creates a new PostgreSQL progression repository
func NewProgressionRepository(db *sqlx.DB) repository.ProgressionRepository {
	return &ProgressionRepository{db: db}
}

// Get retrieves a user's progression record for one topic
func (r *ProgressionRepository) Get(ctx context.Context, userID uuid.UUID, topicID string) (*models.TopicProgression, error) {
	var record models.TopicProgression
	query := `
		SELECT user_id, topic_id, progress, revision, last_study_time, notes
		FROM topic_progressions
		WHERE user_id = $1 AND topic_id = $2
	`

	err := r.db.GetContext(ctx, &record, query, userID, topicID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

// ListByUser retrieves all of a user's progression records in topic order
func (r *ProgressionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TopicProgression, error) {
	var records []models.TopicProgression
	query := `
		SELECT user_id, topic_id, progress, revision, last_study_time, notes
		FROM topic_progressions
		WHERE user_id = $1
		ORDER BY topic_id ASC
	`

	err := r.db.SelectContext(ctx, &records, query, userID)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Upsert replaces the record for (user, topic) in place. The keyed upsert
// means concurrent updates to different topics for one user never clobber
// each other, unlike a read-whole-mapping/write-whole-mapping cycle.
func (r *ProgressionRepository) Upsert(ctx context.Context, record models.TopicProgression) error {
	if record.LastStudyTime.IsZero() {
		record.LastStudyTime = time.Now()
	}

	query := `
		INSERT INTO topic_progressions (user_id, topic_id, progress, revision, last_study_time, notes)
		VALUES (:user_id, :topic_id, :progress, :revision, :last_study_time, :notes)
		ON CONFLICT (user_id, topic_id) DO UPDATE
		SET progress = EXCLUDED.progress,
		    revision = EXCLUDED.revision,
		    last_study_time = EXCLUDED.last_study_time,
		    notes = EXCLUDED.notes
	`

	_, err := r.db.NamedExecContext(ctx, query, record)
	return err
}
