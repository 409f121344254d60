package tutor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

// ProgressionService reads and writes per-topic mastery records
type ProgressionService struct {
	repo repository.ProgressionRepository
	log  *logrus.Logger
}

// NewProgressionService creates a new progression service
func NewProgressionService(repo repository.ProgressionRepository, log *logrus.Logger) *ProgressionService {
	return &ProgressionService{repo: repo, log: log}
}

// GetTopicProgression returns the record for one topic, or nil if absent
func (s *ProgressionService) GetTopicProgression(ctx context.Context, userID uuid.UUID, topicID string) (*models.TopicProgression, error) {
	return s.repo.Get(ctx, userID, topicID)
}

// GetAllProgressions returns all of a user's records, empty if none
func (s *ProgressionService) GetAllProgressions(ctx context.Context, userID uuid.UUID) ([]models.TopicProgression, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.TopicProgression{}
	}
	return records, nil
}

// UpsertProgression replaces the record for (user, topic). Progress is
// clamped to 0..100 and revision is derived from it, keeping the
// revision == (progress >= 100) invariant at the single write site.
func (s *ProgressionService) UpsertProgression(ctx context.Context, userID uuid.UUID, topicID string, progress int, notes string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	record := models.TopicProgression{
		UserID:        userID,
		TopicID:       topicID,
		Progress:      progress,
		Revision:      progress >= 100,
		LastStudyTime: time.Now(),
		Notes:         notes,
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		// Reported to the caller, never fatal for the turn
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"topic":   topicID,
		}).Error("failed to upsert progression")
		return err
	}

	return nil
}
