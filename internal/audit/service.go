package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

// EventType represents the type of audit event
type EventType string

const (
	EventLogin          EventType = "user.login"
	EventLogout         EventType = "user.logout"
	EventSignup         EventType = "user.signup"
	EventPasswordChange EventType = "user.password_change"
	EventChatTurn       EventType = "chat.turn"
	EventSessionCreate  EventType = "session.create"
	EventSessionDelete  EventType = "session.delete"
)

// Event represents an audit event
type Event struct {
	ID        uuid.UUID              `json:"id"`
	EventType EventType              `json:"event_type"`
	UserID    *uuid.UUID             `json:"user_id,omitempty"`
	IPAddress string                 `json:"ip_address,omitempty"`
	UserAgent string                 `json:"user_agent,omitempty"`
	Resource  string                 `json:"resource,omitempty"`
	Result    string                 `json:"result,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Service persists audit events
type Service struct {
	repo repository.AuditLogRepository
	log  *logrus.Logger
}

// NewService creates a new audit service
func NewService(repo repository.AuditLogRepository, log *logrus.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Log records an audit event. Audit failures are logged, never propagated,
// so a broken audit trail cannot fail the operation being audited.
func (s *Service) Log(ctx context.Context, event *Event) {
	record := &models.AuditLog{
		ID:           event.ID,
		UserID:       event.UserID,
		Action:       string(event.EventType),
		ResourceType: event.Resource,
		IPAddress:    event.IPAddress,
		UserAgent:    event.UserAgent,
		Metadata:     models.JSONB(event.Metadata),
		Status:       event.Result,
		CreatedAt:    event.CreatedAt,
	}

	if err := s.repo.Log(ctx, record); err != nil {
		s.log.WithError(err).WithField("event", event.EventType).Warn("failed to write audit log")
	}
}

// GetUserEvents retrieves audit events for a specific user
func (s *Service) GetUserEvents(ctx context.Context, userID uuid.UUID, limit int) ([]*Event, error) {
	logs, err := s.repo.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	events := make([]*Event, len(logs))
	for i, log := range logs {
		events[i] = &Event{
			ID:        log.ID,
			EventType: EventType(log.Action),
			UserID:    log.UserID,
			IPAddress: log.IPAddress,
			UserAgent: log.UserAgent,
			Resource:  log.ResourceType,
			Result:    log.Status,
			Metadata:  map[string]interface{}(log.Metadata),
			CreatedAt: log.CreatedAt,
		}
	}

	return events, nil
}

// NewEvent creates an event with the common fields filled in
func NewEvent(eventType EventType, userID *uuid.UUID, ipAddress, userAgent string) *Event {
	return &Event{
		ID:        uuid.New(),
		EventType: eventType,
		UserID:    userID,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]interface{}),
	}
}
