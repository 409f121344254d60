package tutor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
)

// SessionService manages chat session lifecycle: creation with the seeded
// system and welcome messages, listing, transcript retrieval, and deletion
type SessionService struct {
	sessions repository.SessionRepository
	messages repository.MessageRepository
	log      *logrus.Logger
}

// NewSessionService creates a new session service
func NewSessionService(sessions repository.SessionRepository, messages repository.MessageRepository, log *logrus.Logger) *SessionService {
	return &SessionService{sessions: sessions, messages: messages, log: log}
}

// CreateSession opens a new chat session for the user. Every new session is
// seeded with the base system message at sequence 1 and a localized welcome
// at sequence 2, so message_count starts at 2. topicID may be "" to start
// without a topic; a non-empty topicID must be a catalog id.
func (s *SessionService) CreateSession(ctx context.Context, user *models.User, topicID string) (*repository.ChatSession, error) {
	if topicID != "" && !topics.IsValid(topicID) {
		return nil, fmt.Errorf("unknown topic: %s", topicID)
	}

	prefs := user.GetPreferences()
	now := time.Now()

	session := &repository.ChatSession{
		SessionID:    "chat_" + uuid.New().String(),
		UserID:       user.ID,
		Title:        "Chat " + now.Format("20060102-15:04"),
		MessageCount: 2,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if topicID != "" {
		session.TopicID.Valid = true
		session.TopicID.String = topicID
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	seeds := []repository.ChatMessage{
		{
			MessageID: messageID(session.SessionID, 1),
			SessionID: session.SessionID,
			Role:      "system",
			Content:   buildBaseSystemMessage(prefs),
			Sequence:  1,
			CreatedAt: now,
		},
		{
			MessageID: messageID(session.SessionID, 2),
			SessionID: session.SessionID,
			Role:      "assistant",
			Content:   topics.WelcomeMessage(prefs.Language),
			Sequence:  2,
			CreatedAt: now,
		},
	}
	for _, seed := range seeds {
		if err := s.messages.Create(ctx, seed); err != nil {
			// Drop the half-created session so creation is all or nothing
			if delErr := s.sessions.Delete(ctx, session.SessionID); delErr != nil {
				s.log.WithError(delErr).WithField("session_id", session.SessionID).Error("failed to clean up session after seed failure")
			}
			return nil, fmt.Errorf("failed to seed session messages: %w", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"user_id":    user.ID,
		"topic":      topicID,
	}).Info("chat session created")

	return session, nil
}

// ListSessions returns the user's sessions, most recently active first
func (s *SessionService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*repository.ChatSession, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []*repository.ChatSession{}
	}
	return sessions, nil
}

// GetSession loads one session, enforcing ownership
func (s *SessionService) GetSession(ctx context.Context, userID uuid.UUID, sessionID string) (*repository.ChatSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, ErrForbidden
	}
	return session, nil
}

// GetHistory returns a session's transcript in sequence order
func (s *SessionService) GetHistory(ctx context.Context, userID uuid.UUID, sessionID string) ([]repository.ChatMessage, error) {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}

	history, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	if history == nil {
		history = []repository.ChatMessage{}
	}
	return history, nil
}

// UpdateTitle renames a session
func (s *SessionService) UpdateTitle(ctx context.Context, userID uuid.UUID, sessionID, title string) error {
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}
	return s.sessions.UpdateTitle(ctx, sessionID, title)
}

// DeleteSession removes a session and its transcript
func (s *SessionService) DeleteSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if _, err := s.GetSession(ctx, userID, sessionID); err != nil {
		return err
	}

	if err := s.messages.DeleteBySession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"user_id":    userID,
	}).Info("chat session deleted")

	return nil
}
