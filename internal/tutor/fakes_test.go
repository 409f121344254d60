package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/providers"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeSessionRepo struct {
	sessions     map[string]*repository.ChatSession
	failSetTopic bool
	failFinalize bool
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*repository.ChatSession)}
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *repository.ChatSession) error {
	copied := *session
	r.sessions[session.SessionID] = &copied
	return nil
}

func (r *fakeSessionRepo) Get(ctx context.Context, sessionID string) (*repository.ChatSession, error) {
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*repository.ChatSession, error) {
	var out []*repository.ChatSession
	for _, s := range r.sessions {
		if s.UserID == userID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *fakeSessionRepo) SetTopic(ctx context.Context, sessionID, topicID string) error {
	if r.failSetTopic {
		return errors.New("set topic failed")
	}
	session, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("no such session")
	}
	session.TopicID.Valid = true
	session.TopicID.String = topicID
	return nil
}

func (r *fakeSessionRepo) UpdateTitle(ctx context.Context, sessionID, title string) error {
	session, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("no such session")
	}
	session.Title = title
	return nil
}

func (r *fakeSessionRepo) FinalizeTurn(ctx context.Context, sessionID string, expectedCount, newCount int, lastMessage string) error {
	if r.failFinalize {
		return errors.New("finalize failed")
	}
	session, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("no such session")
	}
	if session.MessageCount != expectedCount {
		return repository.ErrStaleSession
	}
	session.MessageCount = newCount
	session.LastMessage.Valid = true
	session.LastMessage.String = lastMessage
	session.UpdatedAt = time.Now()
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, sessionID string) error {
	delete(r.sessions, sessionID)
	return nil
}

type fakeMessageRepo struct {
	messages   map[string]repository.ChatMessage
	deleted    []string
	failAtSeq  int // sequence whose Create fails, 0 disables
	failDelete bool
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]repository.ChatMessage)}
}

func (r *fakeMessageRepo) Create(ctx context.Context, message repository.ChatMessage) error {
	if r.failAtSeq != 0 && message.Sequence == r.failAtSeq {
		return errors.New("create message failed")
	}
	if _, exists := r.messages[message.MessageID]; exists {
		return fmt.Errorf("duplicate message id %s", message.MessageID)
	}
	r.messages[message.MessageID] = message
	return nil
}

func (r *fakeMessageRepo) ListBySession(ctx context.Context, sessionID string) ([]repository.ChatMessage, error) {
	var out []repository.ChatMessage
	for _, m := range r.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *fakeMessageRepo) Delete(ctx context.Context, messageID string) error {
	if r.failDelete {
		return errors.New("delete failed")
	}
	delete(r.messages, messageID)
	r.deleted = append(r.deleted, messageID)
	return nil
}

func (r *fakeMessageRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	for id, m := range r.messages {
		if m.SessionID == sessionID {
			delete(r.messages, id)
		}
	}
	return nil
}

type progressionKey struct {
	userID  uuid.UUID
	topicID string
}

type fakeProgressionRepo struct {
	records    map[progressionKey]models.TopicProgression
	failUpsert bool
	upserts    int
}

func newFakeProgressionRepo() *fakeProgressionRepo {
	return &fakeProgressionRepo{records: make(map[progressionKey]models.TopicProgression)}
}

func (r *fakeProgressionRepo) Get(ctx context.Context, userID uuid.UUID, topicID string) (*models.TopicProgression, error) {
	record, ok := r.records[progressionKey{userID, topicID}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *fakeProgressionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.TopicProgression, error) {
	var out []models.TopicProgression
	for key, record := range r.records {
		if key.userID == userID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}

func (r *fakeProgressionRepo) Upsert(ctx context.Context, record models.TopicProgression) error {
	if r.failUpsert {
		return errors.New("upsert failed")
	}
	r.upserts++
	r.records[progressionKey{record.UserID, record.TopicID}] = record
	return nil
}

// fakeProvider replays a script of responses or errors, one per Complete call
type fakeProvider struct {
	script   []scriptStep
	requests []providers.CompletionRequest
}

type scriptStep struct {
	resp *providers.CompletionResponse
	err  error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req providers.CompletionRequest) (*providers.CompletionResponse, error) {
	p.requests = append(p.requests, req)
	if len(p.script) == 0 {
		return nil, errors.New("fake provider script exhausted")
	}
	step := p.script[0]
	p.script = p.script[1:]
	return step.resp, step.err
}

func textResponse(content string) *providers.CompletionResponse {
	return &providers.CompletionResponse{
		Choices: []providers.Choice{
			{Message: providers.Message{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
	}
}

func toolResponse(name, arguments string) *providers.CompletionResponse {
	return &providers.CompletionResponse{
		Choices: []providers.Choice{
			{
				Message: providers.Message{
					Role: "assistant",
					ToolCalls: []providers.ToolCall{
						{ID: "call_1", Type: "function", Function: providers.FunctionCall{Name: name, Arguments: arguments}},
					},
				},
				FinishReason: "tool_calls",
			},
		},
	}
}

func newTestUser(lang string, mathTopics ...string) *models.User {
	prefs := models.JSONB{"language": lang}
	if len(mathTopics) > 0 {
		topicsIface := make([]interface{}, len(mathTopics))
		for i, t := range mathTopics {
			topicsIface[i] = t
		}
		prefs["math_topics"] = topicsIface
	}
	return &models.User{
		ID:          uuid.New(),
		Email:       "learner@example.com",
		Username:    "learner",
		Preferences: prefs,
		IsActive:    true,
		Role:        models.RoleUser,
		CreatedAt:   time.Now(),
	}
}

func seedSession(repo *fakeSessionRepo, messages *fakeMessageRepo, userID uuid.UUID, topicID string) *repository.ChatSession {
	session := &repository.ChatSession{
		SessionID:    "chat_" + uuid.New().String(),
		UserID:       userID,
		Title:        "Chat test",
		MessageCount: 2,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if topicID != "" {
		session.TopicID.Valid = true
		session.TopicID.String = topicID
	}
	repo.sessions[session.SessionID] = session

	messages.messages[messageID(session.SessionID, 1)] = repository.ChatMessage{
		MessageID: messageID(session.SessionID, 1),
		SessionID: session.SessionID,
		Role:      "system",
		Content:   "base instructions",
		Sequence:  1,
	}
	messages.messages[messageID(session.SessionID, 2)] = repository.ChatMessage{
		MessageID: messageID(session.SessionID, 2),
		SessionID: session.SessionID,
		Role:      "assistant",
		Content:   "welcome",
		Sequence:  2,
	}
	return session
}
