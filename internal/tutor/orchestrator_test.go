package tutor

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmentor/mathmentor-backend/internal/config"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

type orchestratorFixture struct {
	sessions     *fakeSessionRepo
	messages     *fakeMessageRepo
	progressions *fakeProgressionRepo
	provider     *fakeProvider
	orchestrator *Orchestrator
}

func newOrchestratorFixture(script ...scriptStep) *orchestratorFixture {
	log := testLogger()
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	progressions := newFakeProgressionRepo()
	provider := &fakeProvider{script: script}
	progressionService := NewProgressionService(progressions, log)

	return &orchestratorFixture{
		sessions:     sessions,
		messages:     messages,
		progressions: progressions,
		provider:     provider,
		orchestrator: NewOrchestrator(
			sessions,
			messages,
			progressionService,
			NewDispatcher(sessions, progressionService, log),
			provider,
			config.OpenAIConfig{Model: "gpt-4o", Temperature: 0.7, TimeoutSeconds: 60},
			log,
		),
	}
}

func TestRunTurn_PlainReply(t *testing.T) {
	f := newOrchestratorFixture(scriptStep{resp: textResponse("A derivative measures change.")})
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "calculus")

	result, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "what is a derivative?",
	})

	require.NoError(t, err)
	assert.Equal(t, "A derivative measures change.", result.Reply)
	assert.Equal(t, messageID(session.SessionID, 4), result.MessageID)
	assert.Equal(t, "calculus", result.TopicID)

	history, _ := f.messages.ListBySession(context.Background(), session.SessionID)
	require.Len(t, history, 4)
	assert.Equal(t, "user", history[2].Role)
	assert.Equal(t, 3, history[2].Sequence)
	assert.Equal(t, "assistant", history[3].Role)
	assert.Equal(t, 4, history[3].Sequence)

	stored := f.sessions.sessions[session.SessionID]
	assert.Equal(t, 4, stored.MessageCount)
}

func TestRunTurn_LastMessagePreviewIsUserInput(t *testing.T) {
	f := newOrchestratorFixture(scriptStep{resp: textResponse("Sure, a limit describes the value a function approaches as its input approaches a point.")})
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "calculus")

	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "  what is a limit?  ",
	})

	require.NoError(t, err)

	// The session preview echoes the trimmed user input, not the reply
	stored := f.sessions.sessions[session.SessionID]
	require.True(t, stored.LastMessage.Valid)
	assert.Equal(t, "what is a limit?", stored.LastMessage.String)
}

func TestRunTurn_LongUserInputPreviewTruncated(t *testing.T) {
	f := newOrchestratorFixture(scriptStep{resp: textResponse("ok")})
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "calculus")

	long := strings.Repeat("a", 80)
	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   long,
	})

	require.NoError(t, err)

	stored := f.sessions.sessions[session.SessionID]
	assert.Equal(t, long[:50]+"...", stored.LastMessage.String)

	// The full input is still stored in the transcript
	history, _ := f.messages.ListBySession(context.Background(), session.SessionID)
	require.Len(t, history, 4)
	assert.Equal(t, long, history[2].Content)
}

func TestRunTurn_EmptyMessage(t *testing.T) {
	f := newOrchestratorFixture()
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "")

	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "   ",
	})

	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, f.provider.requests)
}

func TestRunTurn_UnknownSession(t *testing.T) {
	f := newOrchestratorFixture()
	user := newTestUser("en")

	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: "chat_missing",
		Message:   "hello",
	})

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRunTurn_ForeignSessionForbidden(t *testing.T) {
	f := newOrchestratorFixture()
	owner := newTestUser("en")
	intruder := newTestUser("en")
	session := seedSession(f.sessions, f.messages, owner.ID, "")

	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      intruder,
		SessionID: session.SessionID,
		Message:   "hello",
	})

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRunTurn_ModelFailureRollsBackUserMessage(t *testing.T) {
	f := newOrchestratorFixture(scriptStep{err: assert.AnError})
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "algebra")

	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "help",
	})

	assert.ErrorIs(t, err, ErrModelUpstream)

	// The failed turn leaves no trace
	history, _ := f.messages.ListBySession(context.Background(), session.SessionID)
	assert.Len(t, history, 2)
	assert.Equal(t, 2, f.sessions.sessions[session.SessionID].MessageCount)
}

func TestRunTurn_SetTopicScenario(t *testing.T) {
	f := newOrchestratorFixture(
		scriptStep{resp: toolResponse("set_current_topic", `{"topic_id":"algebra"}`)},
		scriptStep{resp: textResponse("Great, let's start with algebra. What do you already know?")},
	)
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "")

	result, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "I want to learn algebra",
	})

	require.NoError(t, err)
	assert.Equal(t, "algebra", result.TopicID)
	assert.Equal(t, "set_current_topic", result.ToolApplied)
	assert.Contains(t, result.Reply, "algebra")

	// First call offers the topic-detection toolset, second call none
	require.Len(t, f.provider.requests, 2)
	assert.NotEmpty(t, f.provider.requests[0].Tools)
	require.NotNil(t, f.provider.requests[0].ToolChoice)
	assert.Equal(t, "auto", f.provider.requests[0].ToolChoice.Type)
	assert.Empty(t, f.provider.requests[1].Tools)
	assert.Nil(t, f.provider.requests[1].ToolChoice)

	// Second call includes the tool exchange
	second := f.provider.requests[1].Messages
	var sawToolResult bool
	for _, m := range second {
		if m.Role == "tool" && strings.Contains(m.Content, "Algebra") {
			sawToolResult = true
		}
	}
	assert.True(t, sawToolResult)

	assert.Equal(t, "algebra", f.sessions.sessions[session.SessionID].TopicID.String)
	assert.Equal(t, 4, f.sessions.sessions[session.SessionID].MessageCount)
}

func TestRunTurn_ProgressionToolsetWhenTopicSet(t *testing.T) {
	f := newOrchestratorFixture(scriptStep{resp: textResponse("ok")})
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "algebra")

	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "continue",
	})

	require.NoError(t, err)
	require.Len(t, f.provider.requests, 1)

	var names []string
	for _, tool := range f.provider.requests[0].Tools {
		names = append(names, tool.Function.Name)
	}
	assert.Contains(t, names, "update_user_progression")
	assert.Contains(t, names, "suggest_new_topic_session")
	assert.NotContains(t, names, "set_current_topic")
}

func TestRunTurn_SuggestionShortCircuit(t *testing.T) {
	f := newOrchestratorFixture(
		scriptStep{resp: toolResponse("suggest_new_topic_session", `{"suggested_topic_id":"calculus"}`)},
	)
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "algebra")

	result, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "actually I want to learn calculus",
	})

	require.NoError(t, err)
	assert.True(t, result.NewSession)
	assert.Contains(t, result.Reply, "/new-session?topic=calculus")
	assert.Empty(t, result.MessageID)

	// The triggering user message is discarded and the session untouched
	history, _ := f.messages.ListBySession(context.Background(), session.SessionID)
	assert.Len(t, history, 2)
	assert.Equal(t, 2, f.sessions.sessions[session.SessionID].MessageCount)
	require.Len(t, f.provider.requests, 1)
}

func TestRunTurn_DegradedReplyWhenFollowUpFails(t *testing.T) {
	f := newOrchestratorFixture(
		scriptStep{resp: toolResponse("update_user_progression", `{"topic_id":"algebra","progress":80}`)},
		scriptStep{err: assert.AnError},
	)
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "algebra")

	result, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "I solved all the exercises",
	})

	// The recorded progress is kept and acknowledged with the canned reply
	require.NoError(t, err)
	assert.Contains(t, result.Reply, "recorded")

	record := f.progressions.records[progressionKey{user.ID, "algebra"}]
	assert.Equal(t, 80, record.Progress)

	history, _ := f.messages.ListBySession(context.Background(), session.SessionID)
	assert.Len(t, history, 4)
}

func TestRunTurn_EmptyModelContentUsesFallback(t *testing.T) {
	f := newOrchestratorFixture(scriptStep{resp: textResponse("")})
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "algebra")

	result, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "hmm",
	})

	require.NoError(t, err)
	assert.Contains(t, result.Reply, "rephrase")
}

func TestRunTurn_StaleSessionRollsBackBothMessages(t *testing.T) {
	f := newOrchestratorFixture(scriptStep{resp: textResponse("reply")})
	user := newTestUser("en")
	session := seedSession(f.sessions, f.messages, user.ID, "algebra")

	// Drive the race deterministically: the wrapper bumps the stored count
	// right after the orchestrator reads the session
	f.orchestrator.sessions = &racingSessionRepo{inner: f.sessions}

	_, err := f.orchestrator.RunTurn(context.Background(), TurnRequest{
		User:      user,
		SessionID: session.SessionID,
		Message:   "hello",
	})

	assert.ErrorIs(t, err, repository.ErrStaleSession)

	history, _ := f.messages.ListBySession(context.Background(), session.SessionID)
	assert.Len(t, history, 2)
}

// racingSessionRepo bumps the stored message count after the orchestrator
// reads the session, forcing the finalize CAS to observe a stale count
type racingSessionRepo struct {
	inner *fakeSessionRepo
}

func (r *racingSessionRepo) Create(ctx context.Context, s *repository.ChatSession) error {
	return r.inner.Create(ctx, s)
}

func (r *racingSessionRepo) Get(ctx context.Context, sessionID string) (*repository.ChatSession, error) {
	session, err := r.inner.Get(ctx, sessionID)
	if session != nil {
		r.inner.sessions[sessionID].MessageCount += 2
	}
	return session, err
}

func (r *racingSessionRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*repository.ChatSession, error) {
	return r.inner.ListByUser(ctx, userID)
}

func (r *racingSessionRepo) SetTopic(ctx context.Context, sessionID, topicID string) error {
	return r.inner.SetTopic(ctx, sessionID, topicID)
}

func (r *racingSessionRepo) UpdateTitle(ctx context.Context, sessionID, title string) error {
	return r.inner.UpdateTitle(ctx, sessionID, title)
}

func (r *racingSessionRepo) FinalizeTurn(ctx context.Context, sessionID string, expectedCount, newCount int, lastMessage string) error {
	return r.inner.FinalizeTurn(ctx, sessionID, expectedCount, newCount, lastMessage)
}

func (r *racingSessionRepo) Delete(ctx context.Context, sessionID string) error {
	return r.inner.Delete(ctx, sessionID)
}

func TestPreviewOf_TruncatesLongInput(t *testing.T) {
	long := strings.Repeat("x", 80)
	preview := previewOf(long)
	assert.Equal(t, 53, len([]rune(preview)))
	assert.True(t, strings.HasSuffix(preview, "..."))

	short := "short question"
	assert.Equal(t, short, previewOf(short))
}
