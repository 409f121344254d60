package tutor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/config"
	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/providers"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
)

const lastMessagePreviewLen = 50

// TurnRequest is one user turn against a session
type TurnRequest struct {
	User      *models.User
	SessionID string
	Message   string
}

// TurnResult is what the handler returns to the client after a turn
type TurnResult struct {
	SessionID   string `json:"session_id"`
	MessageID   string `json:"message_id"`
	Reply       string `json:"reply"`
	TopicID     string `json:"topic_id,omitempty"`
	NewSession  bool   `json:"new_session_suggested,omitempty"`
	ToolApplied string `json:"-"`
}

// Orchestrator runs the turn state machine: validate, persist the user
// message, assemble context, invoke the model, dispatch at most one tool
// call, optionally invoke the model again, persist the reply, and finalize
// the session counters. Failures after the user message is stored roll the
// stored rows back so a failed turn leaves no trace.
type Orchestrator struct {
	sessions     repository.SessionRepository
	messages     repository.MessageRepository
	progressions *ProgressionService
	dispatcher   *Dispatcher
	provider     providers.Provider
	cfg          config.OpenAIConfig
	log          *logrus.Logger
}

// NewOrchestrator creates a new turn orchestrator
func NewOrchestrator(
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	progressions *ProgressionService,
	dispatcher *Dispatcher,
	provider providers.Provider,
	cfg config.OpenAIConfig,
	log *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:     sessions,
		messages:     messages,
		progressions: progressions,
		dispatcher:   dispatcher,
		provider:     provider,
		cfg:          cfg,
		log:          log,
	}
}

// RunTurn executes one full conversation turn
func (o *Orchestrator) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	session, err := o.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.UserID != req.User.ID {
		return nil, ErrForbidden
	}

	history, err := o.messages.ListBySession(ctx, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	prefs := req.User.GetPreferences()
	startCount := session.MessageCount

	// Persist the user message before the model sees it so the transcript
	// the model reasons over matches storage
	userSeq := startCount + 1
	userMsg := repository.ChatMessage{
		MessageID: messageID(session.SessionID, userSeq),
		SessionID: session.SessionID,
		Role:      "user",
		Content:   text,
		Sequence:  userSeq,
		CreatedAt: time.Now(),
	}
	if err := o.messages.Create(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	result, err := o.runModelPhase(ctx, session, prefs, history, userMsg)
	if err != nil {
		o.rollback(ctx, userMsg.MessageID)
		return nil, err
	}
	if result.ShortCircuit {
		// Topic-switch suggestions leave the session untouched, including
		// the user message that triggered them
		o.rollback(ctx, userMsg.MessageID)
		topicID := ""
		if session.TopicID.Valid {
			topicID = session.TopicID.String
		}
		return &TurnResult{
			SessionID:   session.SessionID,
			Reply:       result.Reply,
			TopicID:     topicID,
			NewSession:  true,
			ToolApplied: result.ToolApplied,
		}, nil
	}

	reply := result.Reply
	if strings.TrimSpace(reply) == "" {
		reply = topics.FallbackReply(prefs.Language)
	}

	assistantSeq := userSeq + 1
	assistantMsg := repository.ChatMessage{
		MessageID: messageID(session.SessionID, assistantSeq),
		SessionID: session.SessionID,
		Role:      "assistant",
		Content:   reply,
		Sequence:  assistantSeq,
		CreatedAt: time.Now(),
	}
	if err := o.messages.Create(ctx, assistantMsg); err != nil {
		o.rollback(ctx, userMsg.MessageID)
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	err = o.sessions.FinalizeTurn(ctx, session.SessionID, startCount, assistantSeq, previewOf(text))
	if err != nil {
		o.rollback(ctx, assistantMsg.MessageID, userMsg.MessageID)
		if err == repository.ErrStaleSession {
			return nil, err
		}
		return nil, fmt.Errorf("failed to finalize turn: %w", err)
	}

	topicID := ""
	if session.TopicID.Valid {
		topicID = session.TopicID.String
	}

	o.log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"user_id":    req.User.ID,
		"sequence":   assistantSeq,
		"tool":       result.ToolApplied,
	}).Info("turn completed")

	return &TurnResult{
		SessionID:   session.SessionID,
		MessageID:   assistantMsg.MessageID,
		Reply:       reply,
		TopicID:     topicID,
		ToolApplied: result.ToolApplied,
	}, nil
}

// modelPhaseResult carries the outcome of the model invocation(s)
type modelPhaseResult struct {
	Reply        string
	ShortCircuit bool
	ToolApplied  string
}

// runModelPhase performs the first model call, dispatches at most one tool
// call, and when a tool produced a result runs the follow-up call. A failed
// follow-up degrades to a canned reply because the tool side effect has
// already been applied and must stay acknowledged.
func (o *Orchestrator) runModelPhase(ctx context.Context, session *repository.ChatSession, prefs models.Preferences, history []repository.ChatMessage, userMsg repository.ChatMessage) (*modelPhaseResult, error) {
	progressions, err := o.progressions.GetAllProgressions(ctx, session.UserID)
	if err != nil {
		// Context degrades to the blank-slate row; the turn proceeds
		o.log.WithError(err).WithField("session_id", session.SessionID).Warn("failed to load progressions for context")
		progressions = nil
	}

	topicID := ""
	if session.TopicID.Valid {
		topicID = session.TopicID.String
	}

	messages := AssembleContext(ContextInput{
		History:         history,
		UserMessage:     userMsg.Content,
		TopicID:         topicID,
		Language:        prefs.Language,
		PreferredTopics: prefs.MathTopics,
		Progressions:    progressions,
	})

	tools := topicDetectionTools()
	if topicID != "" {
		tools = progressionTools()
	}

	resp, err := o.complete(ctx, messages, tools)
	if err != nil {
		o.log.WithError(err).WithField("session_id", session.SessionID).Error("model invocation failed")
		return nil, fmt.Errorf("%w: %v", ErrModelUpstream, err)
	}

	tc := resp.FirstToolCall()
	if tc == nil {
		return &modelPhaseResult{Reply: resp.Content()}, nil
	}

	outcome, err := o.dispatcher.Dispatch(ctx, session, prefs.Language, *tc)
	if err != nil {
		return nil, err
	}
	if outcome.ShortCircuit {
		return &modelPhaseResult{Reply: outcome.Reply, ShortCircuit: true, ToolApplied: tc.Function.Name}, nil
	}

	followUp := append(messages,
		providers.Message{
			Role:      "assistant",
			ToolCalls: []providers.ToolCall{*tc},
		},
		providers.Message{
			Role:       "tool",
			Content:    outcome.ToolResult,
			ToolCallID: tc.ID,
		},
	)
	if outcome.FollowUp != "" {
		followUp = append(followUp, providers.Message{
			Role:    "system",
			Content: outcome.FollowUp,
		})
	}

	second, err := o.complete(ctx, followUp, nil)
	if err != nil {
		o.log.WithError(err).WithField("session_id", session.SessionID).Warn("follow-up model invocation failed, degrading")
		return &modelPhaseResult{Reply: topics.DegradedReply(prefs.Language), ToolApplied: tc.Function.Name}, nil
	}

	return &modelPhaseResult{Reply: second.Content(), ToolApplied: tc.Function.Name}, nil
}

func (o *Orchestrator) complete(ctx context.Context, messages []providers.Message, tools []providers.Tool) (*providers.CompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	var toolChoice *providers.ToolChoice
	if len(tools) > 0 {
		toolChoice = &providers.ToolChoice{Type: "auto"}
	}

	temp := o.cfg.Temperature
	return o.provider.Complete(callCtx, providers.CompletionRequest{
		Messages:    messages,
		Model:       o.cfg.Model,
		Temperature: &temp,
		Tools:       tools,
		ToolChoice:  toolChoice,
	})
}

// rollback deletes stored turn messages after a failure. Delete errors are
// logged, not propagated; the original failure is the one the caller sees.
func (o *Orchestrator) rollback(ctx context.Context, messageIDs ...string) {
	for _, id := range messageIDs {
		if err := o.messages.Delete(ctx, id); err != nil {
			o.log.WithError(err).WithField("message_id", id).Error("failed to roll back message")
		}
	}
}

func messageID(sessionID string, sequence int) string {
	return fmt.Sprintf("%s_%d", sessionID, sequence)
}

// previewOf truncates the user input for the session list preview
func previewOf(input string) string {
	runes := []rune(input)
	if len(runes) <= lastMessagePreviewLen {
		return input
	}
	return string(runes[:lastMessagePreviewLen]) + "..."
}
