package tutor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mathmentor/mathmentor-backend/internal/providers"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
)

const (
	toolSetCurrentTopic       = "set_current_topic"
	toolUpdateUserProgression = "update_user_progression"
	toolSuggestNewTopic       = "suggest_new_topic_session"
)

// topicEnum returns the catalog id set as a JSON-schema enum, so the model
// can only name ids the catalog will accept back.
func topicEnum() []string {
	return topics.Available()
}

// topicDetectionTools is offered while the session has no topic
func topicDetectionTools() []providers.Tool {
	return []providers.Tool{
		{
			Type: "function",
			Function: providers.Function{
				Name:        toolSetCurrentTopic,
				Description: "Fix the math topic for this session once the user has made clear what they want to study.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"topic_id": map[string]interface{}{
							"type": "string",
							"enum": topicEnum(),
						},
					},
					"required": []string{"topic_id"},
				},
			},
		},
		suggestNewTopicTool(),
	}
}

// progressionTools is offered once the session has a topic
func progressionTools() []providers.Tool {
	return []providers.Tool{
		{
			Type: "function",
			Function: providers.Function{
				Name:        toolUpdateUserProgression,
				Description: "Record the user's mastery of the current session topic after they demonstrate understanding.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"topic_id": map[string]interface{}{
							"type": "string",
							"enum": topicEnum(),
						},
						"progress": map[string]interface{}{
							"type":    "integer",
							"minimum": 0,
							"maximum": 100,
						},
						"notes": map[string]interface{}{
							"type": "string",
						},
					},
					"required": []string{"topic_id", "progress"},
				},
			},
		},
		suggestNewTopicTool(),
	}
}

func suggestNewTopicTool() providers.Tool {
	return providers.Tool{
		Type: "function",
		Function: providers.Function{
			Name:        toolSuggestNewTopic,
			Description: "Suggest opening a fresh session when the user wants to switch to a different math topic mid-conversation.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"suggested_topic_id": map[string]interface{}{
						"type": "string",
						"enum": topicEnum(),
					},
				},
				"required": []string{"suggested_topic_id"},
			},
		},
	}
}

// toolInvocation is the tagged union over the known tool kinds
type toolInvocation interface {
	toolName() string
}

type setCurrentTopicCall struct {
	TopicID string `json:"topic_id"`
}

type updateProgressionCall struct {
	TopicID  string `json:"topic_id"`
	Progress int    `json:"progress"`
	Notes    string `json:"notes"`
}

type suggestNewTopicCall struct {
	SuggestedTopicID string `json:"suggested_topic_id"`
}

// unrecognizedToolCall covers unknown tool names and undecodable arguments
type unrecognizedToolCall struct {
	Name   string
	Reason string
}

func (setCurrentTopicCall) toolName() string   { return toolSetCurrentTopic }
func (updateProgressionCall) toolName() string { return toolUpdateUserProgression }
func (suggestNewTopicCall) toolName() string   { return toolSuggestNewTopic }
func (c unrecognizedToolCall) toolName() string {
	return c.Name
}

// parseToolCall decodes a model tool call into the tagged union. Malformed
// arguments and unknown names map to unrecognizedToolCall rather than errors;
// tool-level problems never fail a turn.
func parseToolCall(tc providers.ToolCall) toolInvocation {
	switch tc.Function.Name {
	case toolSetCurrentTopic:
		var call setCurrentTopicCall
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &call); err != nil {
			return unrecognizedToolCall{Name: tc.Function.Name, Reason: "malformed arguments"}
		}
		if !topics.IsValid(call.TopicID) {
			return unrecognizedToolCall{Name: tc.Function.Name, Reason: fmt.Sprintf("unknown topic id %q", call.TopicID)}
		}
		return call
	case toolUpdateUserProgression:
		var call updateProgressionCall
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &call); err != nil {
			return unrecognizedToolCall{Name: tc.Function.Name, Reason: "malformed arguments"}
		}
		if !topics.IsValid(call.TopicID) {
			return unrecognizedToolCall{Name: tc.Function.Name, Reason: fmt.Sprintf("unknown topic id %q", call.TopicID)}
		}
		return call
	case toolSuggestNewTopic:
		var call suggestNewTopicCall
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &call); err != nil {
			return unrecognizedToolCall{Name: tc.Function.Name, Reason: "malformed arguments"}
		}
		if !topics.IsValid(call.SuggestedTopicID) {
			return unrecognizedToolCall{Name: tc.Function.Name, Reason: fmt.Sprintf("unknown topic id %q", call.SuggestedTopicID)}
		}
		return call
	default:
		return unrecognizedToolCall{Name: tc.Function.Name, Reason: "unrecognized tool"}
	}
}

// DispatchOutcome describes what one tool call did and how the turn continues
type DispatchOutcome struct {
	// ToolResult is the content of the tool-result message fed back to the model
	ToolResult string
	// FollowUp is extra system guidance for the second model invocation
	FollowUp string
	// ShortCircuit ends the turn immediately with Reply; the caller discards
	// the just-persisted user message
	ShortCircuit bool
	Reply        string
}

// Dispatcher interprets model tool calls and applies their session/user
// state effects
type Dispatcher struct {
	sessions     repository.SessionRepository
	progressions *ProgressionService
	log          *logrus.Logger
}

// NewDispatcher creates a new tool dispatcher
func NewDispatcher(sessions repository.SessionRepository, progressions *ProgressionService, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{sessions: sessions, progressions: progressions, log: log}
}

// Dispatch applies one tool call against the session. The returned error is
// non-nil only for persistence failures that must fail the whole turn;
// tool-level logical errors come back as error tool-results instead.
func (d *Dispatcher) Dispatch(ctx context.Context, session *repository.ChatSession, lang string, tc providers.ToolCall) (*DispatchOutcome, error) {
	switch call := parseToolCall(tc).(type) {
	case setCurrentTopicCall:
		return d.setCurrentTopic(ctx, session, lang, call)
	case updateProgressionCall:
		return d.updateProgression(ctx, session, lang, call)
	case suggestNewTopicCall:
		d.log.WithFields(logrus.Fields{
			"session_id": session.SessionID,
			"topic":      call.SuggestedTopicID,
		}).Info("model suggested a new topic session")
		return &DispatchOutcome{
			ShortCircuit: true,
			Reply:        topics.NewTopicSuggestion(call.SuggestedTopicID, lang),
		}, nil
	case unrecognizedToolCall:
		d.log.WithFields(logrus.Fields{
			"session_id": session.SessionID,
			"tool":       call.Name,
			"reason":     call.Reason,
		}).Warn("rejected tool call")
		return &DispatchOutcome{
			ToolResult: fmt.Sprintf("Error: tool call %q rejected (%s). Answer the user directly instead.", call.Name, call.Reason),
		}, nil
	default:
		// parseToolCall is exhaustive; this is unreachable
		return &DispatchOutcome{ToolResult: "Error: tool call rejected."}, nil
	}
}

func (d *Dispatcher) setCurrentTopic(ctx context.Context, session *repository.ChatSession, lang string, call setCurrentTopicCall) (*DispatchOutcome, error) {
	if session.TopicID.Valid && session.TopicID.String != "" {
		// A fixed topic is never silently overwritten mid-conversation
		return &DispatchOutcome{
			ToolResult: fmt.Sprintf("Error: this session already has the topic %q. Use suggest_new_topic_session to switch topics.", session.TopicID.String),
		}, nil
	}

	if err := d.sessions.SetTopic(ctx, session.SessionID, call.TopicID); err != nil {
		return nil, fmt.Errorf("failed to set session topic: %w", err)
	}
	session.TopicID.Valid = true
	session.TopicID.String = call.TopicID

	d.log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"topic":      call.TopicID,
	}).Info("session topic set")

	return &DispatchOutcome{
		ToolResult: fmt.Sprintf("Session topic set to %s.", topics.Name(call.TopicID, lang)),
		FollowUp:   "The topic is now fixed. Open with a short assessment question to gauge the user's current level. Do not dump a syllabus or a full topic outline.",
	}, nil
}

func (d *Dispatcher) updateProgression(ctx context.Context, session *repository.ChatSession, lang string, call updateProgressionCall) (*DispatchOutcome, error) {
	currentTopic := ""
	if session.TopicID.Valid {
		currentTopic = session.TopicID.String
	}

	if call.TopicID != currentTopic {
		// Local rejection, not a turn failure: no state mutation occurs
		return &DispatchOutcome{
			ToolResult: fmt.Sprintf("Error: progression update for %q rejected; the current session topic is %q.", call.TopicID, currentTopic),
		}, nil
	}

	if err := d.progressions.UpsertProgression(ctx, session.UserID, call.TopicID, call.Progress, call.Notes); err != nil {
		// Progression not recorded; the turn continues
		return &DispatchOutcome{
			ToolResult: "Error: the progression update could not be recorded. Continue the lesson without mentioning this.",
		}, nil
	}

	return &DispatchOutcome{
		ToolResult: fmt.Sprintf("Progression for %s recorded at %d%%.", topics.Name(call.TopicID, lang), call.Progress),
		FollowUp:   "Progress has been recorded. Introduce the next concept and ask a reinforcing question. Do not mention the recording mechanism to the user.",
	}, nil
}
