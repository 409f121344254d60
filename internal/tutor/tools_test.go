package tutor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmentor/mathmentor-backend/internal/providers"
)

func newTestDispatcher(sessions *fakeSessionRepo, progressions *fakeProgressionRepo) *Dispatcher {
	log := testLogger()
	return NewDispatcher(sessions, NewProgressionService(progressions, log), log)
}

func call(name, arguments string) providers.ToolCall {
	return providers.ToolCall{
		ID:       "call_1",
		Type:     "function",
		Function: providers.FunctionCall{Name: name, Arguments: arguments},
	}
}

func TestDispatch_SetCurrentTopic(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	progressions := newFakeProgressionRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "")

	d := newTestDispatcher(sessions, progressions)
	outcome, err := d.Dispatch(context.Background(), session, "en", call("set_current_topic", `{"topic_id":"algebra"}`))

	require.NoError(t, err)
	assert.False(t, outcome.ShortCircuit)
	assert.Contains(t, outcome.ToolResult, "Algebra")
	assert.NotEmpty(t, outcome.FollowUp)

	stored := sessions.sessions[session.SessionID]
	assert.Equal(t, "algebra", stored.TopicID.String)
	// The in-memory session is updated too so the rest of the turn sees it
	assert.Equal(t, "algebra", session.TopicID.String)
}

func TestDispatch_SetCurrentTopicRejectedWhenAlreadySet(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "geometry")

	d := newTestDispatcher(sessions, newFakeProgressionRepo())
	outcome, err := d.Dispatch(context.Background(), session, "en", call("set_current_topic", `{"topic_id":"algebra"}`))

	require.NoError(t, err)
	assert.Contains(t, outcome.ToolResult, "Error")
	assert.Equal(t, "geometry", sessions.sessions[session.SessionID].TopicID.String)
}

func TestDispatch_SetCurrentTopicPersistenceFailureIsFatal(t *testing.T) {
	sessions := newFakeSessionRepo()
	sessions.failSetTopic = true
	messages := newFakeMessageRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "")

	d := newTestDispatcher(sessions, newFakeProgressionRepo())
	_, err := d.Dispatch(context.Background(), session, "en", call("set_current_topic", `{"topic_id":"algebra"}`))

	assert.Error(t, err)
}

func TestDispatch_UpdateProgression(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	progressions := newFakeProgressionRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "algebra")

	d := newTestDispatcher(sessions, progressions)
	outcome, err := d.Dispatch(context.Background(), session, "en",
		call("update_user_progression", `{"topic_id":"algebra","progress":60,"notes":"linear equations done"}`))

	require.NoError(t, err)
	assert.Contains(t, outcome.ToolResult, "60%")

	record := progressions.records[progressionKey{user.ID, "algebra"}]
	assert.Equal(t, 60, record.Progress)
	assert.False(t, record.Revision)
	assert.Equal(t, "linear equations done", record.Notes)
}

func TestDispatch_UpdateProgressionTopicMismatch(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	progressions := newFakeProgressionRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "algebra")

	d := newTestDispatcher(sessions, progressions)
	outcome, err := d.Dispatch(context.Background(), session, "en",
		call("update_user_progression", `{"topic_id":"geometry","progress":50}`))

	require.NoError(t, err)
	assert.Contains(t, outcome.ToolResult, "Error")
	assert.Empty(t, progressions.records)
}

func TestDispatch_UpdateProgressionUpsertFailureIsNonFatal(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	progressions := newFakeProgressionRepo()
	progressions.failUpsert = true
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "algebra")

	d := newTestDispatcher(sessions, progressions)
	outcome, err := d.Dispatch(context.Background(), session, "en",
		call("update_user_progression", `{"topic_id":"algebra","progress":50}`))

	require.NoError(t, err)
	assert.Contains(t, outcome.ToolResult, "not be recorded")
}

func TestDispatch_SuggestNewTopicShortCircuits(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "algebra")

	d := newTestDispatcher(sessions, newFakeProgressionRepo())
	outcome, err := d.Dispatch(context.Background(), session, "en",
		call("suggest_new_topic_session", `{"suggested_topic_id":"calculus"}`))

	require.NoError(t, err)
	assert.True(t, outcome.ShortCircuit)
	assert.Contains(t, outcome.Reply, "Calculus")
	assert.Contains(t, outcome.Reply, "/new-session?topic=calculus")
	assert.Contains(t, outcome.Reply, "](/new-session)")
}

func TestDispatch_UnknownToolIsNonFatal(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "")

	d := newTestDispatcher(sessions, newFakeProgressionRepo())
	outcome, err := d.Dispatch(context.Background(), session, "en", call("delete_all_data", `{}`))

	require.NoError(t, err)
	assert.False(t, outcome.ShortCircuit)
	assert.Contains(t, outcome.ToolResult, "rejected")
}

func TestDispatch_MalformedArgumentsAreNonFatal(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "")

	d := newTestDispatcher(sessions, newFakeProgressionRepo())
	outcome, err := d.Dispatch(context.Background(), session, "en", call("set_current_topic", `{"topic_id":`))

	require.NoError(t, err)
	assert.Contains(t, outcome.ToolResult, "rejected")
	assert.False(t, sessions.sessions[session.SessionID].TopicID.Valid)
}

func TestDispatch_UnknownTopicIDRejected(t *testing.T) {
	sessions := newFakeSessionRepo()
	messages := newFakeMessageRepo()
	user := newTestUser("en")
	session := seedSession(sessions, messages, user.ID, "")

	d := newTestDispatcher(sessions, newFakeProgressionRepo())
	outcome, err := d.Dispatch(context.Background(), session, "en", call("set_current_topic", `{"topic_id":"astrology"}`))

	require.NoError(t, err)
	assert.Contains(t, outcome.ToolResult, "rejected")
	assert.False(t, sessions.sessions[session.SessionID].TopicID.Valid)
}

func TestToolSchemas_UseCatalogEnum(t *testing.T) {
	for _, tool := range append(topicDetectionTools(), progressionTools()...) {
		props, ok := tool.Function.Parameters["properties"].(map[string]interface{})
		require.True(t, ok, tool.Function.Name)
		for _, prop := range props {
			field := prop.(map[string]interface{})
			if enum, ok := field["enum"].([]string); ok {
				assert.Contains(t, enum, "algebra")
				assert.Contains(t, enum, "other")
			}
		}
	}
}
