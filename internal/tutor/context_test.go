package tutor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
)

func TestAssembleContext_Shape(t *testing.T) {
	history := []repository.ChatMessage{
		{Role: "system", Content: "base instructions", Sequence: 1},
		{Role: "assistant", Content: "welcome", Sequence: 2},
		{Role: "user", Content: "hi", Sequence: 3},
	}

	messages := AssembleContext(ContextInput{
		History:     history,
		UserMessage: "what is a derivative?",
		TopicID:     "calculus",
		Language:    "en",
	})

	require.Len(t, messages, 5)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "base instructions", messages[1].Content)
	assert.Equal(t, "user", messages[4].Role)
	assert.Equal(t, "what is a derivative?", messages[4].Content)
}

func TestAssembleContext_TopicWithProgression(t *testing.T) {
	messages := AssembleContext(ContextInput{
		UserMessage: "let's continue",
		TopicID:     "algebra",
		Language:    "en",
		Progressions: []models.TopicProgression{
			{TopicID: "algebra", Progress: 60, LastStudyTime: time.Now()},
		},
	})

	synthetic := messages[0].Content
	assert.Contains(t, synthetic, "Algebra")
	assert.Contains(t, synthetic, "60%")
	assert.Contains(t, synthetic, "not yet complete")
}

func TestAssembleContext_MasteredTopicIsRevision(t *testing.T) {
	messages := AssembleContext(ContextInput{
		UserMessage: "let's continue",
		TopicID:     "geometry",
		Language:    "en",
		Progressions: []models.TopicProgression{
			{TopicID: "geometry", Progress: 100, Revision: true, LastStudyTime: time.Now()},
		},
	})

	assert.Contains(t, messages[0].Content, "revision")
}

func TestAssembleContext_TopicWithoutProgression(t *testing.T) {
	messages := AssembleContext(ContextInput{
		UserMessage: "teach me statistics",
		TopicID:     "statistics",
		Language:    "en",
		// Progression exists for another topic only
		Progressions: []models.TopicProgression{
			{TopicID: "algebra", Progress: 40, LastStudyTime: time.Now()},
		},
	})

	synthetic := messages[0].Content
	assert.Contains(t, synthetic, "first exposure")
	assert.NotContains(t, synthetic, "40%")
}

func TestAssembleContext_NoTopicWithHistory(t *testing.T) {
	messages := AssembleContext(ContextInput{
		UserMessage:     "what should I learn next?",
		Language:        "en",
		PreferredTopics: []string{"calculus"},
		Progressions: []models.TopicProgression{
			{TopicID: "algebra", Progress: 100, Revision: true, LastStudyTime: time.Now()},
		},
	})

	synthetic := messages[0].Content
	assert.Contains(t, synthetic, "No topic is set")
	assert.Contains(t, synthetic, "Algebra")
	assert.Contains(t, synthetic, "mastered")
	assert.Contains(t, synthetic, "Calculus")
	assert.Contains(t, synthetic, "template only")
}

func TestAssembleContext_BlankSlateListsCatalog(t *testing.T) {
	messages := AssembleContext(ContextInput{
		UserMessage: "hello",
		Language:    "en",
	})

	synthetic := messages[0].Content
	assert.Contains(t, synthetic, "Algebra")
	assert.Contains(t, synthetic, "Probability")
	assert.Contains(t, synthetic, "Discrete Mathematics")
}

func TestAssembleContext_SyntheticNeverDuplicatesStoredSystem(t *testing.T) {
	history := []repository.ChatMessage{
		{Role: "system", Content: "base instructions", Sequence: 1},
	}

	messages := AssembleContext(ContextInput{
		History:     history,
		UserMessage: "hi",
		Language:    "en",
	})

	// Exactly one synthetic message is prepended; the stored system message
	// stays in its transcript position
	require.Len(t, messages, 3)
	assert.NotEqual(t, "base instructions", messages[0].Content)
	assert.Equal(t, "base instructions", messages[1].Content)
}
