package tutor

import (
	"fmt"
	"strings"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/providers"
	"github.com/mathmentor/mathmentor-backend/internal/repository"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
)

// ContextInput is everything the assembler needs to build one turn's context
type ContextInput struct {
	History         []repository.ChatMessage
	UserMessage     string
	TopicID         string // "" when the session has no topic yet
	Language        string
	PreferredTopics []string
	Progressions    []models.TopicProgression
}

// AssembleContext builds the ordered message list sent to the model: one
// synthetic system message at position 0, the stored transcript projected to
// role/content, then the new user turn. The synthetic message is rebuilt
// fresh every turn and is never persisted.
func AssembleContext(in ContextInput) []providers.Message {
	messages := make([]providers.Message, 0, len(in.History)+2)
	messages = append(messages, providers.Message{
		Role:    "system",
		Content: syntheticContext(in),
	})

	for _, msg := range in.History {
		messages = append(messages, providers.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	messages = append(messages, providers.Message{
		Role:    "user",
		Content: in.UserMessage,
	})

	return messages
}

// syntheticContext selects the progression/preference context per the
// session's topic state, evaluated in order:
//  1. topic set, progression exists  -> prior progress summary
//  2. topic set, no progression     -> first exposure
//  3. no topic, known history/prefs -> recommend a next topic
//  4. no topic, blank slate         -> present the full catalog
func syntheticContext(in ContextInput) string {
	if in.TopicID != "" {
		if record := findProgression(in.Progressions, in.TopicID); record != nil {
			return knownTopicContext(in.TopicID, record, in.Language)
		}
		return firstExposureContext(in.TopicID, in.Language)
	}

	if len(in.Progressions) > 0 || len(in.PreferredTopics) > 0 {
		return recommendationContext(in)
	}

	return blankSlateContext(in.Language)
}

func findProgression(records []models.TopicProgression, topicID string) *models.TopicProgression {
	for i := range records {
		if records[i].TopicID == topicID {
			return &records[i]
		}
	}
	return nil
}

func knownTopicContext(topicID string, record *models.TopicProgression, lang string) string {
	name := topics.Name(topicID, lang)

	var b strings.Builder
	fmt.Fprintf(&b, "The current session topic is %s. The user previously reached %d%% progress on this topic.", name, record.Progress)
	if record.Revision {
		b.WriteString(" The topic is mastered (revision mode).")
	} else {
		b.WriteString(" The topic is not yet complete.")
	}
	fmt.Fprintf(&b, " Last studied: %s.", record.LastStudyTime.Format("2006-01-02 15:04"))
	if record.Notes != "" {
		fmt.Fprintf(&b, " Notes from previous sessions: %s", record.Notes)
	}
	if record.Revision {
		b.WriteString(" Focus on revision: consolidate with varied exercises rather than re-teaching the basics.")
	} else {
		b.WriteString(" Continue from where the user left off rather than starting over.")
	}
	return b.String()
}

func firstExposureContext(topicID, lang string) string {
	name := topics.Name(topicID, lang)
	return fmt.Sprintf("The current session topic is %s. This is the user's first exposure to this topic; there is no recorded progress. Start from the fundamentals and build up gradually.", name)
}

func recommendationContext(in ContextInput) string {
	var b strings.Builder
	b.WriteString("No topic is set for this session yet.")

	if len(in.Progressions) > 0 {
		b.WriteString(" The user's recorded progress so far:")
		for _, record := range in.Progressions {
			status := fmt.Sprintf("%d%% complete", record.Progress)
			if record.Revision {
				status = "mastered"
			}
			fmt.Fprintf(&b, " %s (%s);", topics.Name(record.TopicID, in.Language), status)
		}
	}

	if len(in.PreferredTopics) > 0 {
		names := make([]string, len(in.PreferredTopics))
		for i, id := range in.PreferredTopics {
			names[i] = topics.Name(id, in.Language)
		}
		fmt.Fprintf(&b, " The user's preferred topics: %s.", strings.Join(names, ", "))
	}

	b.WriteString(" Recommend a logical next topic, taking prerequisites into account. Any example topic mentioned in your base instructions is a template only, not a recommendation.")
	return b.String()
}

func blankSlateContext(lang string) string {
	return fmt.Sprintf("No topic is set for this session and the user has no recorded progress or topic preferences. Available topics: %s. Assess the user's background and recommend a starting point. Any example topic mentioned in your base instructions is a template only, not a recommendation.",
		strings.Join(topics.Names(lang), ", "))
}
