package tutor

import (
	"fmt"
	"strings"

	"github.com/mathmentor/mathmentor-backend/internal/models"
	"github.com/mathmentor/mathmentor-backend/internal/topics"
)

// baseSystemPrompt is the persisted base instruction seeded into every new
// session at sequence 1. The worked example uses algebra; the synthetic
// context message tells the model to treat it as a template only.
const baseSystemPrompt = `You are MathMentor, a patient and encouraging mathematics tutor.

Guidelines:
- Teach one concept at a time and check understanding before moving on.
- Prefer guiding questions over giving answers away; reveal solutions step by step.
- Use concrete worked examples. For instance, when tutoring algebra you might start from "solve 2x + 3 = 11" and build up to multi-step equations.
- Keep answers focused on mathematics. Politely decline unrelated requests.
- Adapt difficulty to the user's demonstrated level.`

// buildBaseSystemMessage composes the base prompt with the user's language
// instruction and preferred-topics line, the content persisted at sequence 1.
func buildBaseSystemMessage(prefs models.Preferences) string {
	var b strings.Builder
	b.WriteString(baseSystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(topics.LanguageInstruction(prefs.Language))
	b.WriteString(".")

	if len(prefs.MathTopics) > 0 {
		names := make([]string, len(prefs.MathTopics))
		for i, id := range prefs.MathTopics {
			names[i] = topics.Name(id, prefs.Language)
		}
		b.WriteString(fmt.Sprintf("\nThe user is particularly interested in these math topics: %s.", strings.Join(names, ", ")))
	}

	return b.String()
}
